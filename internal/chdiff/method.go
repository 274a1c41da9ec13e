package chdiff

import (
	"path"
	"strings"
)

// Method identifies the function used to fingerprint file content.
type Method string

const (
	MethodSHA256 Method = "sha256"
	MethodSHA512 Method = "sha512"
	MethodMD5    Method = "md5"
	MethodXXH3   Method = "xxh3"
	MethodSize   Method = "size"

	DefaultMethod = MethodSHA256
)

const (
	manifestPrefix = "chdiff."
	manifestSuffix = ".txt"

	// ManifestPattern matches the manifest of any method. It is applied to
	// basenames, so manifests are excluded at every depth of a tree.
	ManifestPattern = manifestPrefix + "*" + manifestSuffix
)

// Methods lists the supported methods in display order.
func Methods() []Method {
	return []Method{MethodSHA256, MethodSHA512, MethodMD5, MethodXXH3, MethodSize}
}

// ParseMethod validates a method name.
func ParseMethod(name string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Methods() {
		if m == known {
			return m, nil
		}
	}
	return "", Errorf(KindInvalidArgument, "parse method", "", "unknown checksum method %q", name)
}

// ManifestName returns the manifest file name for the method, e.g.
// "chdiff.sha256.txt". Each method has its own file so switching methods
// never clobbers another method's manifest.
func (m Method) ManifestName() string {
	return manifestPrefix + string(m) + manifestSuffix
}

// IsManifestName reports whether the last element of p names a manifest of
// any method.
func IsManifestName(p string) bool {
	matched, err := path.Match(ManifestPattern, path.Base(p))
	return err == nil && matched
}
