// Package digest implements the whole-file checksum methods.
package digest

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strconv"

	"github.com/zeebo/xxh3"

	"chdiff/internal/chdiff"
)

// BufferSize is the chunk size used to stream file content into a hash.
const BufferSize = 1 << 20

// FileDigester computes checksums of files with one method.
type FileDigester struct {
	method    chdiff.Method
	newHash   func() hash.Hash
	throttler *Throttler
}

// New creates a digester for method. A non-nil throttler limits the
// combined read rate of every digest computed through it.
func New(method chdiff.Method, throttler *Throttler) (*FileDigester, error) {
	d := &FileDigester{method: method, throttler: throttler}
	switch method {
	case chdiff.MethodSHA256:
		d.newHash = sha256.New
	case chdiff.MethodSHA512:
		d.newHash = sha512.New
	case chdiff.MethodMD5:
		d.newHash = md5.New
	case chdiff.MethodXXH3:
		d.newHash = newXXH3
	case chdiff.MethodSize:
	default:
		return nil, chdiff.Errorf(chdiff.KindInvalidArgument, "digest", "", "unknown checksum method %q", method)
	}
	return d, nil
}

// Method returns the digest method.
func (d *FileDigester) Method() chdiff.Method {
	return d.method
}

// Digest returns the checksum of the file at path: lowercase hex for
// content hashes, the decimal byte count for the size method.
func (d *FileDigester) Digest(path string) (string, error) {
	if d.newHash == nil {
		info, err := os.Stat(path)
		if err != nil {
			return "", chdiff.Classify("digest", path, err)
		}
		return strconv.FormatInt(info.Size(), 10), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", chdiff.Classify("digest", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if d.throttler != nil {
		r = d.throttler.Reader(f)
	}

	h := d.newHash()
	buf := make([]byte, BufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", chdiff.Classify("digest", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// xxh3Hash128 adapts the streaming xxh3 hasher to hash.Hash with the
// 128-bit digest as its sum.
type xxh3Hash128 struct {
	h *xxh3.Hasher
}

func newXXH3() hash.Hash { return &xxh3Hash128{h: xxh3.New()} }

func (x *xxh3Hash128) Write(p []byte) (int, error) { return x.h.Write(p) }
func (x *xxh3Hash128) Reset()                      { x.h.Reset() }
func (x *xxh3Hash128) Size() int                   { return 16 }
func (x *xxh3Hash128) BlockSize() int              { return 64 }

func (x *xxh3Hash128) Sum(b []byte) []byte {
	sum := x.h.Sum128().Bytes()
	return append(b, sum[:]...)
}

// Compile-time check that FileDigester implements chdiff.Digester
var _ chdiff.Digester = (*FileDigester)(nil)
