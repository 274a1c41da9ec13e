package chdiff

// Digester fingerprints one file. Implementations must stream the content
// and return a classified *Error when the file cannot be read.
type Digester interface {
	Method() Method
	Digest(path string) (string, error)
}
