// Package digest maps the digest algorithm names used in diagnostic data
// and validation policies to hash implementations.
package digest

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrUnsupportedAlgorithm is returned for digest algorithms without an implementation.
var ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

// Algorithm is a digest algorithm name as it appears in diagnostic data
// (for example "SHA256" or "SHA3-256").
type Algorithm string

// Known digest algorithms.
const (
	SHA1     Algorithm = "SHA1"
	SHA224   Algorithm = "SHA224"
	SHA256   Algorithm = "SHA256"
	SHA384   Algorithm = "SHA384"
	SHA512   Algorithm = "SHA512"
	SHA3_256 Algorithm = "SHA3-256"
	SHA3_384 Algorithm = "SHA3-384"
	SHA3_512 Algorithm = "SHA3-512"
)

var constructors = map[Algorithm]func() hash.Hash{
	SHA1:     sha1.New,
	SHA224:   sha256.New224,
	SHA256:   sha256.New,
	SHA384:   sha512.New384,
	SHA512:   sha512.New,
	SHA3_256: sha3.New256,
	SHA3_384: sha3.New384,
	SHA3_512: sha3.New512,
}

// Parse normalises an algorithm name. Hyphens in SHA-2 names are tolerated
// ("SHA-256" is SHA256), URIs are matched on their fragment.
func Parse(name string) (Algorithm, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if i := strings.LastIndexByte(n, '#'); i >= 0 {
		n = n[i+1:]
	}
	n = strings.ReplaceAll(n, "-", "")
	// SHA3256, SHA3384, SHA3512
	if len(n) == 7 && strings.HasPrefix(n, "SHA3") {
		n = "SHA3-" + n[4:]
	}
	a := Algorithm(n)
	if _, ok := constructors[a]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
	}
	return a, nil
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	c, ok := constructors[a]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
	return c(), nil
}

// Sum computes the digest of data.
func (a Algorithm) Sum(data []byte) ([]byte, error) {
	h, err := a.New()
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// Size returns the digest length in bytes, or 0 if unknown.
func (a Algorithm) Size() int {
	c, ok := constructors[a]
	if !ok {
		return 0
	}
	return c().Size()
}

// CryptoHash returns the crypto.Hash matching the algorithm.
func (a Algorithm) CryptoHash() crypto.Hash {
	switch a {
	case SHA1:
		return crypto.SHA1
	case SHA224:
		return crypto.SHA224
	case SHA256:
		return crypto.SHA256
	case SHA384:
		return crypto.SHA384
	case SHA512:
		return crypto.SHA512
	case SHA3_256:
		return crypto.SHA3_256
	case SHA3_384:
		return crypto.SHA3_384
	case SHA3_512:
		return crypto.SHA3_512
	}
	return 0
}

func (a Algorithm) String() string {
	return string(a)
}
