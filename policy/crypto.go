package policy

import (
	"sort"
	"strings"
	"time"

	"github.com/georgepadayatti/adesval/digest"
)

// Algorithm identifies an algorithm use: a digest algorithm (KeySize 0) or
// an encryption algorithm with its key length in bits.
type Algorithm struct {
	Name    string
	KeySize int
}

// AlgorithmExpiration is the date after which an algorithm, at a minimum
// key size, is no longer considered secure.
type AlgorithmExpiration struct {
	Algorithm string
	KeySize   int
	Date      time.Time
}

// Crypto holds cryptographic constraints with a precomputed expiration
// lookup table. It is built once when the policy is loaded.
type Crypto struct {
	level       Level
	digests     map[string]bool
	encryptions map[string]bool
	minKeySizes map[string]int
	// per algorithm, ascending by key size
	expirations map[string][]AlgorithmExpiration
}

// CryptoResult is the outcome of checking a set of algorithms.
type CryptoResult struct {
	OK bool
	// Unsupported is set when an algorithm is not acceptable at all
	// (unknown, or key below the minimum size).
	Unsupported bool
	Failing     []Algorithm
	// Expiration is the earliest expiration date among the failing
	// algorithms that are supported but expired.
	Expiration *time.Time
}

// NewCrypto builds cryptographic constraints. Empty acceptance lists accept
// every algorithm.
func NewCrypto(level Level, digests, encryptions []string, minKeySizes map[string]int, expirations []AlgorithmExpiration) *Crypto {
	c := &Crypto{
		level:       level,
		digests:     make(map[string]bool),
		encryptions: make(map[string]bool),
		minKeySizes: make(map[string]int),
		expirations: make(map[string][]AlgorithmExpiration),
	}
	for _, d := range digests {
		c.digests[normalize(d)] = true
	}
	for _, e := range encryptions {
		c.encryptions[normalize(e)] = true
	}
	for k, v := range minKeySizes {
		c.minKeySizes[normalize(k)] = v
	}
	for _, e := range expirations {
		n := normalize(e.Algorithm)
		e.Algorithm = n
		c.expirations[n] = append(c.expirations[n], e)
	}
	for n := range c.expirations {
		list := c.expirations[n]
		sort.Slice(list, func(i, j int) bool { return list[i].KeySize < list[j].KeySize })
	}
	return c
}

func normalize(name string) string {
	if a, err := digest.Parse(name); err == nil {
		return string(a)
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

func isDigest(name string) bool {
	_, err := digest.Parse(name)
	return err == nil
}

// Level returns the level applied to cryptographic checks.
func (c *Crypto) Level() Level {
	if c == nil {
		return LevelIgnore
	}
	return c.level
}

// Supported reports whether the algorithm is acceptable regardless of time.
func (c *Crypto) Supported(a Algorithm) bool {
	if c == nil {
		return true
	}
	n := normalize(a.Name)
	if isDigest(a.Name) {
		return len(c.digests) == 0 || c.digests[n]
	}
	if len(c.encryptions) > 0 && !c.encryptions[n] {
		return false
	}
	if min, ok := c.minKeySizes[n]; ok && a.KeySize < min {
		return false
	}
	return true
}

// Expiration returns the expiration date for the algorithm. The entry with
// the largest key size not above a.KeySize is used; a key smaller than
// every listed size gets the earliest entry.
func (c *Crypto) Expiration(a Algorithm) (time.Time, bool) {
	if c == nil {
		return time.Time{}, false
	}
	list := c.expirations[normalize(a.Name)]
	if len(list) == 0 {
		return time.Time{}, false
	}
	found := list[0]
	for _, e := range list {
		if e.KeySize <= a.KeySize {
			found = e
		}
	}
	return found.Date, true
}

// SecureAt reports whether the algorithm is supported and not expired at t.
func (c *Crypto) SecureAt(a Algorithm, t time.Time) bool {
	if !c.Supported(a) {
		return false
	}
	exp, ok := c.Expiration(a)
	return !ok || t.Before(exp)
}

// Check validates every algorithm at t.
func (c *Crypto) Check(algs []Algorithm, t time.Time) CryptoResult {
	res := CryptoResult{OK: true}
	for _, a := range algs {
		if a.Name == "" {
			continue
		}
		if !c.Supported(a) {
			res.OK = false
			res.Unsupported = true
			res.Failing = append(res.Failing, a)
			continue
		}
		exp, ok := c.Expiration(a)
		if ok && !t.Before(exp) {
			res.OK = false
			res.Failing = append(res.Failing, a)
			if res.Expiration == nil || exp.Before(*res.Expiration) {
				e := exp
				res.Expiration = &e
			}
		}
	}
	return res
}
