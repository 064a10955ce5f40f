package evidencerecord

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/georgepadayatti/adesval/digest"
)

// Root computes the root of a reduced hash tree. Groups are processed in
// order; from the second group on, the digest computed so far is added to
// the group. A group with a single value passes it through; otherwise the
// values are sorted in binary ascending order (unsigned byte-wise
// comparison), concatenated and hashed.
func Root(alg digest.Algorithm, tree [][][]byte) ([]byte, error) {
	if len(tree) == 0 {
		return nil, fmt.Errorf("%w: empty hash tree", ErrInvalidInput)
	}
	var running []byte
	for i, group := range tree {
		values := make([][]byte, 0, len(group)+1)
		values = append(values, group...)
		if i > 0 {
			values = append(values, running)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: empty hash tree group %d", ErrInvalidInput, i)
		}
		if len(values) == 1 {
			running = values[0]
			continue
		}
		sum, err := hashSorted(alg, values)
		if err != nil {
			return nil, err
		}
		running = sum
	}
	return running, nil
}

func hashSorted(alg digest.Algorithm, values [][]byte) ([]byte, error) {
	sort.Slice(values, func(i, j int) bool {
		return bytes.Compare(values[i], values[j]) < 0
	})
	h, err := alg.New()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		h.Write(v)
	}
	return h.Sum(nil), nil
}

// contains reports whether the group holds the digest value.
func contains(group [][]byte, value []byte) bool {
	for _, v := range group {
		if bytes.Equal(v, value) {
			return true
		}
	}
	return false
}
