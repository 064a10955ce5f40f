// Package poe tracks proofs of existence: for every token, the times at
// which its existence is proven.
//
// POEs are collected in a Builder and frozen into an immutable Store before
// any validation reads them. A Store can be extended into a new Builder,
// leaving the original untouched, so that each signature accumulates its own
// timestamp evidence on top of a shared base.
package poe

import (
	"fmt"
	"sort"
	"time"
)

// Type represents the source of a proof of existence.
type Type int

const (
	// TypeValidationTime is the default POE of every token at the validation time
	TypeValidationTime Type = iota
	// TypeTimestamp indicates POE from a timestamp token
	TypeTimestamp
	// TypeArchiveTimestamp indicates POE from an archive timestamp
	TypeArchiveTimestamp
	// TypeEvidenceRecord indicates POE from an evidence record
	TypeEvidenceRecord
	// TypeExternal indicates externally provided POE
	TypeExternal
)

// String returns the string representation of POE type.
func (t Type) String() string {
	switch t {
	case TypeValidationTime:
		return "validation_time"
	case TypeTimestamp:
		return "timestamp"
	case TypeArchiveTimestamp:
		return "archive_timestamp"
	case TypeEvidenceRecord:
		return "evidence_record"
	case TypeExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// ProofOfExistence represents evidence that a token existed at a specific time.
type ProofOfExistence struct {
	Time time.Time
	Type Type
	// Source is the id of the token providing the proof, if any.
	Source string
}

// Builder accumulates proofs of existence. It is not safe for concurrent use.
type Builder struct {
	poes map[string][]ProofOfExistence
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{poes: make(map[string][]ProofOfExistence)}
}

// Add records a proof of existence for a token. Proofs are never removed.
func (b *Builder) Add(tokenID string, p ProofOfExistence) {
	for _, e := range b.poes[tokenID] {
		if e.Time.Equal(p.Time) && e.Type == p.Type && e.Source == p.Source {
			return
		}
	}
	b.poes[tokenID] = append(b.poes[tokenID], p)
}

// AddAt records proofs of existence at t for every token.
func (b *Builder) AddAt(t time.Time, typ Type, source string, tokenIDs ...string) {
	for _, id := range tokenIDs {
		b.Add(id, ProofOfExistence{Time: t, Type: typ, Source: source})
	}
}

// Freeze returns an immutable snapshot of the collected proofs.
// The builder can still be used afterwards without affecting the snapshot.
func (b *Builder) Freeze() *Store {
	s := &Store{poes: make(map[string][]ProofOfExistence, len(b.poes))}
	for id, list := range b.poes {
		cp := make([]ProofOfExistence, len(list))
		copy(cp, list)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Time.Before(cp[j].Time) })
		s.poes[id] = cp
	}
	return s
}

// Store is an immutable set of proofs of existence, sorted by time per
// token. It is safe for concurrent use.
type Store struct {
	poes map[string][]ProofOfExistence
}

// Empty is a store without proofs.
var Empty = &Store{poes: map[string][]ProofOfExistence{}}

// Extend returns a builder seeded with a copy of the store's proofs.
func (s *Store) Extend() *Builder {
	b := NewBuilder()
	for id, list := range s.poes {
		b.poes[id] = append([]ProofOfExistence(nil), list...)
	}
	return b
}

// Times returns the proofs for a token, oldest first.
func (s *Store) Times(tokenID string) []ProofOfExistence {
	return append([]ProofOfExistence(nil), s.poes[tokenID]...)
}

// Lowest returns the earliest proof for a token.
func (s *Store) Lowest(tokenID string) (ProofOfExistence, bool) {
	list := s.poes[tokenID]
	if len(list) == 0 {
		return ProofOfExistence{}, false
	}
	return list[0], true
}

// LowestAtOrBefore returns the earliest proof for a token if it is not after t.
func (s *Store) LowestAtOrBefore(tokenID string, t time.Time) (ProofOfExistence, bool) {
	p, ok := s.Lowest(tokenID)
	if !ok || p.Time.After(t) {
		return ProofOfExistence{}, false
	}
	return p, true
}

// Exists reports whether the token has a proof of existence at or before t.
func (s *Store) Exists(tokenID string, t time.Time) bool {
	_, ok := s.LowestAtOrBefore(tokenID, t)
	return ok
}

// ExistsBefore reports whether the token has a proof of existence strictly before t.
func (s *Store) ExistsBefore(tokenID string, t time.Time) bool {
	p, ok := s.Lowest(tokenID)
	return ok && p.Time.Before(t)
}

// Len returns the number of tokens with at least one proof.
func (s *Store) Len() int {
	return len(s.poes)
}
