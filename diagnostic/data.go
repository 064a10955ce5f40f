package diagnostic

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Common errors
var (
	ErrUnresolvedReference = errors.New("unresolved token reference")
	ErrDuplicateToken      = errors.New("duplicate token identifier")
	ErrNotResolved         = errors.New("diagnostic data not resolved")
)

// ExternalPOE is a proof of existence supplied by the caller.
type ExternalPOE struct {
	TokenID string    `json:"tokenId"`
	Time    time.Time `json:"time"`
}

// DiagnosticData is the complete input of a validation run. It is
// read-only once Resolve has succeeded.
type DiagnosticData struct {
	ValidationTime  *time.Time        `json:"validationTime,omitempty"`
	Signatures      []*Signature      `json:"signatures,omitempty"`
	Certificates    []*Certificate    `json:"certificates,omitempty"`
	Timestamps      []*Timestamp      `json:"timestamps,omitempty"`
	Revocations     []*Revocation     `json:"revocations,omitempty"`
	EvidenceRecords []*EvidenceRecord `json:"evidenceRecords,omitempty"`
	ExternalPOEs    []ExternalPOE     `json:"externalPoes,omitempty"`

	resolved        bool
	tokens          map[string]Token
	parsed          map[string]*x509.Certificate
	revocationsByID map[string][]*Revocation
}

// Resolve indexes all tokens, parses raw certificates and checks that
// every reference points to a known token.
func (d *DiagnosticData) Resolve() error {
	d.tokens = make(map[string]Token)
	d.parsed = make(map[string]*x509.Certificate)
	d.revocationsByID = make(map[string][]*Revocation)

	add := func(t Token) error {
		id := t.TokenID()
		if id == "" {
			return fmt.Errorf("%w: empty %s id", ErrUnresolvedReference, t.Kind())
		}
		if _, dup := d.tokens[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateToken, id)
		}
		d.tokens[id] = t
		return nil
	}
	for _, c := range d.Certificates {
		if err := add(c); err != nil {
			return err
		}
		if len(c.Raw) > 0 {
			x, err := x509.ParseCertificate(c.Raw)
			if err != nil {
				return fmt.Errorf("certificate %s: %w", c.ID, err)
			}
			d.parsed[c.ID] = x
		}
		for _, ts := range c.TrustedServices {
			if err := ts.Build(); err != nil {
				return fmt.Errorf("certificate %s: %w", c.ID, err)
			}
		}
	}
	for _, s := range d.Signatures {
		if err := add(s); err != nil {
			return err
		}
	}
	for _, t := range d.Timestamps {
		if err := add(t); err != nil {
			return err
		}
	}
	for _, r := range d.Revocations {
		if err := add(r); err != nil {
			return err
		}
	}
	for _, e := range d.EvidenceRecords {
		if err := add(e); err != nil {
			return err
		}
	}

	check := func(owner, id string) error {
		if id == "" {
			return nil
		}
		if _, ok := d.tokens[id]; !ok {
			return fmt.Errorf("%w: %s references %s", ErrUnresolvedReference, owner, id)
		}
		return nil
	}
	checkSigned := func(o *SignedObject) error {
		if err := check(o.ID, o.SigningCertificateID); err != nil {
			return err
		}
		for _, id := range o.CertificateChain {
			if err := check(o.ID, id); err != nil {
				return err
			}
		}
		return nil
	}
	for _, s := range d.Signatures {
		if err := checkSigned(&s.SignedObject); err != nil {
			return err
		}
		if err := check(s.ID, s.ParentID); err != nil {
			return err
		}
		for _, id := range append(append([]string{}, s.TimestampIDs...), s.EvidenceRecordIDs...) {
			if err := check(s.ID, id); err != nil {
				return err
			}
		}
	}
	for _, t := range d.Timestamps {
		if err := checkSigned(&t.SignedObject); err != nil {
			return err
		}
		for _, id := range t.CoveredIDs {
			if err := check(t.ID, id); err != nil {
				return err
			}
		}
	}
	for _, r := range d.Revocations {
		if err := checkSigned(&r.SignedObject); err != nil {
			return err
		}
	}
	for _, c := range d.Certificates {
		for _, cr := range c.Revocations {
			if err := check(c.ID, cr.RevocationID); err != nil {
				return err
			}
			if r, ok := d.tokens[cr.RevocationID].(*Revocation); ok {
				d.revocationsByID[c.ID] = append(d.revocationsByID[c.ID], r)
			}
		}
	}
	for _, e := range d.EvidenceRecords {
		for _, ch := range e.Chains {
			for _, ats := range ch.Timestamps {
				if err := check(e.ID, ats.TimestampID); err != nil {
					return err
				}
			}
		}
	}
	d.resolved = true
	return nil
}

// Resolved reports whether Resolve succeeded.
func (d *DiagnosticData) Resolved() bool { return d != nil && d.resolved }

// Token returns any token by id.
func (d *DiagnosticData) Token(id string) (Token, bool) {
	t, ok := d.tokens[id]
	return t, ok
}

// Certificate returns a certificate by id.
func (d *DiagnosticData) Certificate(id string) (*Certificate, bool) {
	c, ok := d.tokens[id].(*Certificate)
	return c, ok
}

// Signature returns a signature by id.
func (d *DiagnosticData) Signature(id string) (*Signature, bool) {
	s, ok := d.tokens[id].(*Signature)
	return s, ok
}

// Timestamp returns a timestamp by id.
func (d *DiagnosticData) Timestamp(id string) (*Timestamp, bool) {
	t, ok := d.tokens[id].(*Timestamp)
	return t, ok
}

// Revocation returns revocation data by id.
func (d *DiagnosticData) Revocation(id string) (*Revocation, bool) {
	r, ok := d.tokens[id].(*Revocation)
	return r, ok
}

// EvidenceRecord returns an evidence record by id.
func (d *DiagnosticData) EvidenceRecord(id string) (*EvidenceRecord, bool) {
	e, ok := d.tokens[id].(*EvidenceRecord)
	return e, ok
}

// X509 returns the parsed certificate when the raw encoding is known.
func (d *DiagnosticData) X509(id string) (*x509.Certificate, bool) {
	x, ok := d.parsed[id]
	return x, ok
}

// Chain returns the certificate chain of a signed object, signing certificate first.
func (d *DiagnosticData) Chain(o *SignedObject) []*Certificate {
	chain := make([]*Certificate, 0, len(o.CertificateChain))
	for _, id := range o.CertificateChain {
		if c, ok := d.Certificate(id); ok {
			chain = append(chain, c)
		}
	}
	return chain
}

// RevocationsFor returns the revocation data covering a certificate,
// ordered by production date, newest first.
func (d *DiagnosticData) RevocationsFor(certID string) []*Revocation {
	list := append([]*Revocation(nil), d.revocationsByID[certID]...)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ProductionDate.After(list[j].ProductionDate)
	})
	return list
}

// StatusIn returns the status of a certificate in the given revocation datum.
func (c *Certificate) StatusIn(revocationID string) (CertificateRevocation, bool) {
	for _, r := range c.Revocations {
		if r.RevocationID == revocationID {
			return r, true
		}
	}
	return CertificateRevocation{}, false
}

// TimestampsOf returns the timestamps of a signature, ordered by production time.
func (d *DiagnosticData) TimestampsOf(s *Signature) []*Timestamp {
	var list []*Timestamp
	for _, id := range s.TimestampIDs {
		if t, ok := d.Timestamp(id); ok {
			list = append(list, t)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ProductionTime.Before(list[j].ProductionTime)
	})
	return list
}

// CounterSignaturesOf returns the counter-signatures of a signature.
func (d *DiagnosticData) CounterSignaturesOf(s *Signature) []*Signature {
	var list []*Signature
	for _, cs := range d.Signatures {
		if cs.ParentID == s.ID {
			list = append(list, cs)
		}
	}
	return list
}

// MarkTrusted flags every certificate whose raw encoding matches an anchor.
// It must be called before the data is shared between validations.
func (d *DiagnosticData) MarkTrusted(anchors []*x509.Certificate) int {
	n := 0
	for _, c := range d.Certificates {
		for _, a := range anchors {
			if len(c.Raw) > 0 && bytes.Equal(a.Raw, c.Raw) {
				c.Trusted = true
				n++
				break
			}
		}
	}
	return n
}
