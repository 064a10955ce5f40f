package certvalidator

import (
	"testing"
	"time"

	"github.com/georgepadayatti/adesval/certvalidator/revinfo"
	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/internal/pkitest"
)

var (
	notBefore      = pkitest.Date(2020, 1, 1)
	leafNotBefore  = pkitest.Date(2022, 1, 1)
	leafNotAfter   = pkitest.Date(2025, 1, 1)
	validationTime = pkitest.Date(2024, 6, 1)
)

type fixture struct {
	pki            *pkitest.PKI
	root, ca, leaf *pkitest.Cert
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := pkitest.New(t)
	root := p.Root("Test Root", notBefore, pkitest.Date(2040, 1, 1))
	ca := p.CA("Test CA", root, notBefore, pkitest.Date(2035, 1, 1))
	leaf := p.Leaf("Test Signer", ca, leafNotBefore, leafNotAfter)
	return &fixture{pki: p, root: root, ca: ca, leaf: leaf}
}

func (f *fixture) addCRL(t *testing.T, issuer *pkitest.Cert, thisUpdate time.Time, revoked ...pkitest.Revoked) *diagnostic.Revocation {
	t.Helper()
	der := f.pki.CRL(issuer, thisUpdate, thisUpdate.AddDate(0, 1, 0), revoked...)
	rev, err := revinfo.AddCRL(f.pki.Data, der, issuer.X509)
	if err != nil {
		t.Fatalf("AddCRL() error = %v", err)
	}
	return rev
}

// addCRLs publishes fresh CRLs for the CA and the signer.
func (f *fixture) addCRLs(t *testing.T, thisUpdate time.Time, revoked ...pkitest.Revoked) {
	t.Helper()
	f.addCRL(t, f.root, thisUpdate)
	f.addCRL(t, f.ca, thisUpdate, revoked...)
}

func ids(chain []*diagnostic.Certificate) []string {
	out := make([]string, len(chain))
	for i, c := range chain {
		out[i] = c.ID
	}
	return out
}

func TestBuildChain(t *testing.T) {
	f := newFixture(t)
	// an unrelated certificate with the same issuer name must not be picked
	other := pkitest.New(t)
	stranger := other.CA("Test CA", other.Root("Other Root", notBefore, pkitest.Date(2040, 1, 1)), notBefore, pkitest.Date(2035, 1, 1))
	f.pki.Data.Certificates = append(f.pki.Data.Certificates, stranger.Diag)
	d := f.pki.Resolve(validationTime)

	chain, trusted := BuildChain(d, f.leaf.Diag)
	if !trusted {
		t.Fatal("expected chain to reach the trust anchor")
	}
	want := []string{f.leaf.ID(), f.ca.ID(), f.root.ID()}
	got := ids(chain)
	if len(got) != len(want) {
		t.Fatalf("chain = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chain[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFindIssuerTieBreak(t *testing.T) {
	for _, order := range [][]string{{"C-a", "C-b"}, {"C-b", "C-a"}} {
		f := newFixture(t)
		for _, id := range order {
			f.pki.Data.Certificates = append(f.pki.Data.Certificates, &diagnostic.Certificate{
				ID:        id,
				Subject:   f.ca.Diag.Subject,
				NotBefore: notBefore,
				NotAfter:  pkitest.Date(2036, 1, 1),
			})
		}
		d := f.pki.Resolve(validationTime)

		if got := findIssuer(d, f.leaf.Diag, map[string]bool{}); got == nil || got.ID != "C-a" {
			t.Errorf("findIssuer() with candidates %v = %v, want C-a", order, got)
		}
	}
}

func TestBuildChainUntrusted(t *testing.T) {
	f := newFixture(t)
	f.root.Diag.Trusted = false
	d := f.pki.Resolve(validationTime)

	chain, trusted := BuildChain(d, f.leaf.Diag)
	if trusted {
		t.Error("chain must not be trusted")
	}
	if len(chain) != 3 {
		t.Errorf("expected chain to stop at the self-signed root, got %d certificates", len(chain))
	}
	if TrustAnchorIndex(chain) != -1 {
		t.Error("TrustAnchorIndex() should be -1")
	}
}

func TestBuildChainStopsAtTrustedIntermediate(t *testing.T) {
	f := newFixture(t)
	f.ca.Diag.Trusted = true
	d := f.pki.Resolve(validationTime)

	chain, trusted := BuildChain(d, f.leaf.Diag)
	if !trusted || len(chain) != 2 {
		t.Errorf("BuildChain() = %v, %v; want 2 certificates ending at the trusted CA", ids(chain), trusted)
	}
}

func TestChainOf(t *testing.T) {
	f := newFixture(t)
	s := f.pki.Signature("S-1", f.leaf, validationTime, []byte("content"))
	d := f.pki.Resolve(validationTime)

	chain := ChainOf(d, &s.SignedObject)
	if len(chain) != 3 || chain[0].ID != f.leaf.ID() {
		t.Errorf("ChainOf() = %v", ids(chain))
	}

	// an explicit complete chain is used as provided
	s.CertificateChain = []string{f.leaf.ID(), f.ca.ID(), f.root.ID()}
	if got := ChainOf(d, &s.SignedObject); len(got) != 3 {
		t.Errorf("ChainOf() with explicit chain = %v", ids(got))
	}
}
