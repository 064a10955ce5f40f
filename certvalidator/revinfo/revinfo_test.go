package revinfo

import (
	"errors"
	"testing"
	"time"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/internal/pkitest"
)

var (
	caNotBefore   = pkitest.Date(2020, 1, 1)
	leafNotBefore = pkitest.Date(2022, 1, 1)
	leafNotAfter  = pkitest.Date(2025, 1, 1)
)

type testPKI struct {
	pki      *pkitest.PKI
	ca, leaf *pkitest.Cert
}

func newTestPKI(t *testing.T) *testPKI {
	t.Helper()
	p := pkitest.New(t)
	ca := p.Root("Test CA", caNotBefore, pkitest.Date(2035, 1, 1))
	leaf := p.Leaf("Test Signer", ca, leafNotBefore, leafNotAfter)
	return &testPKI{pki: p, ca: ca, leaf: leaf}
}

func ptr(t time.Time) *time.Time { return &t }

func TestRevocationReasonString(t *testing.T) {
	tests := []struct {
		reason   RevocationReason
		expected string
	}{
		{ReasonUnspecified, "unspecified"},
		{ReasonKeyCompromise, "keyCompromise"},
		{ReasonCACompromise, "cACompromise"},
		{ReasonAffiliationChanged, "affiliationChanged"},
		{ReasonSuperseded, "superseded"},
		{ReasonCessationOfOperation, "cessationOfOperation"},
		{ReasonCertificateHold, "certificateHold"},
		{ReasonRemoveFromCRL, "removeFromCRL"},
		{ReasonPrivilegeWithdrawn, "privilegeWithdrawn"},
		{ReasonAACompromise, "aACompromise"},
		{RevocationReason(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if result := tt.reason.String(); result != tt.expected {
			t.Errorf("RevocationReason(%d).String() = %q, want %q", tt.reason, result, tt.expected)
		}
	}
}

func TestAddCRL(t *testing.T) {
	p := newTestPKI(t)
	other := p.pki.Leaf("Other Signer", p.ca, leafNotBefore, leafNotAfter)
	revokedAt := pkitest.Date(2024, 3, 1)
	der := p.pki.CRL(p.ca, pkitest.Date(2024, 5, 30), pkitest.Date(2024, 6, 30),
		pkitest.Revoked{Cert: p.leaf, At: revokedAt, Reason: int(ReasonKeyCompromise)})

	rev, err := AddCRL(p.pki.Data, der, p.ca.X509)
	if err != nil {
		t.Fatalf("AddCRL() error = %v", err)
	}
	if rev.Type != diagnostic.RevocationCRL || !rev.SignatureIntact {
		t.Errorf("unexpected revocation token: %+v", rev)
	}
	if rev.SigningCertificateID != p.ca.ID() {
		t.Errorf("SigningCertificateID = %s, want CA", rev.SigningCertificateID)
	}
	if rev.NextUpdate == nil || !rev.NextUpdate.Equal(pkitest.Date(2024, 6, 30)) {
		t.Errorf("NextUpdate = %v", rev.NextUpdate)
	}

	st, ok := p.leaf.Diag.StatusIn(rev.ID)
	if !ok || st.Status != diagnostic.StatusRevoked || !st.RevocationDate.Equal(revokedAt) || st.Reason != "keyCompromise" {
		t.Errorf("leaf status = %+v, %v", st, ok)
	}
	if st, ok := other.Diag.StatusIn(rev.ID); !ok || st.Status != diagnostic.StatusGood {
		t.Errorf("other status = %+v, %v", st, ok)
	}
	if len(p.pki.Data.Revocations) != 1 {
		t.Errorf("expected the CRL to be appended to the diagnostic data")
	}
}

func TestAddCRLErrors(t *testing.T) {
	p := newTestPKI(t)
	if _, err := AddCRL(p.pki.Data, []byte("not a crl"), p.ca.X509); err == nil {
		t.Error("expected parse error")
	}

	der := p.pki.CRL(p.ca, pkitest.Date(2024, 5, 30), pkitest.Date(2024, 6, 30))
	if _, err := AddCRL(p.pki.Data, der, p.leaf.X509); !errors.Is(err, ErrIssuerMismatch) {
		t.Errorf("expected ErrIssuerMismatch, got %v", err)
	}

	foreign := pkitest.New(t)
	foreignCA := foreign.Root("Test CA", caNotBefore, pkitest.Date(2035, 1, 1))
	der = foreign.CRL(foreignCA, pkitest.Date(2024, 5, 30), pkitest.Date(2024, 6, 30))
	if _, err := AddCRL(p.pki.Data, der, foreignCA.X509); !errors.Is(err, ErrIssuerUnknown) {
		t.Errorf("expected ErrIssuerUnknown, got %v", err)
	}
}

func TestAddOCSP(t *testing.T) {
	p := newTestPKI(t)
	revokedAt := pkitest.Date(2024, 3, 1)
	der := p.pki.OCSP(p.leaf, p.ca, pkitest.Date(2024, 5, 30), pkitest.Date(2024, 6, 30),
		&pkitest.Revoked{Cert: p.leaf, At: revokedAt, Reason: int(ReasonCertificateHold)})

	rev, err := AddOCSP(p.pki.Data, der, p.ca.X509)
	if err != nil {
		t.Fatalf("AddOCSP() error = %v", err)
	}
	if rev.Type != diagnostic.RevocationOCSP || !rev.SignatureIntact {
		t.Errorf("unexpected revocation token: %+v", rev)
	}
	st, ok := p.leaf.Diag.StatusIn(rev.ID)
	if !ok || !OnHold(st) {
		t.Errorf("expected the signer on hold, got %+v", st)
	}
	if !RevokedAt(st, revokedAt) || RevokedAt(st, revokedAt.Add(-time.Second)) {
		t.Error("RevokedAt() boundaries")
	}
}

func TestAddOCSPUnknownCertificate(t *testing.T) {
	p := newTestPKI(t)
	foreign := pkitest.New(t)
	fca := foreign.Root("Foreign CA", caNotBefore, pkitest.Date(2035, 1, 1))
	fleaf := foreign.Leaf("Foreign Signer", fca, leafNotBefore, leafNotAfter)
	p.pki.Data.Certificates = append(p.pki.Data.Certificates, fca.Diag)

	der := foreign.OCSP(fleaf, fca, pkitest.Date(2024, 5, 30), pkitest.Date(2024, 6, 30), nil)
	if _, err := AddOCSP(p.pki.Data, der, fca.X509); !errors.Is(err, ErrNoRevocationInfo) {
		t.Errorf("expected ErrNoRevocationInfo, got %v", err)
	}
}

func TestConsistent(t *testing.T) {
	cert := &diagnostic.Certificate{NotBefore: leafNotBefore, NotAfter: leafNotAfter}
	tests := []struct {
		name string
		rev  *diagnostic.Revocation
		want bool
	}{
		{"within validity", &diagnostic.Revocation{ThisUpdate: pkitest.Date(2024, 1, 1)}, true},
		{"at expiry", &diagnostic.Revocation{ThisUpdate: leafNotAfter}, true},
		{"before issuance", &diagnostic.Revocation{ThisUpdate: pkitest.Date(2021, 1, 1)}, false},
		{"after expiry", &diagnostic.Revocation{ThisUpdate: pkitest.Date(2026, 1, 1)}, false},
		{"after expiry with expiredCertsOnCRL", &diagnostic.Revocation{
			ThisUpdate:        pkitest.Date(2026, 1, 1),
			ExpiredCertsOnCRL: ptr(pkitest.Date(2020, 1, 1)),
		}, true},
		{"after expiry with late expiredCertsOnCRL", &diagnostic.Revocation{
			ThisUpdate:        pkitest.Date(2026, 1, 1),
			ExpiredCertsOnCRL: ptr(pkitest.Date(2025, 6, 1)),
		}, false},
		{"after expiry with archive cutoff", &diagnostic.Revocation{
			ThisUpdate:    pkitest.Date(2026, 1, 1),
			ArchiveCutOff: ptr(pkitest.Date(2024, 1, 1)),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Consistent(cert, tt.rev); got != tt.want {
				t.Errorf("Consistent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckFreshness(t *testing.T) {
	at := pkitest.Date(2024, 6, 1)
	rev := &diagnostic.Revocation{
		SignedObject: diagnostic.SignedObject{ID: "R-1"},
		ThisUpdate:   pkitest.Date(2024, 5, 1),
		NextUpdate:   ptr(pkitest.Date(2024, 6, 1)),
	}
	tests := []struct {
		name   string
		at     time.Time
		maxAge time.Duration
		fresh  bool
	}{
		{"next update reached exactly", at, 0, true},
		{"next update passed", at.Add(time.Second), 0, false},
		{"max age respected", at, 31 * 24 * time.Hour, true},
		{"max age exceeded", at, 24 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFreshness(rev, tt.at, tt.maxAge)
			if (err == nil) != tt.fresh {
				t.Errorf("CheckFreshness() error = %v, fresh = %v", err, tt.fresh)
			}
			if err != nil && !errors.Is(err, ErrNotFresh) {
				t.Errorf("expected ErrNotFresh, got %v", err)
			}
		})
	}

	noNext := &diagnostic.Revocation{ThisUpdate: pkitest.Date(2024, 5, 1)}
	if err := CheckFreshness(noNext, at, 0); !errors.Is(err, ErrNotFresh) {
		t.Error("revocation data without nextUpdate and without a maximum age is not fresh")
	}
}

func TestAcceptableAndLatest(t *testing.T) {
	p := newTestPKI(t)
	older, err := AddCRL(p.pki.Data, p.pki.CRL(p.ca, pkitest.Date(2024, 1, 1), pkitest.Date(2024, 2, 1)), p.ca.X509)
	if err != nil {
		t.Fatal(err)
	}
	newer, err := AddCRL(p.pki.Data, p.pki.CRL(p.ca, pkitest.Date(2024, 5, 1), pkitest.Date(2024, 6, 1)), p.ca.X509)
	if err != nil {
		t.Fatal(err)
	}
	d := p.pki.Resolve(pkitest.Date(2024, 6, 1))

	if err := Acceptable(d, p.leaf.Diag, newer, pkitest.Date(2024, 4, 1)); !errors.Is(err, ErrNotYetIssued) {
		t.Errorf("expected ErrNotYetIssued, got %v", err)
	}
	if err := Acceptable(d, p.leaf.Diag, newer, pkitest.Date(2024, 6, 1)); err != nil {
		t.Errorf("Acceptable() error = %v", err)
	}

	sel, ok := LatestAcceptable(d, p.leaf.Diag, pkitest.Date(2024, 6, 1), nil)
	if !ok || sel.Revocation.ID != newer.ID {
		t.Errorf("expected the newest CRL, got %+v", sel)
	}
	sel, ok = LatestAcceptable(d, p.leaf.Diag, pkitest.Date(2024, 3, 1), nil)
	if !ok || sel.Revocation.ID != older.ID {
		t.Errorf("expected the older CRL before the newer one is issued, got %+v", sel)
	}
	_, ok = LatestAcceptable(d, p.leaf.Diag, pkitest.Date(2024, 6, 1), func(r *diagnostic.Revocation) bool { return false })
	if ok {
		t.Error("filter must exclude every datum")
	}

	newer.SignatureIntact = false
	if err := Acceptable(d, p.leaf.Diag, newer, pkitest.Date(2024, 6, 1)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}
