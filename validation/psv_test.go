package validation

import (
	"testing"
	"time"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/internal/pkitest"
	"github.com/georgepadayatti/adesval/poe"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

func passedPCV(control time.Time) *report.PCVResult {
	pcv := &report.PCVResult{Block: *report.NewBlock("PCV"), ControlTime: control}
	pcv.Run()
	return pcv
}

func TestPastSignatureValidation(t *testing.T) {
	control := pkitest.Date(2024, 3, 1)
	signer := &diagnostic.Certificate{
		ID:        "C-signer",
		NotBefore: pkitest.Date(2022, 1, 1),
		NotAfter:  pkitest.Date(2026, 1, 1),
	}
	anchor := &diagnostic.Certificate{ID: "C-root", Trusted: true}
	token := &diagnostic.SignedObject{ID: "S-1", DigestAlgorithm: "SHA256", EncryptionAlgorithm: "ECDSA", KeyLength: 256}

	withPOE := func(at time.Time) *poe.Store {
		b := poe.NewBuilder()
		b.AddAt(at, poe.TypeTimestamp, "T-1", "S-1")
		return b.Freeze()
	}
	sunset, err := policy.ParseYAML([]byte(`
name: sunset
cryptographic:
  level: FAIL
  expirations:
    - {algorithm: SHA256, date: "2024-01-01"}
`))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}

	tests := []struct {
		name    string
		current report.SubIndication
		pcv     *report.PCVResult
		store   *poe.Store
		policy  *policy.Policy
		want    report.Indication
		wantSub report.SubIndication
		bst     *time.Time
	}{
		{
			name:    "past certificate validation not passed",
			current: report.RevokedNoPOE,
			pcv:     &report.PCVResult{Block: report.Block{Conclusion: report.NewConclusion(report.Indeterminate, report.NoCertificateChainFound)}},
			store:   withPOE(pkitest.Date(2023, 1, 11)),
			want:    report.Indeterminate,
			wantSub: report.RevokedNoPOE,
		},
		{
			name:    "no proof of existence",
			current: report.RevokedNoPOE,
			pcv:     passedPCV(control),
			want:    report.Indeterminate,
			wantSub: report.RevokedNoPOE,
		},
		{
			name:    "proof after the control time",
			current: report.RevokedNoPOE,
			pcv:     passedPCV(control),
			store:   withPOE(pkitest.Date(2024, 4, 1)),
			want:    report.Indeterminate,
			wantSub: report.RevokedNoPOE,
		},
		{
			name:    "proof before revocation",
			current: report.RevokedNoPOE,
			pcv:     passedPCV(control),
			store:   withPOE(pkitest.Date(2023, 1, 11)),
			want:    report.Passed,
			bst:     ptr(pkitest.Date(2023, 1, 11)),
		},
		{
			name:    "proof before CA revocation",
			current: report.RevokedCANoPOE,
			pcv:     passedPCV(control),
			store:   withPOE(control),
			want:    report.Passed,
			bst:     ptr(control),
		},
		{
			name:    "best signature time before the certificate validity",
			current: report.OutOfBoundsNoPOE,
			pcv:     passedPCV(control),
			store:   withPOE(pkitest.Date(2021, 6, 1)),
			want:    report.Indeterminate,
			wantSub: report.NotYetValid,
		},
		{
			name:    "best signature time within the certificate validity",
			current: report.OutOfBoundsNotRevoked,
			pcv:     passedPCV(control),
			store:   withPOE(pkitest.Date(2023, 1, 11)),
			want:    report.Passed,
		},
		{
			name:    "algorithm proven before expiration",
			current: report.CryptoConstraintsFailureNoPOE,
			pcv:     passedPCV(control),
			store:   withPOE(pkitest.Date(2023, 6, 1)),
			policy:  sunset,
			want:    report.Passed,
		},
		{
			name:    "algorithm proven after expiration",
			current: report.CryptoConstraintsFailureNoPOE,
			pcv:     passedPCV(control),
			store:   withPOE(pkitest.Date(2024, 2, 1)),
			policy:  sunset,
			want:    report.Indeterminate,
			wantSub: report.CryptoConstraintsFailureNoPOE,
		},
		{
			name:    "try later is kept",
			current: report.TryLater,
			pcv:     passedPCV(control),
			store:   withPOE(pkitest.Date(2023, 1, 11)),
			want:    report.Indeterminate,
			wantSub: report.TryLater,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.policy
			if p == nil {
				p = defaultPolicy(t)
			}
			res := PastSignatureValidation(&PSVInput{
				Token:   token,
				Chain:   []*diagnostic.Certificate{signer, anchor},
				Context: policy.ContextSignature,
				Policy:  p,
				Time:    validationTime,
				Current: report.NewConclusion(report.Indeterminate, tt.current),
				PCV:     tt.pcv,
				POE:     tt.store,
			})
			assertConclusion(t, res.Conclusion, tt.want, tt.wantSub)
			if tt.bst != nil && (res.BestSignatureTime == nil || !res.BestSignatureTime.Equal(*tt.bst)) {
				t.Errorf("BestSignatureTime = %v, want %v", res.BestSignatureTime, *tt.bst)
			}
			if res.PCV != tt.pcv {
				t.Error("the past certificate validation must be attached to the result")
			}
		})
	}
}

func TestAlgorithmsProvenSkipsTrustAnchor(t *testing.T) {
	sunset, err := policy.ParseYAML([]byte(`
name: sunset
cryptographic:
  level: FAIL
  expirations:
    - {algorithm: SHA1, date: "2012-08-01"}
`))
	if err != nil {
		t.Fatal(err)
	}
	anchor := &diagnostic.Certificate{ID: "C-root", Trusted: true, DigestAlgorithm: "SHA1"}
	in := &PSVInput{
		Token:   &diagnostic.SignedObject{ID: "S-1", DigestAlgorithm: "SHA256"},
		Chain:   []*diagnostic.Certificate{anchor},
		Context: policy.ContextSignature,
		Policy:  sunset,
		Time:    validationTime,
	}
	if !algorithmsProven(in, poe.Empty) {
		t.Error("the algorithms of the trust anchor are not checked")
	}
}

func ptr[T any](v T) *T { return &v }
