package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/digest"
	"github.com/georgepadayatti/adesval/evidencerecord"
	"github.com/georgepadayatti/adesval/internal/pkitest"
	"github.com/georgepadayatti/adesval/poe"
	"github.com/georgepadayatti/adesval/validation/report"
)

func (f *fixture) validator(t *testing.T) *SignatureValidator {
	t.Helper()
	d := f.pki.Resolve(validationTime)
	return &SignatureValidator{Data: d, Policy: defaultPolicy(t), Time: validationTime}
}

func (f *fixture) validate(t *testing.T) *report.SignatureResult {
	t.Helper()
	res, err := f.validator(t).ValidateSignature(f.sig)
	if err != nil {
		t.Fatalf("ValidateSignature() error = %v", err)
	}
	return res
}

// addEvidenceRecord protects the signed document with a single archive
// timestamp produced at.
func (f *fixture) addEvidenceRecord(t *testing.T, at time.Time) *diagnostic.EvidenceRecord {
	t.Helper()
	content := []byte("signed document")
	tree := [][][]byte{{pkitest.Hash(t, digest.SHA256, content)}}
	root, err := evidencerecord.Root(digest.SHA256, tree)
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	ats := f.pki.Timestamp("ATS-1", f.tsa, diagnostic.TimestampEvidenceRecord, at, digest.SHA256, root, f.sig.ID)
	er := &diagnostic.EvidenceRecord{
		ID:             "ER-1",
		CoveredObjects: []diagnostic.DataObject{{ID: f.sig.ID, Content: content}},
		Chains: []diagnostic.ArchiveTimestampChain{{
			Order:           1,
			DigestAlgorithm: digest.SHA256,
			Timestamps:      []diagnostic.ArchiveTimestamp{{TimestampID: ats.ID, HashTree: tree}},
		}},
	}
	f.pki.Data.EvidenceRecords = append(f.pki.Data.EvidenceRecords, er)
	f.sig.EvidenceRecordIDs = append(f.sig.EvidenceRecordIDs, er.ID)
	return er
}

func assertTotal(t *testing.T, res *report.SignatureResult, ind report.Indication, sub report.SubIndication) {
	t.Helper()
	if res.Indication != ind || res.SubIndication != sub {
		t.Errorf("signature %s: got %s/%s, want %s/%s", res.SignatureID, res.Indication, res.SubIndication, ind, sub)
	}
}

func TestValidateSignaturePassed(t *testing.T) {
	f := newFixture(t)
	f.publishCRL(t, pkitest.Date(2024, 5, 30))

	res := f.validate(t)
	assertTotal(t, res, report.TotalPassed, "")
	if !res.BestSignatureTime.Equal(validationTime) {
		t.Errorf("BestSignatureTime = %v, want the validation time", res.BestSignatureTime)
	}
	if res.LongTermPSV != nil || res.ArchivalPSV != nil {
		t.Error("past signature validation must not run for a valid signature")
	}
}

func TestValidateSignatureRevokedAfterTimestamp(t *testing.T) {
	f := newFixture(t)
	f.revokeSigner(t)
	tsTime := pkitest.Date(2023, 1, 11)
	f.pki.SignatureTimestamp("TS-1", f.tsa, f.sig, tsTime)

	res := f.validate(t)
	assertConclusion(t, res.Basic.Conclusion, report.Indeterminate, report.RevokedNoPOE)
	if len(res.Timestamps) != 1 || !res.Timestamps[0].Conclusion.IsPassed() {
		t.Fatalf("signature timestamp: %+v", res.Timestamps)
	}
	if res.LongTermPSV == nil || res.LongTermPSV.BestSignatureTime == nil {
		t.Fatal("expected past signature validation with a best signature time")
	}
	if !res.LongTermPSV.BestSignatureTime.Equal(tsTime) {
		t.Errorf("PSV best signature time = %v, want %v", res.LongTermPSV.BestSignatureTime, tsTime)
	}
	assertTotal(t, res, report.TotalPassed, "")
	if !res.BestSignatureTime.Equal(tsTime) {
		t.Errorf("BestSignatureTime = %v, want %v", res.BestSignatureTime, tsTime)
	}
}

func TestValidateSignatureRevokedAndExpired(t *testing.T) {
	f := newFixture(t)
	f.revokeSigner(t)
	tsTime := pkitest.Date(2023, 1, 11)
	f.pki.SignatureTimestamp("TS-1", f.tsa, f.sig, tsTime)

	// the signer expired on 2026-01-01
	at := pkitest.Date(2027, 1, 1)
	v := &SignatureValidator{Data: f.pki.Resolve(at), Policy: defaultPolicy(t), Time: at}
	res, err := v.ValidateSignature(f.sig)
	if err != nil {
		t.Fatalf("ValidateSignature() error = %v", err)
	}
	assertConclusion(t, res.Basic.Conclusion, report.Indeterminate, report.RevokedNoPOE)
	assertTotal(t, res, report.TotalPassed, "")
	if !res.BestSignatureTime.Equal(tsTime) {
		t.Errorf("BestSignatureTime = %v, want %v", res.BestSignatureTime, tsTime)
	}
}

func TestValidateSignatureRevokedWithoutProof(t *testing.T) {
	tests := []struct {
		name string
		ts   *time.Time
	}{
		{name: "no timestamp"},
		{name: "timestamp after revocation", ts: ptr(pkitest.Date(2024, 4, 1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.revokeSigner(t)
			if tt.ts != nil {
				f.pki.SignatureTimestamp("TS-1", f.tsa, f.sig, *tt.ts)
			}
			res := f.validate(t)
			assertTotal(t, res, report.Indeterminate, report.RevokedNoPOE)
			assertConclusion(t, res.LongTerm.Conclusion, report.Indeterminate, report.RevokedNoPOE)
		})
	}
}

func TestValidateSignatureEvidenceRecord(t *testing.T) {
	f := newFixture(t)
	f.revokeSigner(t)
	erTime := pkitest.Date(2023, 6, 1)
	f.addEvidenceRecord(t, erTime)

	res := f.validate(t)
	assertConclusion(t, res.LongTerm.Conclusion, report.Indeterminate, report.RevokedNoPOE)
	if len(res.EvidenceRecords) != 1 || !res.EvidenceRecords[0].Passed() {
		t.Fatalf("evidence record: %+v", res.EvidenceRecords)
	}
	if res.ArchivalPSV == nil || !res.ArchivalPSV.Passed() {
		t.Fatalf("archival past signature validation: %+v", res.ArchivalPSV)
	}
	assertTotal(t, res, report.TotalPassed, "")
	if !res.BestSignatureTime.Equal(erTime) {
		t.Errorf("BestSignatureTime = %v, want %v", res.BestSignatureTime, erTime)
	}
}

func TestValidateSignatureBrokenEvidenceRecord(t *testing.T) {
	f := newFixture(t)
	f.revokeSigner(t)
	er := f.addEvidenceRecord(t, pkitest.Date(2023, 6, 1))
	er.CoveredObjects[0].Content = []byte("another document")

	res := f.validate(t)
	if len(res.EvidenceRecords) != 1 || res.EvidenceRecords[0].Passed() {
		t.Fatalf("expected a failed evidence record, got %+v", res.EvidenceRecords)
	}
	found := false
	for _, w := range res.Archival.Conclusion.Warnings {
		if w.Key == report.ARCH_ERV {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a %s warning, got %v", report.ARCH_ERV, res.Archival.Conclusion.Warnings)
	}
	assertTotal(t, res, report.Indeterminate, report.RevokedNoPOE)
}

func TestValidateSignatureArchiveTimestamp(t *testing.T) {
	f := newFixture(t)
	f.revokeSigner(t)
	atsTime := pkitest.Date(2023, 9, 1)
	ats := f.pki.Timestamp("ATS-1", f.tsa, diagnostic.TimestampArchive, atsTime, digest.SHA256, []byte("archive imprint"), f.sig.ID)
	f.sig.TimestampIDs = append(f.sig.TimestampIDs, ats.ID)

	res := f.validate(t)
	assertConclusion(t, res.LongTerm.Conclusion, report.Indeterminate, report.RevokedNoPOE)
	assertTotal(t, res, report.TotalPassed, "")
	if !res.BestSignatureTime.Equal(atsTime) {
		t.Errorf("BestSignatureTime = %v, want %v", res.BestSignatureTime, atsTime)
	}
}

func TestValidateSignatureTimestampOrder(t *testing.T) {
	f := newFixture(t)
	f.publishCRL(t, pkitest.Date(2024, 5, 30))
	content := f.pki.Timestamp("TS-C", f.tsa, diagnostic.TimestampContent, pkitest.Date(2023, 1, 5), digest.SHA256, []byte("content imprint"), f.sig.ID)
	f.sig.TimestampIDs = append(f.sig.TimestampIDs, content.ID)
	f.pki.SignatureTimestamp("TS-S", f.tsa, f.sig, pkitest.Date(2023, 1, 3))

	res := f.validate(t)
	assertConclusion(t, res.Basic.Conclusion, report.Passed, "")
	assertConclusion(t, res.LongTerm.Conclusion, report.Indeterminate, report.TimestampOrderFailure)
	assertTotal(t, res, report.Indeterminate, report.TimestampOrderFailure)
}

func TestValidateSignatureFailed(t *testing.T) {
	f := newFixture(t)
	f.publishCRL(t, pkitest.Date(2024, 5, 30))
	f.pki.SignatureTimestamp("TS-1", f.tsa, f.sig, pkitest.Date(2023, 1, 11))
	f.sig.DigestMatchers[0].Intact = false

	res := f.validate(t)
	assertTotal(t, res, report.TotalFailed, report.HashFailure)
	if res.LongTermPSV != nil {
		t.Error("a failed signature is not rescued")
	}
}

func TestValidateSignatureCounterSignatures(t *testing.T) {
	f := newFixture(t)
	f.publishCRL(t, pkitest.Date(2024, 5, 30))
	cs := f.pki.Signature("S-2", f.signer, signingTime.Add(time.Hour), f.sig.SignatureValue)
	cs.ParentID = f.sig.ID

	res := f.validate(t)
	if len(res.CounterSignatures) != 1 {
		t.Fatalf("expected 1 counter-signature, got %d", len(res.CounterSignatures))
	}
	if got := res.CounterSignatures[0]; got.TokenID != cs.ID || got.Context != "COUNTER_SIGNATURE" {
		t.Errorf("counter-signature %s in %s", got.TokenID, got.Context)
	}
	assertConclusion(t, res.CounterSignatures[0].Conclusion, report.Passed, "")
}

func TestValidateSignatureDoesNotShareProofs(t *testing.T) {
	f := newFixture(t)
	f.revokeSigner(t)
	f.pki.SignatureTimestamp("TS-1", f.tsa, f.sig, pkitest.Date(2023, 1, 11))
	v := f.validator(t)
	base := BaseStore(v.Data, v.Time)
	v.POE = base

	if _, err := v.ValidateSignature(f.sig); err != nil {
		t.Fatal(err)
	}
	if _, ok := base.LowestAtOrBefore(f.sig.ID, revocationTime); ok {
		t.Error("timestamp proofs leaked into the base store")
	}
}

func TestValidateSignatureErrors(t *testing.T) {
	f := newFixture(t)
	unresolved := &SignatureValidator{Data: f.pki.Data, Policy: defaultPolicy(t), Time: validationTime}
	if _, err := unresolved.ValidateSignature(f.sig); !errors.Is(err, diagnostic.ErrNotResolved) {
		t.Errorf("expected ErrNotResolved, got %v", err)
	}
	v := f.validator(t)
	if _, err := v.ValidateSignature(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	v.Policy = nil
	if _, err := v.ValidateSignature(f.sig); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without policy, got %v", err)
	}
}

func TestBaseStore(t *testing.T) {
	f := newFixture(t)
	external := pkitest.Date(2022, 6, 1)
	f.pki.Data.ExternalPOEs = []diagnostic.ExternalPOE{{TokenID: f.sig.ID, Time: external}}
	d := f.pki.Resolve(validationTime)

	store := BaseStore(d, validationTime)
	for _, id := range []string{f.sig.ID, f.root.ID(), f.signer.ID()} {
		if !store.Exists(id, validationTime) {
			t.Errorf("%s has no proof at the validation time", id)
		}
	}
	p, ok := store.Lowest(f.sig.ID)
	if !ok || !p.Time.Equal(external) || p.Type != poe.TypeExternal {
		t.Errorf("Lowest() = %+v, want the external proof", p)
	}
}
