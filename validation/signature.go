package validation

import (
	"fmt"
	"sort"
	"time"

	"github.com/georgepadayatti/adesval/certvalidator/ltv"
	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/evidencerecord"
	"github.com/georgepadayatti/adesval/poe"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// SignatureValidator runs every validation level for the signatures of one
// resolved data set. The data, the policy and the base store are only read,
// so a validator may be shared between goroutines.
type SignatureValidator struct {
	Data   *diagnostic.DiagnosticData
	Policy *policy.Policy
	Time   time.Time
	// POE holds the proofs of existence every signature starts from. When
	// nil, BaseStore is used.
	POE *poe.Store
}

// BaseStore returns the proofs of existence known before validation: every
// token exists at the validation time, and the externally supplied proofs.
func BaseStore(d *diagnostic.DiagnosticData, validationTime time.Time) *poe.Store {
	b := poe.NewBuilder()
	var ids []string
	for _, c := range d.Certificates {
		ids = append(ids, c.ID)
	}
	for _, s := range d.Signatures {
		ids = append(ids, s.ID)
	}
	for _, t := range d.Timestamps {
		ids = append(ids, t.ID)
	}
	for _, r := range d.Revocations {
		ids = append(ids, r.ID)
	}
	for _, e := range d.EvidenceRecords {
		ids = append(ids, e.ID)
	}
	b.AddAt(validationTime, poe.TypeValidationTime, "", ids...)
	for _, e := range d.ExternalPOEs {
		b.AddAt(e.Time, poe.TypeExternal, "", e.TokenID)
	}
	return b.Freeze()
}

func contextOf(sig *diagnostic.Signature) policy.Context {
	if sig.IsCounterSignature() {
		return policy.ContextCounterSignature
	}
	return policy.ContextSignature
}

func (v *SignatureValidator) check() error {
	if v == nil || v.Data == nil || v.Policy == nil {
		return ErrInvalidInput
	}
	if !v.Data.Resolved() {
		return diagnostic.ErrNotResolved
	}
	return nil
}

// BasicValidation runs the basic building blocks for a signature at the
// validation time.
func (v *SignatureValidator) BasicValidation(sig *diagnostic.Signature) (*report.BBBResult, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, ErrInvalidInput
	}
	return ExecuteBBB(&BBBInput{
		Data:    v.Data,
		Token:   sig,
		Context: contextOf(sig),
		Policy:  v.Policy,
		Time:    v.Time,
	})
}

// ValidateTimestamp runs the basic building blocks for a timestamp at a
// control time. It lets the validator serve archive timestamps of evidence
// records.
func (v *SignatureValidator) ValidateTimestamp(ts *diagnostic.Timestamp, controlTime time.Time) (*report.BBBResult, error) {
	return ExecuteBBB(&BBBInput{
		Data:    v.Data,
		Token:   ts,
		Context: policy.ContextTimestamp,
		Policy:  v.Policy,
		Time:    controlTime,
	})
}

// TimestampValidation validates a timestamp at the validation time. A
// conclusion that proofs of existence may rescue goes through past
// signature validation with store.
func (v *SignatureValidator) TimestampValidation(ts *diagnostic.Timestamp, store *poe.Store) (*report.TimestampResult, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	bbb, err := v.ValidateTimestamp(ts, v.Time)
	if err != nil {
		return nil, err
	}
	res := &report.TimestampResult{
		TimestampID: ts.ID,
		Type:        string(ts.Type),
		BBB:         bbb,
		Conclusion:  bbb.Conclusion.Verdict(),
	}
	if bbb.Conclusion.Rescuable() {
		psv, err := v.pastValidation(&ts.SignedObject, policy.ContextTimestamp, bbb, store)
		if err != nil {
			return nil, err
		}
		res.PSV = psv
		res.Conclusion = psv.Conclusion.Verdict()
	}
	return res, nil
}

// pastValidation runs past certificate validation on the chain of a token
// and past signature validation on its current conclusion.
func (v *SignatureValidator) pastValidation(obj *diagnostic.SignedObject, ctx policy.Context, bbb *report.BBBResult, store *poe.Store) (*report.PSVResult, error) {
	signer, _ := v.Data.Certificate(bbb.SigningCertificateID)
	chain := chainFor(v.Data, obj, signer)
	pcv, err := ltv.PastCertificateValidation(&ltv.Input{
		Data:    v.Data,
		Chain:   chain,
		Context: ctx,
		Policy:  v.Policy,
		Time:    v.Time,
		POE:     store,
	})
	if err != nil {
		return nil, fmt.Errorf("past certificate validation of %s: %w", obj.ID, err)
	}
	return PastSignatureValidation(&PSVInput{
		Token:   obj,
		Chain:   chain,
		Context: ctx,
		Policy:  v.Policy,
		Time:    v.Time,
		Current: bbb.Conclusion,
		PCV:     pcv,
		POE:     store,
	}), nil
}

// ValidateSignature runs basic validation, validation with long-term
// validation data and validation with archival data, and aggregates the
// verdict of the signature.
func (v *SignatureValidator) ValidateSignature(sig *diagnostic.Signature) (*report.SignatureResult, error) {
	if err := v.check(); err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, ErrInvalidInput
	}
	base := v.POE
	if base == nil {
		base = BaseStore(v.Data, v.Time)
	}
	s := &session{
		v:    v,
		sig:  sig,
		ctx:  contextOf(sig),
		poes: base.Extend(),
		res:  &report.SignatureResult{SignatureID: sig.ID},
	}
	for _, step := range []func() error{
		s.basic,
		s.counterSignatures,
		s.timestamps,
		s.longTerm,
		s.archival,
	} {
		if err := step(); err != nil {
			return nil, fmt.Errorf("signature %s: %w", sig.ID, err)
		}
	}
	s.aggregate()
	return s.res, nil
}

// session is the state of one signature validation. Its POE builder is
// private to the signature.
type session struct {
	v    *SignatureValidator
	sig  *diagnostic.Signature
	ctx  policy.Context
	poes *poe.Builder
	res  *report.SignatureResult
}

func (s *session) basic() error {
	bbb, err := s.v.BasicValidation(s.sig)
	if err != nil {
		return err
	}
	s.res.Basic = bbb
	return nil
}

func (s *session) counterSignatures() error {
	for _, cs := range s.v.Data.CounterSignaturesOf(s.sig) {
		bbb, err := s.v.BasicValidation(cs)
		if err != nil {
			return err
		}
		s.res.CounterSignatures = append(s.res.CounterSignatures, bbb)
	}
	return nil
}

// timestamps validates content, signature and validation data timestamps.
// Valid timestamps prove the existence of the tokens they cover at their
// production time.
func (s *session) timestamps() error {
	for _, ts := range s.v.Data.TimestampsOf(s.sig) {
		if isArchival(ts) {
			continue
		}
		tr, err := s.v.TimestampValidation(ts, s.poes.Freeze())
		if err != nil {
			return err
		}
		s.res.Timestamps = append(s.res.Timestamps, tr)
		if tr.Conclusion.IsPassed() {
			s.poes.AddAt(ts.ProductionTime, poe.TypeTimestamp, ts.ID, ts.CoveredIDs...)
		}
	}
	return nil
}

func isArchival(ts *diagnostic.Timestamp) bool {
	return ts.Type == diagnostic.TimestampArchive || ts.Type == diagnostic.TimestampEvidenceRecord
}

func (s *session) longTerm() error {
	b := report.NewBlock("LTV")
	s.res.LongTerm = b
	for _, tr := range s.res.Timestamps {
		b.Apply(report.Check{
			Tag:     report.LTV_TSV,
			Level:   policy.LevelWarn,
			Info:    tr.TimestampID,
			BlockID: tr.TimestampID,
			Test:    tr.Conclusion.IsPassed,
		})
	}

	basic := s.res.Basic.Conclusion
	ok := b.Apply(report.Check{
		Tag:           report.LTV_ABSV,
		Level:         policy.LevelFail,
		Indication:    basic.Indication,
		SubIndication: basic.SubIndication,
		Test:          func() bool { return basic.IsPassed() || basic.Rescuable() },
	}) && b.Apply(report.Check{
		Tag:           report.LTV_TSO,
		Level:         policy.LevelFail,
		Indication:    report.Indeterminate,
		SubIndication: report.TimestampOrderFailure,
		Test:          s.timestampsOrdered,
	})
	if !ok {
		return nil
	}
	if basic.IsPassed() {
		b.Run()
		return nil
	}

	psv, err := s.v.pastValidation(&s.sig.SignedObject, s.ctx, s.res.Basic, s.poes.Freeze())
	if err != nil {
		return err
	}
	s.res.LongTermPSV = psv
	applyPSV(b, report.LTV_PSV, psv)
	return nil
}

// timestampsOrdered reports whether every valid content timestamp was
// produced before every valid signature or validation data timestamp.
func (s *session) timestampsOrdered() bool {
	var latestContent, earliestSignature *time.Time
	for _, tr := range s.res.Timestamps {
		ts, ok := s.v.Data.Timestamp(tr.TimestampID)
		if !ok || !tr.Conclusion.IsPassed() {
			continue
		}
		at := ts.ProductionTime
		switch ts.Type {
		case diagnostic.TimestampContent:
			if latestContent == nil || at.After(*latestContent) {
				latestContent = &at
			}
		case diagnostic.TimestampSignature, diagnostic.TimestampValidationData:
			if earliestSignature == nil || at.Before(*earliestSignature) {
				earliestSignature = &at
			}
		}
	}
	return latestContent == nil || earliestSignature == nil || !latestContent.After(*earliestSignature)
}

// archival validates evidence records and archive timestamps, latest first,
// then retries past signature validation with the proofs they add.
func (s *session) archival() error {
	b := report.NewBlock("ARCH")
	s.res.Archival = b

	for _, id := range s.sig.EvidenceRecordIDs {
		er, ok := s.v.Data.EvidenceRecord(id)
		if !ok {
			return fmt.Errorf("%w: evidence record %s", diagnostic.ErrUnresolvedReference, id)
		}
		erv, err := evidencerecord.Validate(&evidencerecord.Input{
			Data:       s.v.Data,
			Record:     er,
			Policy:     s.v.Policy,
			Time:       s.v.Time,
			Timestamps: s.v,
		})
		if err != nil {
			return err
		}
		s.res.EvidenceRecords = append(s.res.EvidenceRecords, erv)
		if erv.Passed() && erv.POETime != nil {
			covered := make([]string, 0, len(er.CoveredObjects))
			for _, o := range er.CoveredObjects {
				covered = append(covered, o.ID)
			}
			s.poes.AddAt(*erv.POETime, poe.TypeEvidenceRecord, er.ID, covered...)
		}
		b.Apply(report.Check{
			Tag:     report.ARCH_ERV,
			Level:   policy.LevelWarn,
			Info:    er.ID,
			BlockID: er.ID,
			Test:    erv.Passed,
		})
	}

	for _, ts := range s.archiveTimestamps() {
		tr, err := s.v.TimestampValidation(ts, s.poes.Freeze())
		if err != nil {
			return err
		}
		s.res.Timestamps = append(s.res.Timestamps, tr)
		if tr.Conclusion.IsPassed() {
			s.poes.AddAt(ts.ProductionTime, poe.TypeArchiveTimestamp, ts.ID, ts.CoveredIDs...)
		}
		b.Apply(report.Check{
			Tag:     report.ARCH_ATSV,
			Level:   policy.LevelWarn,
			Info:    ts.ID,
			BlockID: ts.ID,
			Test:    tr.Conclusion.IsPassed,
		})
	}

	lt := s.res.LongTerm.Conclusion
	if !b.Apply(report.Check{
		Tag:           report.ARCH_LTVV,
		Level:         policy.LevelFail,
		Indication:    lt.Indication,
		SubIndication: lt.SubIndication,
		Test:          func() bool { return lt.IsPassed() || lt.Rescuable() },
	}) {
		return nil
	}
	if lt.IsPassed() {
		b.Run()
		return nil
	}

	psv, err := s.v.pastValidation(&s.sig.SignedObject, s.ctx, s.res.Basic, s.poes.Freeze())
	if err != nil {
		return err
	}
	s.res.ArchivalPSV = psv
	applyPSV(b, report.ARCH_BSTPS, psv)
	return nil
}

// archiveTimestamps returns the archive timestamps of the signature, latest first.
func (s *session) archiveTimestamps() []*diagnostic.Timestamp {
	var list []*diagnostic.Timestamp
	for _, ts := range s.v.Data.TimestampsOf(s.sig) {
		if ts.Type == diagnostic.TimestampArchive {
			list = append(list, ts)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ProductionTime.After(list[j].ProductionTime)
	})
	return list
}

func (s *session) aggregate() {
	final := s.res.Archival.Conclusion
	s.res.Indication = report.Total(final)
	s.res.SubIndication = final.SubIndication
	s.res.BestSignatureTime = s.v.Time
	if p, ok := s.poes.Freeze().Lowest(s.sig.ID); ok {
		s.res.BestSignatureTime = p.Time
	}
}

func applyPSV(b *report.Block, tag report.MessageTag, psv *report.PSVResult) {
	if !psv.Passed() {
		b.Fail(tag, psv.Conclusion.Indication, psv.Conclusion.SubIndication, "")
		return
	}
	info := ""
	if psv.BestSignatureTime != nil {
		info = psv.BestSignatureTime.Format(time.RFC3339)
	}
	b.Run(report.Check{
		Tag:   tag,
		Level: policy.LevelFail,
		Info:  info,
		Test:  func() bool { return true },
	})
}
