// Package evidencerecord validates RFC 4998 / RFC 6283 evidence records:
// the archive timestamp chains, their reduced hash trees and the links
// between successive archive timestamps.
package evidencerecord

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// ErrInvalidInput is returned for a missing record, data set, policy or
// timestamp validator, and for malformed hash trees.
var ErrInvalidInput = errors.New("invalid evidence record input")

// TimestampValidator runs the basic building blocks for an archive
// timestamp at a control time.
type TimestampValidator interface {
	ValidateTimestamp(ts *diagnostic.Timestamp, controlTime time.Time) (*report.BBBResult, error)
}

// TimestampValidatorFunc adapts a function to TimestampValidator.
type TimestampValidatorFunc func(ts *diagnostic.Timestamp, controlTime time.Time) (*report.BBBResult, error)

// ValidateTimestamp calls f.
func (f TimestampValidatorFunc) ValidateTimestamp(ts *diagnostic.Timestamp, controlTime time.Time) (*report.BBBResult, error) {
	return f(ts, controlTime)
}

// Input is an evidence record validation request.
type Input struct {
	Data       *diagnostic.DiagnosticData
	Record     *diagnostic.EvidenceRecord
	Policy     *policy.Policy
	Time       time.Time
	Timestamps TimestampValidator
}

// entry is an archive timestamp in validation order.
type entry struct {
	alg *diagnostic.ArchiveTimestampChain
	ats diagnostic.ArchiveTimestamp
	ts  *diagnostic.Timestamp
}

// Validate validates an evidence record. On PASSED the result carries the
// time at which the covered data objects are proven to exist: the
// production time of the first archive timestamp.
func Validate(in *Input) (*report.ERVResult, error) {
	if in == nil || in.Data == nil || in.Record == nil || in.Policy == nil || in.Timestamps == nil {
		return nil, ErrInvalidInput
	}
	res := &report.ERVResult{Block: *report.NewBlock("ERV"), EvidenceRecordID: in.Record.ID}

	entries, err := flatten(in.Data, in.Record)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		res.Fail(report.ERV_IFATSHV, report.Indeterminate, report.SignedDataNotFound, "no archive timestamp")
		return res, nil
	}

	if !res.Apply(report.Check{
		Tag:           report.ERV_ATS_ORDER,
		Level:         policy.LevelFail,
		Indication:    report.Indeterminate,
		SubIndication: report.TimestampOrderFailure,
		Test:          func() bool { return ordered(in.Record, entries) },
	}) {
		return res, nil
	}

	first := entries[0]
	if !res.Apply(report.Check{
		Tag:           report.ERV_IFATSHV,
		Level:         policy.LevelFail,
		Indication:    report.Failed,
		SubIndication: report.HashFailure,
		Info:          first.ts.ID,
		Test:          func() bool { return coversDataObjects(first, in.Record.CoveredObjects) },
	}) {
		return res, nil
	}

	crypto := in.Policy.Crypto(policy.ContextEvidenceRecord)
	cryptoLevel := in.Policy.Context(policy.ContextEvidenceRecord).Cryptographic
	for i, e := range entries {
		control := controlTime(entries, i, in.Time)
		checks := []report.Check{}
		if i > 0 {
			prev := entries[i-1]
			checks = append(checks, report.Check{
				Tag:           report.ERV_ATS_LINK,
				Level:         policy.LevelFail,
				Indication:    report.Failed,
				SubIndication: report.HashFailure,
				Info:          e.ts.ID,
				Test:          func() bool { return linked(prev, e) },
			})
		}
		checks = append(checks,
			report.Check{
				Tag:           report.ERV_IHTRV,
				Level:         policy.LevelFail,
				Indication:    report.Failed,
				SubIndication: report.HashFailure,
				Info:          e.ts.ID,
				Test: func() bool {
					root, err := Root(e.alg.DigestAlgorithm, e.ats.HashTree)
					return err == nil && len(root) > 0 && bytes.Equal(root, e.ts.MessageImprint.Value)
				},
			},
			report.Check{
				Tag:           report.ERV_ATS_ALGO,
				Level:         policy.LevelFail,
				Indication:    report.Failed,
				SubIndication: report.HashFailure,
				Info:          e.ts.ID,
				Test:          func() bool { return e.ts.MessageImprint.DigestAlgorithm == e.alg.DigestAlgorithm },
			},
			report.Check{
				Tag:           report.ERV_ATS_ALGO,
				Level:         cryptoLevel,
				Indication:    report.Indeterminate,
				SubIndication: report.CryptoConstraintsFailure,
				Info:          fmt.Sprintf("%s at %s", e.alg.DigestAlgorithm, control.Format(time.RFC3339)),
				Test: func() bool {
					return crypto.Check([]policy.Algorithm{{Name: string(e.alg.DigestAlgorithm)}}, control).OK
				},
			},
		)
		for _, c := range checks {
			if !res.Apply(c) {
				return res, nil
			}
		}
	}

	for i, e := range entries {
		control := controlTime(entries, i, in.Time)
		bbb, err := in.Timestamps.ValidateTimestamp(e.ts, control)
		if err != nil {
			return nil, fmt.Errorf("archive timestamp %s: %w", e.ts.ID, err)
		}
		res.Timestamps = append(res.Timestamps, report.ArchiveTimestampResult{
			TimestampID:    e.ts.ID,
			Chain:          e.alg.Order,
			ProductionTime: e.ts.ProductionTime,
			ControlTime:    control,
			BBB:            bbb,
		})
		if !bbb.Conclusion.IsPassed() {
			res.Fail(report.ERV_ATS_BBB, bbb.Conclusion.Indication, bbb.Conclusion.SubIndication, e.ts.ID)
			return res, nil
		}
		res.Constraints = append(res.Constraints, report.Constraint{
			Name:    report.ERV_ATS_BBB,
			Status:  report.StatusOK,
			BlockID: e.ts.ID,
		})
	}

	res.Run()
	poeTime := first.ts.ProductionTime
	res.POETime = &poeTime
	return res, nil
}

// flatten resolves every archive timestamp, chains in their given order.
func flatten(d *diagnostic.DiagnosticData, er *diagnostic.EvidenceRecord) ([]entry, error) {
	var out []entry
	for ci := range er.Chains {
		chain := &er.Chains[ci]
		for _, ats := range chain.Timestamps {
			ts, ok := d.Timestamp(ats.TimestampID)
			if !ok {
				return nil, fmt.Errorf("%w: archive timestamp %s", diagnostic.ErrUnresolvedReference, ats.TimestampID)
			}
			out = append(out, entry{alg: chain, ats: ats, ts: ts})
		}
	}
	return out, nil
}

// ordered reports whether chains have strictly increasing order numbers and
// timestamps are not produced before their predecessors.
func ordered(er *diagnostic.EvidenceRecord, entries []entry) bool {
	for i := 1; i < len(er.Chains); i++ {
		if er.Chains[i].Order <= er.Chains[i-1].Order {
			return false
		}
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ts.ProductionTime.Before(entries[i-1].ts.ProductionTime) {
			return false
		}
	}
	return true
}

func coversDataObjects(first entry, objects []diagnostic.DataObject) bool {
	if len(first.ats.HashTree) == 0 || len(objects) == 0 {
		return false
	}
	for _, o := range objects {
		sum, err := first.alg.DigestAlgorithm.Sum(o.Content)
		if err != nil || !contains(first.ats.HashTree[0], sum) {
			return false
		}
	}
	return true
}

// linked reports whether the archive timestamp covers the token bytes of
// its predecessor, hashed with its own chain algorithm.
func linked(prev, next entry) bool {
	if len(next.ats.HashTree) == 0 || len(prev.ts.Raw) == 0 {
		return false
	}
	sum, err := next.alg.DigestAlgorithm.Sum(prev.ts.Raw)
	return err == nil && contains(next.ats.HashTree[0], sum)
}

// controlTime is the production time of the next archive timestamp, or the
// validation time for the last one.
func controlTime(entries []entry, i int, validationTime time.Time) time.Time {
	if i+1 < len(entries) {
		return entries[i+1].ts.ProductionTime
	}
	return validationTime
}
