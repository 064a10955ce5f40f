package validation

import (
	"fmt"
	"time"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// signatureAcceptanceValidation runs SAV: signed attribute constraints and
// cryptographic constraints at the validation time.
func signatureAcceptanceValidation(in *BBBInput, obj *diagnostic.SignedObject) *report.Block {
	b := report.NewBlock("SAV")
	cc := in.Policy.Context(in.Context)

	var checks []report.Check
	switch tok := in.Token.(type) {
	case *diagnostic.Signature:
		checks = signatureAttributeChecks(in.Data, tok, cc, in.Time)
	case *diagnostic.Timestamp:
		checks = []report.Check{
			{
				Tag:           report.BBB_SAV_TSP_IMI,
				Level:         cc.MessageImprint,
				Indication:    report.Indeterminate,
				SubIndication: report.SignedDataNotFound,
				Test:          func() bool { return tok.MessageImprint.Found },
			},
			{
				Tag:           report.BBB_SAV_TSP_IMI,
				Level:         cc.MessageImprint,
				Indication:    report.Failed,
				SubIndication: report.HashFailure,
				Test:          func() bool { return tok.MessageImprint.Intact },
			},
		}
	}

	cr := in.Policy.Crypto(in.Context).Check(obj.Algorithms(), in.Time)
	sub := report.CryptoConstraintsFailureNoPOE
	if cr.Unsupported {
		sub = report.CryptoConstraintsFailure
	}
	var info string
	if cr.Expiration != nil {
		info = fmt.Sprintf("expired at %s", cr.Expiration.Format(time.RFC3339))
	}
	checks = append(checks, report.Check{
		Tag:           report.BBB_SAV_ACCM,
		Level:         cc.Cryptographic,
		Indication:    report.Indeterminate,
		SubIndication: sub,
		Info:          info,
		Test:          func() bool { return cr.OK },
	})
	b.Run(checks...)
	return b
}

func signatureAttributeChecks(d *diagnostic.DiagnosticData, sig *diagnostic.Signature, cc *policy.ContextConstraints, at time.Time) []report.Check {
	return []report.Check{
		{
			Tag:           report.BBB_SAV_ISQPSTP,
			Level:         cc.SigningTime,
			Indication:    report.Indeterminate,
			SubIndication: report.SigConstraintsFailure,
			Test:          func() bool { return sig.SigningTime != nil },
		},
		{
			Tag:           report.BBB_SAV_ISTNF,
			Level:         cc.SigningTimeNotInFuture,
			Indication:    report.Indeterminate,
			SubIndication: report.SigConstraintsFailure,
			Test:          func() bool { return sig.SigningTime == nil || !sig.SigningTime.After(at) },
		},
		{
			Tag:           report.BBB_SAV_ISQPMA,
			Level:         cc.MandatedSignedAttributes.Level,
			Indication:    report.Indeterminate,
			SubIndication: report.SigConstraintsFailure,
			Test:          func() bool { return hasAll(sig.SignedAttributes, cc.MandatedSignedAttributes.Values) },
		},
		{
			Tag:           report.BBB_SAV_ICTSTN,
			Level:         cc.ContentTimestampOrder,
			Indication:    report.Indeterminate,
			SubIndication: report.SigConstraintsFailure,
			Test: func() bool {
				if sig.SigningTime == nil {
					return true
				}
				for _, ts := range d.TimestampsOf(sig) {
					if ts.Type == diagnostic.TimestampContent && ts.ProductionTime.After(*sig.SigningTime) {
						return false
					}
				}
				return true
			},
		},
	}
}

func hasAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
