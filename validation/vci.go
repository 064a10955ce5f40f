package validation

import (
	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// Signature policy identifiers accepted in policy constraint values besides
// explicit policy OIDs.
const (
	AnyPolicy      = "ANY_POLICY"
	NoPolicy       = "NO_POLICY"
	ImplicitPolicy = "IMPLICIT_POLICY"
)

// validateConstraintsInitialisation runs VCI for a signature: the signature
// policy it claims must be acceptable, available and intact.
func validateConstraintsInitialisation(sig *diagnostic.Signature, cc *policy.ContextConstraints) *report.Block {
	b := report.NewBlock("VCI")
	sp := sig.Policy
	explicit := sp != nil && !sp.Implied && sp.ID != ""

	var id string
	if sp != nil {
		id = sp.ID
	}
	checks := []report.Check{{
		Tag:           report.BBB_VCI_ISPK,
		Level:         cc.SignaturePolicy.Level,
		Indication:    report.Indeterminate,
		SubIndication: report.PolicyProcessingError,
		Info:          id,
		Test:          func() bool { return policyAccepted(sp, cc.SignaturePolicy) },
	}}
	if explicit {
		checks = append(checks,
			report.Check{
				Tag:           report.BBB_VCI_ISPA,
				Level:         cc.SignaturePolicyAvailable,
				Indication:    report.Indeterminate,
				SubIndication: report.SignaturePolicyNotAvailable,
				Info:          id,
				Test:          func() bool { return sp.Available },
			},
			report.Check{
				Tag:           report.BBB_VCI_ISPM,
				Level:         cc.SignaturePolicyHash,
				Indication:    report.Indeterminate,
				SubIndication: report.PolicyProcessingError,
				Info:          id,
				Test:          func() bool { return !sp.Available || sp.DigestMatch == nil || *sp.DigestMatch },
			},
		)
	}
	b.Run(checks...)
	return b
}

func policyAccepted(sp *diagnostic.SignaturePolicy, lv policy.LevelValues) bool {
	switch {
	case len(lv.Values) == 0:
		return true
	case sp == nil || (sp.ID == "" && !sp.Implied):
		return lv.Accepts(NoPolicy)
	case lv.Accepts(AnyPolicy):
		return true
	case sp.Implied:
		return lv.Accepts(ImplicitPolicy)
	}
	return lv.Accepts(sp.ID)
}
