package validation

import (
	"time"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/poe"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// PSVInput is a past signature validation request.
type PSVInput struct {
	// Token is the signed object of the signature or timestamp.
	Token *diagnostic.SignedObject
	// Chain starts with the signing certificate.
	Chain   []*diagnostic.Certificate
	Context policy.Context
	Policy  *policy.Policy
	// Time is the validation time of the current conclusion.
	Time time.Time
	// Current is the conclusion obtained at the validation time.
	Current report.Conclusion
	PCV     *report.PCVResult
	POE     *poe.Store
}

// PastSignatureValidation decides whether the proofs of existence of a token
// turn its current INDETERMINATE conclusion into PASSED. When they do not,
// the current conclusion is returned unchanged.
func PastSignatureValidation(in *PSVInput) *report.PSVResult {
	res := &report.PSVResult{Block: *report.NewBlock("PSV"), PCV: in.PCV}
	cur := in.Current
	unchanged := func(tag report.MessageTag, info string) *report.PSVResult {
		res.Fail(tag, cur.Indication, cur.SubIndication, info)
		return res
	}
	if in.PCV == nil || !in.PCV.Passed() {
		return unchanged(report.PSV_IPCVA, "")
	}
	control := in.PCV.ControlTime
	res.ControlTime = &control

	store := in.POE
	if store == nil {
		store = poe.Empty
	}
	first, ok := store.LowestAtOrBefore(in.Token.ID, control)
	if !ok {
		return unchanged(report.PSV_IPSVC, control.Format(time.RFC3339))
	}
	bst := first.Time
	res.BestSignatureTime = &bst
	res.Constraints = append(res.Constraints, report.Constraint{
		Name:           report.PSV_IPSVC,
		Status:         report.StatusOK,
		AdditionalInfo: bst.Format(time.RFC3339),
	})

	switch cur.SubIndication {
	case report.RevokedNoPOE, report.RevokedCANoPOE:
		res.Run(report.Check{
			Tag:   report.PSV_ITPORDR,
			Level: policy.LevelFail,
			Info:  control.Format(time.RFC3339),
			Test:  func() bool { return true },
		})
	case report.OutOfBoundsNoPOE, report.OutOfBoundsNotRevoked:
		if len(in.Chain) == 0 {
			return unchanged(report.PSV_BSTIVR, "")
		}
		signer := in.Chain[0]
		switch {
		case bst.Before(signer.NotBefore):
			res.Fail(report.PSV_BSTIVR, report.Indeterminate, report.NotYetValid, bst.Format(time.RFC3339))
		case bst.Before(signer.NotAfter):
			res.Run(report.Check{
				Tag:   report.PSV_BSTIVR,
				Level: policy.LevelFail,
				Info:  bst.Format(time.RFC3339),
				Test:  func() bool { return true },
			})
		default:
			return unchanged(report.PSV_BSTIVR, bst.Format(time.RFC3339))
		}
	case report.CryptoConstraintsFailureNoPOE:
		if !algorithmsProven(in, store) {
			return unchanged(report.PSV_ITPOCSA, "")
		}
		res.Run(report.Check{
			Tag:   report.PSV_ITPOCSA,
			Level: policy.LevelFail,
			Test:  func() bool { return true },
		})
	default:
		return unchanged(report.PSV_IPCVA, string(cur.SubIndication))
	}
	return res
}

// algorithmsProven reports whether the token and every certificate of its
// chain below the trust anchor have a proof of existence before the
// expiration of the algorithms they use.
func algorithmsProven(in *PSVInput, store *poe.Store) bool {
	crypto := in.Policy.Crypto(in.Context)
	proven := func(id string, algs []policy.Algorithm) bool {
		r := crypto.Check(algs, in.Time)
		if r.OK {
			return true
		}
		if r.Unsupported || r.Expiration == nil {
			return false
		}
		return store.ExistsBefore(id, *r.Expiration)
	}
	if !proven(in.Token.ID, in.Token.Algorithms()) {
		return false
	}
	for _, c := range in.Chain {
		if c.Trusted {
			break
		}
		if !proven(c.ID, c.Algorithms()) {
			return false
		}
	}
	return true
}
