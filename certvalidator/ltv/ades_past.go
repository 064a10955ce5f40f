// Package ltv provides past certificate validation: finding a control time
// at which a certificate chain was valid, using the proofs of existence of
// its validation data.
package ltv

import (
	"errors"
	"fmt"
	"time"

	"github.com/georgepadayatti/adesval/certvalidator"
	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/poe"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// ErrInvalidInput is returned for a missing data set or policy.
var ErrInvalidInput = errors.New("invalid past certificate validation input")

// maxIterations bounds the number of chain validations at earlier control times.
const maxIterations = 32

// Input is a past certificate validation request.
type Input struct {
	Data *diagnostic.DiagnosticData
	// Chain starts with the signing certificate.
	Chain   []*diagnostic.Certificate
	Context policy.Context
	Policy  *policy.Policy
	// Time is the validation time, where the control time starts.
	Time time.Time
	POE  *poe.Store
}

// PastCertificateValidation searches the latest control time, not after the
// validation time, at which the chain is valid. Revocation is taken into
// account while sliding the control time; the chain is then validated at
// that time without revocation checking.
func PastCertificateValidation(in *Input) (*report.PCVResult, error) {
	if in == nil || in.Data == nil || in.Policy == nil {
		return nil, ErrInvalidInput
	}
	store := in.POE
	if store == nil {
		store = poe.Empty
	}

	res := &report.PCVResult{Block: *report.NewBlock("PCV"), ControlTime: in.Time}
	anchor := certvalidator.TrustAnchorIndex(in.Chain)
	if !res.Apply(report.Check{
		Tag:           report.PCV_IPCVC,
		Level:         policy.LevelFail,
		Indication:    report.Indeterminate,
		SubIndication: report.NoCertificateChainFound,
		Test:          func() bool { return anchor >= 0 },
	}) {
		return res, nil
	}
	path := in.Chain[:anchor+1]

	lower, upper := validityIntersection(path)
	ok := res.Apply(report.Check{
		Tag:           report.PCV_IVTSC,
		Level:         policy.LevelFail,
		Indication:    report.Indeterminate,
		SubIndication: report.NoCertificateChainFound,
		Info:          fmt.Sprintf("%s / %s", lower.Format(time.RFC3339), upper.Format(time.RFC3339)),
		Test:          func() bool { return !upper.Before(lower) },
	}) && res.Apply(report.Check{
		Tag:           report.PCV_ICSI,
		Level:         policy.LevelFail,
		Indication:    report.Indeterminate,
		SubIndication: report.NoCertificateChainFound,
		Test: func() bool {
			for _, c := range path[:len(path)-1] {
				if !c.SignatureIntact {
					return false
				}
			}
			return true
		},
	})
	if !ok {
		return res, nil
	}

	ct, err := timeSlide(in, store, path, trustedUntil(in, path[anchor]))
	for i := 0; i < maxIterations; i++ {
		if !applySlide(res, err) {
			res.ControlTime = ct
			return res, nil
		}
		xcv := certvalidator.ValidateChain(certvalidator.Input{
			Data:           in.Data,
			Chain:          path,
			Context:        in.Context,
			Policy:         in.Policy,
			Time:           ct,
			SkipRevocation: true,
		})
		res.Iterations = append(res.Iterations, xcv)
		res.ControlTime = ct
		if xcv.Passed() {
			res.Run(report.Check{
				Tag:   report.PCV_IXCVAT,
				Level: policy.LevelFail,
				Info:  ct.Format(time.RFC3339),
				Test:  func() bool { return true },
			})
			return res, nil
		}
		next, ok := earlierTime(xcv, path, ct)
		if !ok {
			break
		}
		ct, err = timeSlide(in, store, path, next)
	}

	last := res.Iterations[len(res.Iterations)-1]
	res.Fail(report.PCV_IXCVAT, last.Conclusion.Indication, last.Conclusion.SubIndication, last.FailedCertificateID)
	return res, nil
}

// applySlide records the outcome of a time slide. A failed slide concludes
// INDETERMINATE/NO_POE.
func applySlide(res *report.PCVResult, err error) bool {
	info := ""
	if err != nil {
		info = err.Error()
	}
	return res.Apply(report.Check{
		Tag:           report.PCV_ICTSC,
		Level:         policy.LevelFail,
		Indication:    report.Indeterminate,
		SubIndication: report.NoPOE,
		Info:          info,
		Test:          func() bool { return err == nil },
	})
}

// validityIntersection returns the bounds of the period in which every
// certificate of path is valid.
func validityIntersection(path []*diagnostic.Certificate) (lower, upper time.Time) {
	for i, c := range path {
		if i == 0 || c.NotBefore.After(lower) {
			lower = c.NotBefore
		}
		if i == 0 || c.NotAfter.Before(upper) {
			upper = c.NotAfter
		}
	}
	return lower, upper
}

// earlierTime derives, from a failed chain validation, a control time at
// which the failing certificate may still have been valid.
func earlierTime(xcv *report.XCVResult, path []*diagnostic.Certificate, ct time.Time) (time.Time, bool) {
	sub := xcv.Failed()
	if sub == nil {
		return ct, false
	}
	var next time.Time
	switch sub.Conclusion.SubIndication {
	case report.CryptoConstraintsFailureNoPOE:
		if sub.AlgorithmExpiration == nil {
			return ct, false
		}
		next = lastSecondBefore(*sub.AlgorithmExpiration)
	case report.OutOfBoundsNoPOE, report.OutOfBoundsNotRevoked:
		var cert *diagnostic.Certificate
		for _, c := range path {
			if c.ID == sub.CertificateID {
				cert = c
			}
		}
		if cert == nil || !sub.ControlTime.After(cert.NotAfter) {
			return ct, false
		}
		next = cert.NotAfter
	default:
		return ct, false
	}
	return next, next.Before(ct)
}
