package certvalidator

import (
	"time"

	"github.com/georgepadayatti/adesval/certvalidator/revinfo"
	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/trust"
	"github.com/georgepadayatti/adesval/validation/report"
)

// Input is a chain validation request.
type Input struct {
	Data *diagnostic.DiagnosticData
	// Chain starts with the signing certificate.
	Chain   []*diagnostic.Certificate
	Context policy.Context
	Policy  *policy.Policy
	Time    time.Time
	// SkipRevocation disables revocation checks, for past certificate validation.
	SkipRevocation bool
	// Model overrides the policy validation model when set.
	Model policy.Model
}

// ValidateChain validates a certificate chain at a fixed time, walking
// from the signing certificate toward the trust anchor. The first failing
// certificate ends the walk. Certificates past the first trusted one are
// not validated.
func ValidateChain(in Input) *report.XCVResult {
	model := in.Model
	if model == "" {
		model = in.Policy.Model()
	}
	res := &report.XCVResult{
		Block:        *report.NewBlock("XCV"),
		Model:        string(model),
		ValidationAt: in.Time,
	}
	cc := in.Policy.Context(in.Context)
	anchor := TrustAnchorIndex(in.Chain)

	if !res.Apply(report.Check{
		Tag:           report.BBB_XCV_CCCBB,
		Level:         cc.ProspectiveChain,
		Indication:    report.Indeterminate,
		SubIndication: report.NoCertificateChainFound,
		Test:          func() bool { return len(in.Chain) > 0 && anchor >= 0 },
	}) {
		return res
	}
	if len(in.Chain) == 0 {
		res.Fail(report.BBB_XCV_CCCBB, report.Indeterminate, report.NoCertificateChainFound, "empty chain")
		return res
	}

	last := len(in.Chain) - 1
	if anchor >= 0 {
		last = anchor
	}
	times := controlTimes(model, in.Chain[:last+1], in.Time)

	if anchor >= 0 && !checkTrustedServices(res, in.Chain[anchor], &cc.SigningCertificate, times[anchor]) {
		res.FailedCertificateID = in.Chain[anchor].ID
		return res
	}

	for i := 0; i <= last; i++ {
		c := in.Chain[i]
		if c.Trusted {
			sub := report.SubXCVResult{
				Block:         *report.NewBlock("SubXCV"),
				CertificateID: c.ID,
				ControlTime:   times[i],
				TrustAnchor:   true,
			}
			sub.Run()
			res.Certificates = append(res.Certificates, sub)
			break
		}
		sub := validateCertificate(in, i, times[i])
		res.Certificates = append(res.Certificates, sub)
		res.Conclusion.Warnings = append(res.Conclusion.Warnings, sub.Conclusion.Warnings...)
		res.Conclusion.Infos = append(res.Conclusion.Infos, sub.Conclusion.Infos...)
		if !sub.Passed() {
			res.FailedCertificateID = c.ID
			res.Constraints = append(res.Constraints, report.Constraint{
				Name:          report.BBB_XCV_SUB,
				Status:        report.StatusNotOK,
				Indication:    sub.Conclusion.Indication,
				SubIndication: sub.Conclusion.SubIndication,
				BlockID:       c.ID,
			})
			res.Conclusion.Indication = sub.Conclusion.Indication
			res.Conclusion.SubIndication = sub.Conclusion.SubIndication
			res.Conclusion.Errors = append(res.Conclusion.Errors, sub.Conclusion.Errors...)
			return res
		}
		res.Constraints = append(res.Constraints, report.Constraint{
			Name:    report.BBB_XCV_SUB,
			Status:  report.StatusOK,
			BlockID: c.ID,
		})
	}
	res.Run()
	return res
}

// controlTimes returns the time at which each certificate is validated.
func controlTimes(model policy.Model, chain []*diagnostic.Certificate, t time.Time) []time.Time {
	times := make([]time.Time, len(chain))
	frozen := false
	var ft time.Time
	for i := range chain {
		switch {
		case i == 0 || model == policy.ModelShell:
			times[i] = t
		case model == policy.ModelChain:
			times[i] = chain[i-1].NotBefore
		default:
			if !frozen && !chain[i].ValidAt(t) {
				frozen = true
				ft = chain[i-1].NotBefore
			}
			if frozen {
				times[i] = ft
			} else {
				times[i] = t
			}
		}
	}
	return times
}

func checkTrustedServices(res *report.XCVResult, anchor *diagnostic.Certificate, cons *policy.CertificateConstraints, t time.Time) bool {
	if len(anchor.TrustedServices) == 0 {
		return true
	}
	matches := func(accept func(trust.ServiceStatus) bool) bool {
		for _, s := range anchor.TrustedServices {
			if st, ok := s.At(t); ok && accept(st) {
				return true
			}
		}
		return false
	}
	return res.Apply(report.Check{
		Tag:           report.BBB_XCV_TSL_ETIP,
		Level:         cons.TrustServiceType.Level,
		Indication:    report.Indeterminate,
		SubIndication: report.ChainConstraintsFailure,
		Info:          anchor.ID,
		Test: func() bool {
			return matches(func(st trust.ServiceStatus) bool { return cons.TrustServiceType.Accepts(st.Type) })
		},
	}) && res.Apply(report.Check{
		Tag:           report.BBB_XCV_TSL_ESP,
		Level:         cons.TrustServiceStatus.Level,
		Indication:    report.Indeterminate,
		SubIndication: report.ChainConstraintsFailure,
		Info:          anchor.ID,
		Test: func() bool {
			return matches(func(st trust.ServiceStatus) bool { return cons.TrustServiceStatus.Accepts(st.Status) })
		},
	})
}

func anyValue(lv policy.LevelValues, has func(string) bool) bool {
	if len(lv.Values) == 0 {
		return true
	}
	for _, v := range lv.Values {
		if has(v) {
			return true
		}
	}
	return false
}

func validateCertificate(in Input, i int, t time.Time) report.SubXCVResult {
	c := in.Chain[i]
	signing := i == 0
	cons := in.Policy.Context(in.Context).Certificate(signing)
	sub := report.SubXCVResult{
		Block:         *report.NewBlock("SubXCV"),
		CertificateID: c.ID,
		ControlTime:   t,
	}

	checks := []report.Check{
		{
			Tag:           report.BBB_XCV_ICSI,
			Level:         cons.Signature,
			Indication:    report.Indeterminate,
			SubIndication: report.CertificateChainGeneralFail,
			Test:          func() bool { return c.SignatureIntact },
		},
		{
			Tag:           report.BBB_XCV_ISCGKU,
			Level:         cons.KeyUsage.Level,
			Indication:    report.Indeterminate,
			SubIndication: report.ChainConstraintsFailure,
			Test:          func() bool { return anyValue(cons.KeyUsage, c.HasKeyUsage) },
		},
		{
			Tag:           report.BBB_XCV_ISCGEKU,
			Level:         cons.ExtendedKeyUsage.Level,
			Indication:    report.Indeterminate,
			SubIndication: report.ChainConstraintsFailure,
			Test:          func() bool { return anyValue(cons.ExtendedKeyUsage, c.HasExtendedKeyUsage) },
		},
	}
	if !signing {
		checks = append(checks,
			report.Check{
				Tag:           report.BBB_XCV_ISCA,
				Level:         cons.BasicConstraints,
				Indication:    report.Indeterminate,
				SubIndication: report.ChainConstraintsFailure,
				Test:          func() bool { return c.CA },
			},
			report.Check{
				Tag:           report.BBB_XCV_ICPL,
				Level:         cons.PathLength,
				Indication:    report.Indeterminate,
				SubIndication: report.ChainConstraintsFailure,
				// intermediate CAs between this certificate and the signing certificate
				Test: func() bool { return c.PathLenConstraint == nil || *c.PathLenConstraint >= i-1 },
			},
		)
	}
	if !in.SkipRevocation && !c.OCSPNoCheck {
		checks = append(checks, revocationChecks(in, c, signing, cons, t)...)
	}

	crypto := in.Policy.Crypto(in.Context)
	cr := crypto.Check(c.Algorithms(), t)
	cryptoSub := report.CryptoConstraintsFailureNoPOE
	if cr.Unsupported {
		cryptoSub = report.CryptoConstraintsFailure
	} else if cr.Expiration != nil {
		sub.AlgorithmExpiration = cr.Expiration
	}
	checks = append(checks,
		report.Check{
			Tag:           report.BBB_XCV_ACCM,
			Level:         cons.Cryptographic,
			Indication:    report.Indeterminate,
			SubIndication: cryptoSub,
			Test:          func() bool { return cr.OK },
		},
		report.Check{
			Tag:           report.BBB_XCV_ICTIVRSC,
			Level:         cons.Validity,
			Indication:    report.Indeterminate,
			SubIndication: outOfBounds(in.Data, c, t),
			Test:          func() bool { return c.ValidAt(t) },
		},
	)
	sub.Run(checks...)
	if sub.Passed() {
		sub.AlgorithmExpiration = nil
	}
	return sub
}

func revocationChecks(in Input, c *diagnostic.Certificate, signing bool, cons *policy.CertificateConstraints, t time.Time) []report.Check {
	sel, found := revinfo.LatestAcceptable(in.Data, c, t, nil)
	revoked := found && revinfo.RevokedAt(sel.Status, t) && !revinfo.OnHold(sel.Status)
	hold := found && revinfo.RevokedAt(sel.Status, t) && revinfo.OnHold(sel.Status)
	revokedSub := report.RevokedCANoPOE
	if signing {
		revokedSub = report.RevokedNoPOE
	}
	var info string
	if found {
		info = sel.Revocation.ID
	}
	status := []report.Check{
		{
			Tag:           report.BBB_XCV_ISCR,
			Level:         cons.NotRevoked,
			Indication:    report.Indeterminate,
			SubIndication: revokedSub,
			Info:          info,
			Test:          func() bool { return !revoked },
		},
		{
			Tag:           report.BBB_XCV_ISCOH,
			Level:         cons.NotOnHold,
			Indication:    report.Indeterminate,
			SubIndication: report.TryLater,
			Info:          info,
			Test:          func() bool { return !hold },
		},
	}
	// Outside its validity range a certificate is not expected to have
	// current revocation data, but data showing it revoked still counts.
	if !c.ValidAt(t) {
		return status
	}
	return append([]report.Check{
		{
			Tag:           report.BBB_XCV_IRDPFC,
			Level:         cons.RevocationDataAvailable,
			Indication:    report.Indeterminate,
			SubIndication: report.TryLater,
			Test:          func() bool { return found },
		},
		{
			Tag:           report.BBB_XCV_IRDTFC,
			Level:         cons.RevocationFreshness,
			Indication:    report.Indeterminate,
			SubIndication: report.TryLater,
			Info:          info,
			Test: func() bool {
				if !found || revoked {
					return true
				}
				return revinfo.CheckFreshness(sel.Revocation, t, in.Policy.RevocationFreshness()) == nil
			},
		},
	}, status...)
}

// outOfBounds returns the sub-indication for a certificate outside its
// validity range at t: OUT_OF_BOUNDS_NOT_REVOKED when revocation data
// issued after expiry still reports it good.
func outOfBounds(d *diagnostic.DiagnosticData, c *diagnostic.Certificate, t time.Time) report.SubIndication {
	if !t.After(c.NotAfter) {
		return report.OutOfBoundsNoPOE
	}
	sel, ok := revinfo.LatestAcceptable(d, c, t, func(r *diagnostic.Revocation) bool {
		return r.ThisUpdate.After(c.NotAfter)
	})
	if ok && sel.Status.Status == diagnostic.StatusGood {
		return report.OutOfBoundsNotRevoked
	}
	return report.OutOfBoundsNoPOE
}
