package ltv

import (
	"errors"
	"fmt"
	"time"

	"github.com/georgepadayatti/adesval/certvalidator/revinfo"
	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/poe"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/trust"
)

// Time-slide specific errors
var (
	ErrInsufficientPOE     = errors.New("no proof of existence available at control time")
	ErrInsufficientRevinfo = errors.New("no revocation information available at control time")
)

// lastSecondBefore returns the last instant, at second precision, before t.
func lastSecondBefore(t time.Time) time.Time {
	return t.Add(-time.Second)
}

// timeSlide slides the control time back over path, which starts with the
// signing certificate and ends with the trust anchor. Certificates are
// processed from the anchor toward the signing certificate; the control time
// never increases.
func timeSlide(in *Input, store *poe.Store, path []*diagnostic.Certificate, controlTime time.Time) (time.Time, error) {
	cc := in.Policy.Context(in.Context)
	crypto := in.Policy.Crypto(in.Context)

	for i := len(path) - 2; i >= 0; i-- {
		cert := path[i]
		if !store.Exists(cert.ID, controlTime) {
			return controlTime, fmt.Errorf("%w: certificate %s at %s",
				ErrInsufficientPOE, cert.ID, controlTime.Format(time.RFC3339))
		}

		if !cert.OCSPNoCheck {
			var err error
			controlTime, err = slideRevocation(in, store, cert, cc.Certificate(i == 0), controlTime)
			if err != nil {
				return controlTime, err
			}
		}

		if res := crypto.Check(cert.Algorithms(), controlTime); !res.OK && res.Expiration != nil {
			if exp := lastSecondBefore(*res.Expiration); exp.Before(controlTime) {
				controlTime = exp
			}
		}
	}
	return controlTime, nil
}

// slideRevocation applies the latest revocation datum of cert with a proof of
// existence at the control time.
func slideRevocation(in *Input, store *poe.Store, cert *diagnostic.Certificate, cons *policy.CertificateConstraints, controlTime time.Time) (time.Time, error) {
	sel, ok := revinfo.LatestAcceptable(in.Data, cert, controlTime, func(r *diagnostic.Revocation) bool {
		return store.Exists(r.ID, controlTime)
	})
	if !ok {
		if cons.RevocationDataAvailable != policy.LevelFail {
			return controlTime, nil
		}
		return controlTime, fmt.Errorf("%w: certificate %s at %s",
			ErrInsufficientRevinfo, cert.ID, controlTime.Format(time.RFC3339))
	}

	if revinfo.RevokedAt(sel.Status, controlTime) {
		if sel.Status.RevocationDate == nil {
			return controlTime, fmt.Errorf("%w: certificate %s revoked at an unknown time", ErrInsufficientPOE, cert.ID)
		}
		if sel.Status.RevocationDate.Before(controlTime) {
			controlTime = *sel.Status.RevocationDate
		}
		return controlTime, nil
	}

	if err := revinfo.CheckFreshness(sel.Revocation, controlTime, in.Policy.RevocationFreshness()); err != nil {
		if sel.Revocation.ThisUpdate.Before(controlTime) {
			controlTime = sel.Revocation.ThisUpdate
		}
	}
	return controlTime, nil
}

// trustedUntil returns the initial control time: the validation time, or
// the end of the anchor's last accepted trust service status when the
// service has since been withdrawn.
func trustedUntil(in *Input, anchor *diagnostic.Certificate) time.Time {
	if len(anchor.TrustedServices) == 0 {
		return in.Time
	}
	cons := in.Policy.Context(in.Context).SigningCertificate.TrustServiceStatus
	if cons.Level == policy.LevelIgnore || cons.Level == "" {
		return in.Time
	}
	accept := func(st trust.ServiceStatus) bool { return cons.Accepts(st.Status) }

	var best time.Time
	found := false
	for _, s := range anchor.TrustedServices {
		if t, ok := s.AcceptableUntil(in.Time, accept); ok && (!found || t.After(best)) {
			best, found = t, true
		}
	}
	if !found || !best.Before(in.Time) {
		return in.Time
	}
	return lastSecondBefore(best)
}
