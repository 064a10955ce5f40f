// Package revinfo decides whether revocation data can be used to establish
// the status of a certificate: acceptance, freshness and selection of the
// latest usable datum. It also ingests CRLs and OCSP responses into
// diagnostic data.
package revinfo

import (
	"errors"
	"fmt"
	"time"

	"github.com/georgepadayatti/adesval/diagnostic"
)

// Common errors
var (
	ErrNoRevocationInfo = errors.New("no revocation information available")
	ErrIssuerUnknown    = errors.New("revocation issuer is unknown")
	ErrIssuerMismatch   = errors.New("issuer mismatch")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNotYetIssued     = errors.New("revocation data issued after control time")
	ErrInconsistent     = errors.New("revocation data inconsistent with certificate validity")
	ErrNotFresh         = errors.New("revocation data is not fresh")
)

// RevocationReason represents the reason for certificate revocation.
type RevocationReason int

const (
	ReasonUnspecified          RevocationReason = 0
	ReasonKeyCompromise        RevocationReason = 1
	ReasonCACompromise         RevocationReason = 2
	ReasonAffiliationChanged   RevocationReason = 3
	ReasonSuperseded           RevocationReason = 4
	ReasonCessationOfOperation RevocationReason = 5
	ReasonCertificateHold      RevocationReason = 6
	ReasonRemoveFromCRL        RevocationReason = 8
	ReasonPrivilegeWithdrawn   RevocationReason = 9
	ReasonAACompromise         RevocationReason = 10
)

// String returns the RFC 5280 name of a revocation reason.
func (r RevocationReason) String() string {
	switch r {
	case ReasonUnspecified:
		return "unspecified"
	case ReasonKeyCompromise:
		return "keyCompromise"
	case ReasonCACompromise:
		return "cACompromise"
	case ReasonAffiliationChanged:
		return "affiliationChanged"
	case ReasonSuperseded:
		return "superseded"
	case ReasonCessationOfOperation:
		return "cessationOfOperation"
	case ReasonCertificateHold:
		return diagnostic.ReasonCertificateHold
	case ReasonRemoveFromCRL:
		return "removeFromCRL"
	case ReasonPrivilegeWithdrawn:
		return "privilegeWithdrawn"
	case ReasonAACompromise:
		return "aACompromise"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}

// Consistent reports whether the revocation datum may carry the status of
// cert: it was issued after the certificate became valid and either while
// the certificate was valid or by an issuer keeping expired certificates.
func Consistent(cert *diagnostic.Certificate, r *diagnostic.Revocation) bool {
	if r.ThisUpdate.Before(cert.NotBefore) {
		return false
	}
	if !r.ThisUpdate.After(cert.NotAfter) {
		return true
	}
	if r.ExpiredCertsOnCRL != nil && !r.ExpiredCertsOnCRL.After(cert.NotAfter) {
		return true
	}
	return r.ArchiveCutOff != nil && !r.ArchiveCutOff.After(cert.NotAfter)
}

// Acceptable checks that r can be used to decide the status of cert at the
// given control time.
func Acceptable(d *diagnostic.DiagnosticData, cert *diagnostic.Certificate, r *diagnostic.Revocation, at time.Time) error {
	if _, ok := cert.StatusIn(r.ID); !ok {
		return fmt.Errorf("%w: %s does not cover %s", ErrNoRevocationInfo, r.ID, cert.ID)
	}
	if r.SigningCertificateID == "" {
		return fmt.Errorf("%w: %s", ErrIssuerUnknown, r.ID)
	}
	if _, ok := d.Certificate(r.SigningCertificateID); !ok {
		return fmt.Errorf("%w: %s", ErrIssuerUnknown, r.ID)
	}
	if !r.SignatureIntact {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, r.ID)
	}
	if r.ProductionDate.After(at) {
		return fmt.Errorf("%w: %s produced at %s", ErrNotYetIssued, r.ID, r.ProductionDate.Format(time.RFC3339))
	}
	if !Consistent(cert, r) {
		return fmt.Errorf("%w: %s", ErrInconsistent, r.ID)
	}
	return nil
}

// CheckFreshness checks that r is fresh at the given time. With maxAge set
// the age of thisUpdate decides; otherwise nextUpdate must not be reached.
func CheckFreshness(r *diagnostic.Revocation, at time.Time, maxAge time.Duration) error {
	if maxAge > 0 {
		if age := at.Sub(r.ThisUpdate); age > maxAge {
			return fmt.Errorf("%w: %s is %s old", ErrNotFresh, r.ID, age)
		}
		return nil
	}
	if r.NextUpdate == nil || r.NextUpdate.Before(at) {
		return fmt.Errorf("%w: %s next update passed", ErrNotFresh, r.ID)
	}
	return nil
}

// Selection is a revocation datum chosen for a certificate together with
// the certificate's status in it.
type Selection struct {
	Revocation *diagnostic.Revocation
	Status     diagnostic.CertificateRevocation
}

// LatestAcceptable returns the most recently produced revocation datum that
// is acceptable for cert at the given time and passes filter (nil accepts all).
func LatestAcceptable(d *diagnostic.DiagnosticData, cert *diagnostic.Certificate, at time.Time, filter func(*diagnostic.Revocation) bool) (Selection, bool) {
	for _, r := range d.RevocationsFor(cert.ID) {
		if Acceptable(d, cert, r, at) != nil {
			continue
		}
		if filter != nil && !filter(r) {
			continue
		}
		st, _ := cert.StatusIn(r.ID)
		return Selection{Revocation: r, Status: st}, true
	}
	return Selection{}, false
}

// RevokedAt reports whether the status marks the certificate revoked at t.
// A revocation without a date applies at any time.
func RevokedAt(st diagnostic.CertificateRevocation, t time.Time) bool {
	if st.Status != diagnostic.StatusRevoked {
		return false
	}
	return st.RevocationDate == nil || !st.RevocationDate.After(t)
}

// OnHold reports whether the status is a suspension.
func OnHold(st diagnostic.CertificateRevocation) bool {
	return st.Status == diagnostic.StatusRevoked && st.Reason == diagnostic.ReasonCertificateHold
}
