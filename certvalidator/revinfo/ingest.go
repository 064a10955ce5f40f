package revinfo

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/georgepadayatti/adesval/diagnostic"
)

// OIDExpiredCertsOnCRL is the expiredCertsOnCRL extension (RFC 5280 5.2.7, X.509 2016).
var OIDExpiredCertsOnCRL = asn1.ObjectIdentifier{2, 5, 29, 60}

// RevocationID derives a stable token id from the revocation data encoding.
func RevocationID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "R-" + strings.ToUpper(hex.EncodeToString(sum[:]))
}

// AddCRL parses a DER encoded CRL issued by issuer and records it in d:
// a revocation token is appended and every certificate of d issued by the
// CRL issuer receives its status. The issuer must already be part of d.
// AddCRL must run before d.Resolve.
func AddCRL(d *diagnostic.DiagnosticData, raw []byte, issuer *x509.Certificate) (*diagnostic.Revocation, error) {
	crl, err := x509.ParseRevocationList(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRL: %w", err)
	}
	if !bytes.Equal(crl.RawIssuer, issuer.RawSubject) {
		return nil, ErrIssuerMismatch
	}
	signer, ok := d.CertificateByRaw(issuer.Raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIssuerUnknown, issuer.Subject)
	}

	dig, enc := diagnostic.SignatureAlgorithmParts(crl.SignatureAlgorithm)
	rev := &diagnostic.Revocation{
		SignedObject: diagnostic.SignedObject{
			ID:                   RevocationID(raw),
			SigningCertificateID: signer.ID,
			SignatureIntact:      crl.CheckSignatureFrom(issuer) == nil,
			SignatureAlgorithm:   crl.SignatureAlgorithm.String(),
			DigestAlgorithm:      dig,
			EncryptionAlgorithm:  enc,
			KeyLength:            diagnostic.PublicKeyLength(issuer.PublicKey),
		},
		Type:           diagnostic.RevocationCRL,
		ProductionDate: crl.ThisUpdate,
		ThisUpdate:     crl.ThisUpdate,
	}
	if !crl.NextUpdate.IsZero() {
		next := crl.NextUpdate
		rev.NextUpdate = &next
	}
	for _, ext := range crl.Extensions {
		if ext.Id.Equal(OIDExpiredCertsOnCRL) {
			var t time.Time
			if _, err := asn1.Unmarshal(ext.Value, &t); err == nil {
				rev.ExpiredCertsOnCRL = &t
			}
		}
	}

	for _, c := range d.Certificates {
		x, ok := parsed(c)
		if !ok || !bytes.Equal(x.RawIssuer, issuer.RawSubject) {
			continue
		}
		st := diagnostic.CertificateRevocation{RevocationID: rev.ID, Status: diagnostic.StatusGood}
		if entry := findEntry(crl, x.SerialNumber); entry != nil {
			date := entry.RevocationTime
			st.Status = diagnostic.StatusRevoked
			st.RevocationDate = &date
			st.Reason = RevocationReason(entry.ReasonCode).String()
		}
		c.Revocations = append(c.Revocations, st)
	}
	d.Revocations = append(d.Revocations, rev)
	return rev, nil
}

func findEntry(crl *x509.RevocationList, serial *big.Int) *x509.RevocationListEntry {
	for i := range crl.RevokedCertificateEntries {
		if crl.RevokedCertificateEntries[i].SerialNumber.Cmp(serial) == 0 {
			return &crl.RevokedCertificateEntries[i]
		}
	}
	return nil
}

// AddOCSP parses a DER encoded OCSP response about a certificate issued by
// issuer and records it in d. A delegated responder certificate embedded in
// the response is added to d when missing. AddOCSP must run before d.Resolve.
func AddOCSP(d *diagnostic.DiagnosticData, raw []byte, issuer *x509.Certificate) (*diagnostic.Revocation, error) {
	// Parsed without issuer: signature problems are recorded, not returned.
	resp, err := ocsp.ParseResponse(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OCSP response: %w", err)
	}
	issuerCert, ok := d.CertificateByRaw(issuer.Raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIssuerUnknown, issuer.Subject)
	}

	signer, signerCert := issuer, issuerCert
	intact := resp.CheckSignatureFrom(issuer) == nil
	if resp.Certificate != nil {
		signer = resp.Certificate
		intact = resp.CheckSignatureFrom(resp.Certificate) == nil && resp.Certificate.CheckSignatureFrom(issuer) == nil
		if signerCert, ok = d.CertificateByRaw(resp.Certificate.Raw); !ok {
			signerCert = diagnostic.NewCertificate(resp.Certificate, issuer)
			d.Certificates = append(d.Certificates, signerCert)
		}
	}

	dig, enc := diagnostic.SignatureAlgorithmParts(resp.SignatureAlgorithm)
	rev := &diagnostic.Revocation{
		SignedObject: diagnostic.SignedObject{
			ID:                   RevocationID(raw),
			SigningCertificateID: signerCert.ID,
			SignatureIntact:      intact,
			SignatureAlgorithm:   resp.SignatureAlgorithm.String(),
			DigestAlgorithm:      dig,
			EncryptionAlgorithm:  enc,
			KeyLength:            diagnostic.PublicKeyLength(signer.PublicKey),
		},
		Type:           diagnostic.RevocationOCSP,
		ProductionDate: resp.ProducedAt,
		ThisUpdate:     resp.ThisUpdate,
	}
	if !resp.NextUpdate.IsZero() {
		next := resp.NextUpdate
		rev.NextUpdate = &next
	}

	found := false
	for _, c := range d.Certificates {
		x, ok := parsed(c)
		if !ok || !bytes.Equal(x.RawIssuer, issuer.RawSubject) || x.SerialNumber.Cmp(resp.SerialNumber) != 0 {
			continue
		}
		st := diagnostic.CertificateRevocation{RevocationID: rev.ID}
		switch resp.Status {
		case ocsp.Good:
			st.Status = diagnostic.StatusGood
		case ocsp.Revoked:
			date := resp.RevokedAt
			st.Status = diagnostic.StatusRevoked
			st.RevocationDate = &date
			st.Reason = RevocationReason(resp.RevocationReason).String()
		default:
			st.Status = diagnostic.StatusUnknown
		}
		c.Revocations = append(c.Revocations, st)
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%w: no certificate with serial %s", ErrNoRevocationInfo, resp.SerialNumber)
	}
	d.Revocations = append(d.Revocations, rev)
	return rev, nil
}

func parsed(c *diagnostic.Certificate) (*x509.Certificate, bool) {
	if len(c.Raw) == 0 {
		return nil, false
	}
	x, err := x509.ParseCertificate(c.Raw)
	if err != nil {
		return nil, false
	}
	return x, true
}
