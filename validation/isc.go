package validation

import (
	"bytes"

	"golang.org/x/text/unicode/norm"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// identifySigningCertificate runs the identification of the signing
// certificate (ISC) and returns the identified certificate.
func identifySigningCertificate(d *diagnostic.DiagnosticData, tok diagnostic.Token, obj *diagnostic.SignedObject, cc *policy.ContextConstraints) (*report.Block, *diagnostic.Certificate) {
	b := report.NewBlock("ISC")

	if sig, ok := tok.(*diagnostic.Signature); ok && sig.NoSigningCertificateAttribute {
		signer := embeddedSigner(d, sig)
		b.Run(report.Check{
			Tag:           report.BBB_ICS_ISCI,
			Level:         policy.LevelFail,
			Indication:    report.Indeterminate,
			SubIndication: report.NoSigningCertificateFound,
			Test:          func() bool { return signer != nil },
		})
		return b, signer
	}

	if !b.Apply(report.Check{
		Tag:           report.BBB_ICS_ISASCP,
		Level:         cc.SigningCertificateAttribute,
		Indication:    report.Indeterminate,
		SubIndication: report.NoSigningCertificateFound,
		Test:          func() bool { return len(obj.SigningCertificateRefs) > 0 },
	}) {
		return b, nil
	}

	signer, ref := matchReference(d, obj)
	if signer == nil && obj.SigningCertificateID != "" {
		signer, _ = d.Certificate(obj.SigningCertificateID)
	}
	if !b.Apply(report.Check{
		Tag:           report.BBB_ICS_ISCI,
		Level:         policy.LevelFail,
		Indication:    report.Indeterminate,
		SubIndication: report.NoSigningCertificateFound,
		Test:          func() bool { return signer != nil },
	}) {
		return b, nil
	}

	if len(obj.SigningCertificateRefs) == 0 {
		b.Run()
		return b, signer
	}
	// an issuer/serial mismatch alone never fails the identification
	issuerSerial := cc.IssuerSerialMatch
	if issuerSerial == policy.LevelFail {
		issuerSerial = policy.LevelWarn
	}
	ok := b.Run(
		report.Check{
			Tag:           report.BBB_ICS_ICDVV,
			Level:         cc.SigningCertificateDigest,
			Indication:    report.Indeterminate,
			SubIndication: report.NoSigningCertificateFound,
			Info:          signer.ID,
			Test:          func() bool { return ref != nil },
		},
		report.Check{
			Tag:           report.BBB_ICS_AIDNASNE,
			Level:         issuerSerial,
			Indication:    report.Indeterminate,
			SubIndication: report.NoSigningCertificateFound,
			Test:          func() bool { return ref == nil || issuerSerialMatch(*ref, signer) },
		},
	)
	if !ok {
		return b, nil
	}
	return b, signer
}

// matchReference returns the first certificate whose encoding matches a
// signing-certificate reference. The certificate named by the parser is
// tried first.
func matchReference(d *diagnostic.DiagnosticData, obj *diagnostic.SignedObject) (*diagnostic.Certificate, *diagnostic.CertificateRef) {
	candidates := make([]*diagnostic.Certificate, 0, len(d.Certificates)+1)
	if c, ok := d.Certificate(obj.SigningCertificateID); ok {
		candidates = append(candidates, c)
	}
	candidates = append(candidates, d.Certificates...)

	for i := range obj.SigningCertificateRefs {
		ref := &obj.SigningCertificateRefs[i]
		for _, c := range candidates {
			if len(c.Raw) == 0 {
				continue
			}
			sum, err := ref.DigestAlgorithm.Sum(c.Raw)
			if err == nil && bytes.Equal(sum, ref.DigestValue) {
				return c, ref
			}
		}
	}
	return nil, nil
}

// issuerSerialMatch compares the issuer name after NFC normalisation.
func issuerSerialMatch(ref diagnostic.CertificateRef, c *diagnostic.Certificate) bool {
	if !ref.HasIssuerSerial() {
		return true
	}
	if ref.SerialNumber != "" && ref.SerialNumber != c.SerialNumber {
		return false
	}
	return ref.IssuerName == "" || norm.NFC.String(ref.IssuerName) == norm.NFC.String(c.Issuer)
}

// embeddedSigner returns the signer of a signature without a
// signing-certificate attribute, taken from its PKCS#7 envelope when
// available.
func embeddedSigner(d *diagnostic.DiagnosticData, sig *diagnostic.Signature) *diagnostic.Certificate {
	if len(sig.PKCS7) == 0 {
		c, _ := d.Certificate(sig.SigningCertificateID)
		return c
	}
	x, err := diagnostic.SignerFromPKCS7(sig.PKCS7)
	if err != nil {
		return nil
	}
	c, _ := d.CertificateByRaw(x.Raw)
	return c
}
