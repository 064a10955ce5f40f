package validation

import (
	"crypto/x509"
	"fmt"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/validation/report"
)

var signatureAlgorithms = func() map[string]x509.SignatureAlgorithm {
	m := make(map[string]x509.SignatureAlgorithm)
	for _, a := range []x509.SignatureAlgorithm{
		x509.SHA256WithRSA, x509.SHA384WithRSA, x509.SHA512WithRSA,
		x509.SHA256WithRSAPSS, x509.SHA384WithRSAPSS, x509.SHA512WithRSAPSS,
		x509.ECDSAWithSHA256, x509.ECDSAWithSHA384, x509.ECDSAWithSHA512,
		x509.PureEd25519,
	} {
		m[a.String()] = a
	}
	return m
}()

// cryptographicVerification runs CV: the signed data references must be
// found and intact and the signature value must verify with the signing
// certificate's key.
func cryptographicVerification(in *BBBInput, obj *diagnostic.SignedObject, signer *diagnostic.Certificate) *report.Block {
	b := report.NewBlock("CV")
	cc := in.Policy.Context(in.Context)
	crypto := in.Policy.Crypto(in.Context)
	_, isSignature := in.Token.(*diagnostic.Signature)

	cr := crypto.Check(obj.Algorithms(), in.Time)
	b.Run(
		report.Check{
			Tag:           report.BBB_CV_IRDOF,
			Level:         cc.ReferenceDataFound,
			Indication:    report.Indeterminate,
			SubIndication: report.SignedDataNotFound,
			Test: func() bool {
				if isSignature && len(obj.DigestMatchers) == 0 {
					return false
				}
				for _, m := range obj.DigestMatchers {
					if !m.Found {
						return false
					}
				}
				return true
			},
		},
		report.Check{
			Tag:           report.BBB_CV_IRDOI,
			Level:         cc.ReferenceDataIntact,
			Indication:    report.Failed,
			SubIndication: report.HashFailure,
			Test: func() bool {
				for _, m := range obj.DigestMatchers {
					if !m.Intact {
						return false
					}
				}
				return true
			},
		},
		report.Check{
			Tag:           report.BBB_CV_ASCCM,
			Level:         crypto.Level(),
			Indication:    report.Failed,
			SubIndication: report.SigCryptoFailure,
			Info:          fmt.Sprintf("%s %s", obj.DigestAlgorithm, obj.EncryptionAlgorithm),
			Test:          func() bool { return !cr.Unsupported },
		},
		report.Check{
			Tag:           report.BBB_CV_ISI,
			Level:         cc.SignatureIntact,
			Indication:    report.Failed,
			SubIndication: report.SigCryptoFailure,
			Test:          func() bool { return signatureIntact(in.Data, obj, signer) },
		},
	)
	return b
}

// signatureIntact verifies the signature value when the raw material is
// known, and otherwise trusts the parsing layer.
func signatureIntact(d *diagnostic.DiagnosticData, obj *diagnostic.SignedObject, signer *diagnostic.Certificate) bool {
	if len(obj.SignatureValue) == 0 || obj.SignedContent == nil || signer == nil {
		return obj.SignatureIntact
	}
	x, ok := d.X509(signer.ID)
	if !ok {
		return obj.SignatureIntact
	}
	alg, ok := signatureAlgorithms[obj.SignatureAlgorithm]
	if !ok {
		return obj.SignatureIntact
	}
	return x.CheckSignature(alg, obj.SignedContent, obj.SignatureValue) == nil
}
