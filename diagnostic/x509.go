package diagnostic

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/fullsailor/pkcs7"

	"github.com/georgepadayatti/adesval/digest"
)

// ErrNoSigner is returned when a PKCS#7 envelope has no single signer certificate.
var ErrNoSigner = errors.New("no signer certificate in PKCS#7 envelope")

// OIDOCSPNoCheck is the id-pkix-ocsp-nocheck extension.
var OIDOCSPNoCheck = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 5}

var keyUsageNames = []struct {
	bit  x509.KeyUsage
	name string
}{
	{x509.KeyUsageDigitalSignature, "digitalSignature"},
	{x509.KeyUsageContentCommitment, "nonRepudiation"},
	{x509.KeyUsageKeyEncipherment, "keyEncipherment"},
	{x509.KeyUsageDataEncipherment, "dataEncipherment"},
	{x509.KeyUsageKeyAgreement, "keyAgreement"},
	{x509.KeyUsageCertSign, "keyCertSign"},
	{x509.KeyUsageCRLSign, "crlSign"},
	{x509.KeyUsageEncipherOnly, "encipherOnly"},
	{x509.KeyUsageDecipherOnly, "decipherOnly"},
}

var extKeyUsageNames = map[x509.ExtKeyUsage]string{
	x509.ExtKeyUsageAny:             "anyExtendedKeyUsage",
	x509.ExtKeyUsageServerAuth:      "serverAuth",
	x509.ExtKeyUsageClientAuth:      "clientAuth",
	x509.ExtKeyUsageCodeSigning:     "codeSigning",
	x509.ExtKeyUsageEmailProtection: "emailProtection",
	x509.ExtKeyUsageTimeStamping:    "timeStamping",
	x509.ExtKeyUsageOCSPSigning:     "OCSPSigning",
}

// CertificateID derives a stable token id from the certificate encoding.
func CertificateID(c *x509.Certificate) string {
	sum := sha256.Sum256(c.Raw)
	return "C-" + strings.ToUpper(hex.EncodeToString(sum[:]))
}

// KeyUsageNames returns the RFC 5280 names of the key usage bits.
func KeyUsageNames(ku x509.KeyUsage) []string {
	var names []string
	for _, k := range keyUsageNames {
		if ku&k.bit != 0 {
			names = append(names, k.name)
		}
	}
	return names
}

// PublicKeyLength returns the key length in bits, or 0 for unknown key types.
func PublicKeyLength(pub any) int {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return k.N.BitLen()
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case ed25519.PublicKey:
		return 256
	}
	return 0
}

// SignatureAlgorithmParts splits an X.509 signature algorithm into its
// digest and encryption algorithm names.
func SignatureAlgorithmParts(sa x509.SignatureAlgorithm) (digest.Algorithm, string) {
	switch sa {
	case x509.SHA1WithRSA:
		return digest.SHA1, "RSA"
	case x509.SHA256WithRSA:
		return digest.SHA256, "RSA"
	case x509.SHA384WithRSA:
		return digest.SHA384, "RSA"
	case x509.SHA512WithRSA:
		return digest.SHA512, "RSA"
	case x509.SHA256WithRSAPSS:
		return digest.SHA256, "RSASSA-PSS"
	case x509.SHA384WithRSAPSS:
		return digest.SHA384, "RSASSA-PSS"
	case x509.SHA512WithRSAPSS:
		return digest.SHA512, "RSASSA-PSS"
	case x509.DSAWithSHA1:
		return digest.SHA1, "DSA"
	case x509.DSAWithSHA256:
		return digest.SHA256, "DSA"
	case x509.ECDSAWithSHA1:
		return digest.SHA1, "ECDSA"
	case x509.ECDSAWithSHA256:
		return digest.SHA256, "ECDSA"
	case x509.ECDSAWithSHA384:
		return digest.SHA384, "ECDSA"
	case x509.ECDSAWithSHA512:
		return digest.SHA512, "ECDSA"
	case x509.PureEd25519:
		return digest.SHA512, "Ed25519"
	}
	return "", sa.String()
}

// NewCertificate converts a parsed certificate. The issuer is used to check
// the certificate signature; nil means the certificate verifies itself.
func NewCertificate(c *x509.Certificate, issuer *x509.Certificate) *Certificate {
	selfSigned := bytes.Equal(c.RawIssuer, c.RawSubject) && checkSignature(c, c)
	signer := issuer
	if signer == nil {
		signer = c
	}
	dig, enc := SignatureAlgorithmParts(c.SignatureAlgorithm)
	out := &Certificate{
		ID:                  CertificateID(c),
		Subject:             c.Subject.String(),
		Issuer:              c.Issuer.String(),
		SerialNumber:        c.SerialNumber.String(),
		NotBefore:           c.NotBefore,
		NotAfter:            c.NotAfter,
		Raw:                 c.Raw,
		SelfSigned:          selfSigned,
		SignatureIntact:     checkSignature(c, signer),
		CA:                  c.BasicConstraintsValid && c.IsCA,
		KeyUsages:           KeyUsageNames(c.KeyUsage),
		DigestAlgorithm:     dig,
		EncryptionAlgorithm: enc,
		KeyLength:           PublicKeyLength(signer.PublicKey),
		PublicKeyLength:     PublicKeyLength(c.PublicKey),
	}
	if out.CA && (c.MaxPathLen > 0 || c.MaxPathLenZero) {
		n := c.MaxPathLen
		out.PathLenConstraint = &n
	}
	for _, eku := range c.ExtKeyUsage {
		if name, ok := extKeyUsageNames[eku]; ok {
			out.ExtendedKeyUsages = append(out.ExtendedKeyUsages, name)
		}
	}
	for _, ext := range c.Extensions {
		if ext.Id.Equal(OIDOCSPNoCheck) {
			out.OCSPNoCheck = true
		}
	}
	return out
}

func checkSignature(c, signer *x509.Certificate) bool {
	// CheckSignatureFrom rejects non-CA signers, self-signed leaves included.
	if c == signer {
		return c.CheckSignature(c.SignatureAlgorithm, c.RawTBSCertificate, c.Signature) == nil
	}
	return c.CheckSignatureFrom(signer) == nil
}

// CertificatesFromPKCS7 returns the certificates embedded in a PKCS#7 envelope.
func CertificatesFromPKCS7(der []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#7: %w", err)
	}
	return p7.Certificates, nil
}

// SignerFromPKCS7 returns the certificate of the only signer of a PKCS#7 envelope.
func SignerFromPKCS7(der []byte) (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#7: %w", err)
	}
	signer := p7.GetOnlySigner()
	if signer == nil {
		return nil, ErrNoSigner
	}
	return signer, nil
}

// CertificateByRaw returns the certificate with the given DER encoding.
func (d *DiagnosticData) CertificateByRaw(raw []byte) (*Certificate, bool) {
	for _, c := range d.Certificates {
		if bytes.Equal(c.Raw, raw) {
			return c, true
		}
	}
	return nil, false
}
