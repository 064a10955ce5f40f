// Package pkitest builds small test PKIs and diagnostic data sets with real
// ECDSA keys, certificates, CRLs, OCSP responses, signatures and timestamps.
package pkitest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/digest"
)

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Cert is a generated certificate with its key and diagnostic token.
type Cert struct {
	X509 *x509.Certificate
	Key  *ecdsa.PrivateKey
	Diag *diagnostic.Certificate
}

// ID returns the diagnostic token id.
func (c *Cert) ID() string { return c.Diag.ID }

// Revoked describes a CRL or OCSP entry.
type Revoked struct {
	Cert   *Cert
	At     time.Time
	Reason int
}

// PKI accumulates certificates and tokens into diagnostic data.
type PKI struct {
	t      testing.TB
	serial int64
	Data   *diagnostic.DiagnosticData
}

// New creates an empty PKI.
func New(t testing.TB) *PKI {
	t.Helper()
	return &PKI{t: t, serial: 1, Data: &diagnostic.DiagnosticData{}}
}

// CertOption adjusts a certificate template.
type CertOption func(*x509.Certificate)

// WithKeyUsage replaces the key usage.
func WithKeyUsage(ku x509.KeyUsage) CertOption {
	return func(c *x509.Certificate) { c.KeyUsage = ku }
}

// WithExtKeyUsage sets extended key usages.
func WithExtKeyUsage(eku ...x509.ExtKeyUsage) CertOption {
	return func(c *x509.Certificate) { c.ExtKeyUsage = eku }
}

// WithMaxPathLen sets a path length constraint on a CA.
func WithMaxPathLen(n int) CertOption {
	return func(c *x509.Certificate) {
		c.MaxPathLen = n
		c.MaxPathLenZero = n == 0
	}
}

func (p *PKI) genCert(name string, parent *Cert, isCA bool, notBefore, notAfter time.Time, opts ...CertOption) *Cert {
	p.t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		p.t.Fatalf("failed to generate key: %v", err)
	}
	p.serial++
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(p.serial),
		Subject:               pkix.Name{CommonName: name, Organization: []string{"Test Org"}, Country: []string{"BE"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
		IsCA:                  isCA,
	}
	if isCA {
		template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
	} else {
		template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment
	}
	for _, o := range opts {
		o(template)
	}

	signerCert, signerKey := template, key
	var issuer *x509.Certificate
	if parent != nil {
		signerCert, signerKey = parent.X509, parent.Key
		issuer = parent.X509
	}
	der, err := x509.CreateCertificate(rand.Reader, template, signerCert, &key.PublicKey, signerKey)
	if err != nil {
		p.t.Fatalf("failed to create certificate %s: %v", name, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		p.t.Fatalf("failed to parse certificate %s: %v", name, err)
	}
	c := &Cert{X509: cert, Key: key, Diag: diagnostic.NewCertificate(cert, issuer)}
	p.Data.Certificates = append(p.Data.Certificates, c.Diag)
	return c
}

// Root creates a trusted self-signed CA.
func (p *PKI) Root(name string, notBefore, notAfter time.Time, opts ...CertOption) *Cert {
	p.t.Helper()
	c := p.genCert(name, nil, true, notBefore, notAfter, opts...)
	c.Diag.Trusted = true
	return c
}

// CA creates an intermediate CA issued by parent.
func (p *PKI) CA(name string, parent *Cert, notBefore, notAfter time.Time, opts ...CertOption) *Cert {
	p.t.Helper()
	return p.genCert(name, parent, true, notBefore, notAfter, opts...)
}

// Leaf creates an end-entity certificate issued by parent.
func (p *PKI) Leaf(name string, parent *Cert, notBefore, notAfter time.Time, opts ...CertOption) *Cert {
	p.t.Helper()
	return p.genCert(name, parent, false, notBefore, notAfter, opts...)
}

// TSA creates a timestamping unit certificate issued by parent.
func (p *PKI) TSA(name string, parent *Cert, notBefore, notAfter time.Time) *Cert {
	p.t.Helper()
	return p.genCert(name, parent, false, notBefore, notAfter,
		WithKeyUsage(x509.KeyUsageDigitalSignature),
		WithExtKeyUsage(x509.ExtKeyUsageTimeStamping))
}

// CRL returns a DER encoded CRL signed by issuer.
func (p *PKI) CRL(issuer *Cert, thisUpdate, nextUpdate time.Time, revoked ...Revoked) []byte {
	p.t.Helper()
	template := &x509.RevocationList{
		Number:     big.NewInt(thisUpdate.Unix()),
		ThisUpdate: thisUpdate,
		NextUpdate: nextUpdate,
	}
	for _, r := range revoked {
		template.RevokedCertificateEntries = append(template.RevokedCertificateEntries, x509.RevocationListEntry{
			SerialNumber:   r.Cert.X509.SerialNumber,
			RevocationTime: r.At,
			ReasonCode:     r.Reason,
		})
	}
	der, err := x509.CreateRevocationList(rand.Reader, template, issuer.X509, issuer.Key)
	if err != nil {
		p.t.Fatalf("failed to create CRL: %v", err)
	}
	return der
}

// OCSP returns a DER encoded OCSP response about cert signed by issuer.
// A nil revoked entry means the certificate is good. The response is
// produced at the current time.
func (p *PKI) OCSP(cert, issuer *Cert, thisUpdate, nextUpdate time.Time, revoked *Revoked) []byte {
	p.t.Helper()
	template := ocsp.Response{
		Status:       ocsp.Good,
		SerialNumber: cert.X509.SerialNumber,
		ThisUpdate:   thisUpdate,
		NextUpdate:   nextUpdate,
	}
	if revoked != nil {
		template.Status = ocsp.Revoked
		template.RevokedAt = revoked.At
		template.RevocationReason = revoked.Reason
	}
	der, err := ocsp.CreateResponse(issuer.X509, issuer.X509, template, issuer.Key)
	if err != nil {
		p.t.Fatalf("failed to create OCSP response: %v", err)
	}
	return der
}

func (p *PKI) sign(key *ecdsa.PrivateKey, content []byte) []byte {
	p.t.Helper()
	h := sha256.Sum256(content)
	sig, err := ecdsa.SignASN1(rand.Reader, key, h[:])
	if err != nil {
		p.t.Fatalf("failed to sign: %v", err)
	}
	return sig
}

func (p *PKI) signedObject(id string, signer *Cert, content []byte) diagnostic.SignedObject {
	p.t.Helper()
	certDigest := sha256.Sum256(signer.X509.Raw)
	return diagnostic.SignedObject{
		ID: id,
		SigningCertificateRefs: []diagnostic.CertificateRef{{
			DigestAlgorithm: digest.SHA256,
			DigestValue:     certDigest[:],
			IssuerName:      signer.X509.Issuer.String(),
			SerialNumber:    signer.X509.SerialNumber.String(),
		}},
		SigningCertificateID: signer.ID(),
		SignatureIntact:      true,
		SignatureAlgorithm:   x509.ECDSAWithSHA256.String(),
		SignatureValue:       p.sign(signer.Key, content),
		SignedContent:        content,
		DigestAlgorithm:      digest.SHA256,
		EncryptionAlgorithm:  "ECDSA",
		KeyLength:            diagnostic.PublicKeyLength(signer.X509.PublicKey),
		DigestMatchers: []diagnostic.DigestMatcher{{
			Type:            "MESSAGE_DIGEST",
			DigestAlgorithm: digest.SHA256,
			Found:           true,
			Intact:          true,
		}},
	}
}

// Signature creates a signature over content by signer.
func (p *PKI) Signature(id string, signer *Cert, signingTime time.Time, content []byte) *diagnostic.Signature {
	p.t.Helper()
	st := signingTime
	s := &diagnostic.Signature{
		SignedObject:     p.signedObject(id, signer, content),
		Format:           "CAdES-BASELINE-B",
		SigningTime:      &st,
		SignedAttributes: []string{"content-type", "message-digest", "signing-time", "signing-certificate-v2"},
	}
	p.Data.Signatures = append(p.Data.Signatures, s)
	return s
}

// Timestamp creates a timestamp by tsa at the given time over an imprint
// value computed with alg. The token bytes are unique per call.
func (p *PKI) Timestamp(id string, tsa *Cert, typ diagnostic.TimestampType, at time.Time, alg digest.Algorithm, imprint []byte, covered ...string) *diagnostic.Timestamp {
	p.t.Helper()
	info := make([]byte, 8, 8+len(imprint)+len(id))
	binary.BigEndian.PutUint64(info, uint64(at.Unix()))
	info = append(append(info, imprint...), id...)
	obj := p.signedObject(id, tsa, info)
	ts := &diagnostic.Timestamp{
		SignedObject:   obj,
		Type:           typ,
		ProductionTime: at,
		MessageImprint: diagnostic.MessageImprint{
			DigestAlgorithm: alg,
			Value:           imprint,
			Found:           true,
			Intact:          true,
		},
		Raw:        append(append([]byte{}, info...), obj.SignatureValue...),
		CoveredIDs: covered,
	}
	p.Data.Timestamps = append(p.Data.Timestamps, ts)
	return ts
}

// SignatureTimestamp creates a signature timestamp covering s and its signing certificate.
func (p *PKI) SignatureTimestamp(id string, tsa *Cert, s *diagnostic.Signature, at time.Time) *diagnostic.Timestamp {
	p.t.Helper()
	imprint := sha256.Sum256(s.SignatureValue)
	ts := p.Timestamp(id, tsa, diagnostic.TimestampSignature, at, digest.SHA256, imprint[:], s.ID, s.SigningCertificateID)
	s.TimestampIDs = append(s.TimestampIDs, ts.ID)
	return ts
}

// Resolve resolves the diagnostic data and sets the validation time.
func (p *PKI) Resolve(validationTime time.Time) *diagnostic.DiagnosticData {
	p.t.Helper()
	vt := validationTime
	p.Data.ValidationTime = &vt
	if err := p.Data.Resolve(); err != nil {
		p.t.Fatalf("failed to resolve diagnostic data: %v", err)
	}
	return p.Data
}

// Hash returns the digest of data with the given algorithm.
func Hash(t testing.TB, alg digest.Algorithm, data []byte) []byte {
	t.Helper()
	sum, err := alg.Sum(data)
	if err != nil {
		t.Fatalf("digest %s: %v", alg, err)
	}
	return sum
}
