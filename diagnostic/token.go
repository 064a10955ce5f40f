// Package diagnostic holds the read-only representation of a signed
// document consumed by the validation processes: signatures, certificates,
// timestamps, revocation data and evidence records, already extracted from
// their container formats.
package diagnostic

import (
	"time"

	"github.com/georgepadayatti/adesval/digest"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/trust"
)

// Kind discriminates token variants.
type Kind string

const (
	KindSignature      Kind = "SIGNATURE"
	KindCertificate    Kind = "CERTIFICATE"
	KindTimestamp      Kind = "TIMESTAMP"
	KindRevocation     Kind = "REVOCATION"
	KindEvidenceRecord Kind = "EVIDENCE_RECORD"
)

// Token is implemented by *Signature, *Certificate, *Timestamp,
// *Revocation and *EvidenceRecord only.
type Token interface {
	TokenID() string
	Kind() Kind
	sealed()
}

// CertificateRef is a signing-certificate reference carried by a signed attribute.
type CertificateRef struct {
	DigestAlgorithm digest.Algorithm `json:"digestAlgorithm"`
	DigestValue     []byte           `json:"digestValue"`
	IssuerName      string           `json:"issuerName,omitempty"`
	SerialNumber    string           `json:"serialNumber,omitempty"`
}

// HasIssuerSerial reports whether the reference carries issuer and serial number.
func (r CertificateRef) HasIssuerSerial() bool {
	return r.IssuerName != "" || r.SerialNumber != ""
}

// DigestMatcher is a signed reference (data object, signed properties...)
// checked by the parsing layer.
type DigestMatcher struct {
	Type            string           `json:"type"`
	Name            string           `json:"name,omitempty"`
	DigestAlgorithm digest.Algorithm `json:"digestAlgorithm,omitempty"`
	Found           bool             `json:"found"`
	Intact          bool             `json:"intact"`
}

// SignedObject is the part shared by signatures, timestamps and revocation data.
type SignedObject struct {
	ID                     string           `json:"id"`
	SigningCertificateRefs []CertificateRef `json:"signingCertificateRefs,omitempty"`
	// SigningCertificateID is the certificate the parser matched as signer.
	SigningCertificateID string `json:"signingCertificateId,omitempty"`
	// CertificateChain lists certificate ids from the signing certificate
	// toward the trust anchor.
	CertificateChain []string `json:"certificateChain,omitempty"`
	SignatureIntact  bool     `json:"signatureIntact"`
	// Raw material for signature verification, when available.
	SignatureAlgorithm  string           `json:"signatureAlgorithm,omitempty"`
	SignatureValue      []byte           `json:"signatureValue,omitempty"`
	SignedContent       []byte           `json:"signedContent,omitempty"`
	DigestAlgorithm     digest.Algorithm `json:"digestAlgorithm,omitempty"`
	EncryptionAlgorithm string           `json:"encryptionAlgorithm,omitempty"`
	KeyLength           int              `json:"keyLength,omitempty"`
	DigestMatchers      []DigestMatcher  `json:"digestMatchers,omitempty"`
}

// TokenID returns the token identifier.
func (o *SignedObject) TokenID() string { return o.ID }

// Algorithms returns the algorithms used to produce the signature value.
func (o *SignedObject) Algorithms() []policy.Algorithm {
	return []policy.Algorithm{
		{Name: string(o.DigestAlgorithm)},
		{Name: o.EncryptionAlgorithm, KeySize: o.KeyLength},
	}
}

// SignaturePolicy describes the policy a signature claims.
type SignaturePolicy struct {
	ID        string `json:"id,omitempty"`
	Implied   bool   `json:"implied,omitempty"`
	Available bool   `json:"available"`
	// DigestMatch is nil when the policy carries no digest.
	DigestMatch *bool `json:"digestMatch,omitempty"`
}

// Signature is an AdES signature or counter-signature.
type Signature struct {
	SignedObject
	Format           string     `json:"format,omitempty"`
	SigningTime      *time.Time `json:"signingTime,omitempty"`
	SignedAttributes []string   `json:"signedAttributes,omitempty"`
	// NoSigningCertificateAttribute is set for formats without a
	// signing-certificate reference (bare PKCS#7).
	NoSigningCertificateAttribute bool `json:"noSigningCertificateAttribute,omitempty"`
	// PKCS7 is the raw envelope of a bare PKCS#7 signature.
	PKCS7             []byte           `json:"pkcs7,omitempty"`
	Policy            *SignaturePolicy `json:"policy,omitempty"`
	ParentID          string           `json:"parentId,omitempty"`
	TimestampIDs      []string         `json:"timestampIds,omitempty"`
	EvidenceRecordIDs []string         `json:"evidenceRecordIds,omitempty"`
}

func (*Signature) Kind() Kind { return KindSignature }
func (*Signature) sealed()    {}

// IsCounterSignature reports whether the signature counter-signs another one.
func (s *Signature) IsCounterSignature() bool { return s.ParentID != "" }

// RevocationStatus is the status of a certificate in revocation data.
type RevocationStatus string

const (
	StatusGood    RevocationStatus = "GOOD"
	StatusRevoked RevocationStatus = "REVOKED"
	StatusUnknown RevocationStatus = "UNKNOWN"
)

// ReasonCertificateHold marks a suspended certificate.
const ReasonCertificateHold = "certificateHold"

// CertificateRevocation is the status of one certificate in one revocation datum.
type CertificateRevocation struct {
	RevocationID   string           `json:"revocationId"`
	Status         RevocationStatus `json:"status"`
	RevocationDate *time.Time       `json:"revocationDate,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// Certificate is an X.509 certificate.
type Certificate struct {
	ID                  string                  `json:"id"`
	Subject             string                  `json:"subject"`
	Issuer              string                  `json:"issuer"`
	SerialNumber        string                  `json:"serialNumber"`
	NotBefore           time.Time               `json:"notBefore"`
	NotAfter            time.Time               `json:"notAfter"`
	Raw                 []byte                  `json:"raw,omitempty"`
	SelfSigned          bool                    `json:"selfSigned,omitempty"`
	Trusted             bool                    `json:"trusted,omitempty"`
	// SignatureIntact reports whether the issuer key verifies the certificate.
	SignatureIntact     bool                    `json:"signatureIntact"`
	CA                  bool                    `json:"ca,omitempty"`
	// PathLenConstraint is nil when the certificate sets no limit.
	PathLenConstraint   *int                    `json:"pathLenConstraint,omitempty"`
	KeyUsages           []string                `json:"keyUsages,omitempty"`
	ExtendedKeyUsages   []string                `json:"extendedKeyUsages,omitempty"`
	OCSPNoCheck         bool                    `json:"ocspNoCheck,omitempty"`
	DigestAlgorithm     digest.Algorithm        `json:"digestAlgorithm,omitempty"`
	EncryptionAlgorithm string                  `json:"encryptionAlgorithm,omitempty"`
	// KeyLength is the length of the key that signed the certificate.
	KeyLength           int                     `json:"keyLength,omitempty"`
	// PublicKeyLength is the length of the certificate's own key.
	PublicKeyLength     int                     `json:"publicKeyLength,omitempty"`
	Revocations         []CertificateRevocation `json:"revocations,omitempty"`
	TrustedServices     []*trust.TrustedService `json:"trustedServices,omitempty"`
}

func (c *Certificate) TokenID() string { return c.ID }
func (*Certificate) Kind() Kind        { return KindCertificate }
func (*Certificate) sealed()           {}

// Algorithms returns the algorithms of the certificate's own signature.
func (c *Certificate) Algorithms() []policy.Algorithm {
	return []policy.Algorithm{
		{Name: string(c.DigestAlgorithm)},
		{Name: c.EncryptionAlgorithm, KeySize: c.KeyLength},
	}
}

// HasKeyUsage reports whether the certificate carries the named key usage.
func (c *Certificate) HasKeyUsage(name string) bool {
	for _, ku := range c.KeyUsages {
		if ku == name {
			return true
		}
	}
	return false
}

// HasExtendedKeyUsage reports whether the certificate carries the named extended key usage.
func (c *Certificate) HasExtendedKeyUsage(name string) bool {
	for _, eku := range c.ExtendedKeyUsages {
		if eku == name {
			return true
		}
	}
	return false
}

// ValidAt reports whether t is within [NotBefore, NotAfter].
func (c *Certificate) ValidAt(t time.Time) bool {
	return !t.Before(c.NotBefore) && !t.After(c.NotAfter)
}

// RevocationType is CRL or OCSP.
type RevocationType string

const (
	RevocationCRL  RevocationType = "CRL"
	RevocationOCSP RevocationType = "OCSP"
)

// Revocation is a CRL or an OCSP response.
type Revocation struct {
	SignedObject
	Type           RevocationType `json:"type"`
	ProductionDate time.Time      `json:"productionDate"`
	ThisUpdate     time.Time      `json:"thisUpdate"`
	NextUpdate     *time.Time     `json:"nextUpdate,omitempty"`
	// ExpiredCertsOnCRL is the date from which the CRL keeps expired certificates.
	ExpiredCertsOnCRL *time.Time `json:"expiredCertsOnCrl,omitempty"`
	// ArchiveCutOff is the OCSP archive cutoff extension.
	ArchiveCutOff *time.Time `json:"archiveCutOff,omitempty"`
}

func (*Revocation) Kind() Kind { return KindRevocation }
func (*Revocation) sealed()    {}

// TimestampType is the role of a timestamp.
type TimestampType string

const (
	TimestampContent        TimestampType = "CONTENT_TIMESTAMP"
	TimestampSignature      TimestampType = "SIGNATURE_TIMESTAMP"
	TimestampValidationData TimestampType = "VALIDATION_DATA_TIMESTAMP"
	TimestampArchive        TimestampType = "ARCHIVE_TIMESTAMP"
	TimestampEvidenceRecord TimestampType = "EVIDENCE_RECORD_TIMESTAMP"
)

// MessageImprint is the digest a timestamp token was issued for.
type MessageImprint struct {
	DigestAlgorithm digest.Algorithm `json:"digestAlgorithm"`
	Value           []byte           `json:"value"`
	Found           bool             `json:"found"`
	Intact          bool             `json:"intact"`
}

// Timestamp is an RFC 3161 timestamp token.
type Timestamp struct {
	SignedObject
	Type           TimestampType  `json:"type"`
	ProductionTime time.Time      `json:"productionTime"`
	MessageImprint MessageImprint `json:"messageImprint"`
	// Raw is the DER encoded timestamp token.
	Raw []byte `json:"raw,omitempty"`
	// CoveredIDs lists the tokens the timestamp proves the existence of.
	CoveredIDs []string `json:"coveredIds,omitempty"`
}

func (*Timestamp) Kind() Kind { return KindTimestamp }
func (*Timestamp) sealed()    {}

// DataObject is a data object protected by an evidence record.
type DataObject struct {
	ID      string `json:"id"`
	Content []byte `json:"content"`
}

// ArchiveTimestamp is one archive timestamp with its reduced hash tree.
// HashTree[i] is the i-th partial hash tree (group of sibling digests).
type ArchiveTimestamp struct {
	TimestampID string     `json:"timestampId"`
	HashTree    [][][]byte `json:"hashTree,omitempty"`
}

// ArchiveTimestampChain is a sequence of archive timestamps using one digest algorithm.
type ArchiveTimestampChain struct {
	Order           int                `json:"order"`
	DigestAlgorithm digest.Algorithm   `json:"digestAlgorithm"`
	Timestamps      []ArchiveTimestamp `json:"timestamps"`
}

// EvidenceRecord is an RFC 4998 / RFC 6283 evidence record.
type EvidenceRecord struct {
	ID             string                  `json:"id"`
	CoveredObjects []DataObject            `json:"coveredObjects"`
	Chains         []ArchiveTimestampChain `json:"chains"`
}

func (e *EvidenceRecord) TokenID() string { return e.ID }
func (*EvidenceRecord) Kind() Kind        { return KindEvidenceRecord }
func (*EvidenceRecord) sealed()           {}
