// Package policy defines the validation policy: the level of every check
// per validation context, cryptographic constraints and the chain
// validation model. A Policy is immutable once loaded.
package policy

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrInvalidPolicy  = errors.New("invalid validation policy")
	ErrUnknownLevel   = errors.New("unknown constraint level")
	ErrUnknownModel   = errors.New("unknown validation model")
	ErrUnknownContext = errors.New("unknown validation context")
	ErrUnknownCheck   = errors.New("unknown constraint")
)

// Level is the severity applied when a check does not hold.
type Level string

const (
	LevelIgnore Level = "IGNORE"
	LevelInform Level = "INFORM"
	LevelWarn   Level = "WARN"
	LevelFail   Level = "FAIL"
)

// Valid reports whether the level is known. The empty level is treated as IGNORE.
func (l Level) Valid() bool {
	switch l {
	case "", LevelIgnore, LevelInform, LevelWarn, LevelFail:
		return true
	}
	return false
}

// Model selects the time at which each certificate of a chain is validated.
type Model string

const (
	// ModelShell validates every certificate at the validation time.
	ModelShell Model = "SHELL"
	// ModelChain validates each issuer at the notBefore of the certificate it issued.
	ModelChain Model = "CHAIN"
	// ModelHybrid behaves as SHELL until an issuer fails its validity check,
	// then freezes the time at the notBefore of the certificate it issued.
	ModelHybrid Model = "HYBRID"
)

// Valid reports whether the model is known.
func (m Model) Valid() bool {
	return m == ModelShell || m == ModelChain || m == ModelHybrid
}

// Context is the role of the token being validated.
type Context string

const (
	ContextSignature        Context = "SIGNATURE"
	ContextCounterSignature Context = "COUNTER_SIGNATURE"
	ContextTimestamp        Context = "TIMESTAMP"
	ContextRevocation       Context = "REVOCATION"
	ContextEvidenceRecord   Context = "EVIDENCE_RECORD"
	ContextCertificate      Context = "CERTIFICATE"
)

// Contexts lists every validation context.
var Contexts = []Context{
	ContextSignature,
	ContextCounterSignature,
	ContextTimestamp,
	ContextRevocation,
	ContextEvidenceRecord,
	ContextCertificate,
}

// Valid reports whether the context is known.
func (c Context) Valid() bool {
	for _, k := range Contexts {
		if k == c {
			return true
		}
	}
	return false
}

// LevelValues is a level with the accepted values of a multi-valued check.
type LevelValues struct {
	Level  Level    `yaml:"level"`
	Values []string `yaml:"values,omitempty"`
}

// Accepts reports whether v is one of the accepted values. An empty list accepts everything.
func (lv LevelValues) Accepts(v string) bool {
	if len(lv.Values) == 0 {
		return true
	}
	for _, a := range lv.Values {
		if a == v {
			return true
		}
	}
	return false
}

// CertificateConstraints are the checks applied to one certificate of a chain.
type CertificateConstraints struct {
	Signature               Level       `yaml:"signature"`
	KeyUsage                LevelValues `yaml:"key-usage"`
	ExtendedKeyUsage        LevelValues `yaml:"extended-key-usage"`
	BasicConstraints        Level       `yaml:"basic-constraints"`
	PathLength              Level       `yaml:"path-length"`
	RevocationDataAvailable Level       `yaml:"revocation-data-available"`
	RevocationFreshness     Level       `yaml:"revocation-freshness"`
	NotRevoked              Level       `yaml:"not-revoked"`
	NotOnHold               Level       `yaml:"not-on-hold"`
	Validity                Level       `yaml:"validity"`
	Cryptographic           Level       `yaml:"cryptographic"`
	TrustServiceType        LevelValues `yaml:"trust-service-type"`
	TrustServiceStatus      LevelValues `yaml:"trust-service-status"`
}

// ContextConstraints are the checks applied to a token in one context.
type ContextConstraints struct {
	// ISC
	SigningCertificateAttribute Level `yaml:"signing-certificate-attribute"`
	SigningCertificateDigest    Level `yaml:"signing-certificate-digest"`
	IssuerSerialMatch           Level `yaml:"issuer-serial-match"`

	// VCI
	SignaturePolicy          LevelValues `yaml:"signature-policy"`
	SignaturePolicyAvailable Level       `yaml:"signature-policy-available"`
	SignaturePolicyHash      Level       `yaml:"signature-policy-hash"`

	// XCV
	ProspectiveChain Level `yaml:"prospective-chain"`

	// CV
	ReferenceDataFound  Level `yaml:"reference-data-found"`
	ReferenceDataIntact Level `yaml:"reference-data-intact"`
	SignatureIntact     Level `yaml:"signature-intact"`

	// SAV
	SigningTime              Level       `yaml:"signing-time"`
	SigningTimeNotInFuture   Level       `yaml:"signing-time-not-in-future"`
	MandatedSignedAttributes LevelValues `yaml:"mandated-signed-attributes"`
	ContentTimestampOrder    Level       `yaml:"content-timestamp-order"`
	MessageImprint           Level       `yaml:"message-imprint"`
	Cryptographic            Level       `yaml:"cryptographic"`

	SigningCertificate CertificateConstraints `yaml:"signing-certificate"`
	CACertificate      CertificateConstraints `yaml:"ca-certificate"`
}

// Certificate returns the constraints for the signing certificate or a CA certificate.
func (c *ContextConstraints) Certificate(signing bool) *CertificateConstraints {
	if signing {
		return &c.SigningCertificate
	}
	return &c.CACertificate
}

// Policy is a loaded validation policy.
type Policy struct {
	name        string
	description string
	model       Model
	// Zero means revocation data is fresh while nextUpdate is not reached.
	revocationFreshness time.Duration
	contexts            map[Context]*ContextConstraints
	crypto              map[Context]*Crypto
	defaultCrypto       *Crypto
}

// Name returns the policy name.
func (p *Policy) Name() string { return p.name }

// Description returns the policy description.
func (p *Policy) Description() string { return p.description }

// Model returns the chain validation model.
func (p *Policy) Model() Model { return p.model }

// RevocationFreshness returns the maximum accepted age of revocation data,
// or zero when the nextUpdate of the revocation data decides freshness.
func (p *Policy) RevocationFreshness() time.Duration { return p.revocationFreshness }

// Context returns the constraints for ctx. A missing counter-signature
// context falls back to the signature context. A missing context returns
// a constraint set with every level IGNORE.
func (p *Policy) Context(ctx Context) *ContextConstraints {
	if c, ok := p.contexts[ctx]; ok {
		return c
	}
	if ctx == ContextCounterSignature {
		if c, ok := p.contexts[ContextSignature]; ok {
			return c
		}
	}
	return &ContextConstraints{}
}

// Crypto returns the cryptographic constraints for ctx.
func (p *Policy) Crypto(ctx Context) *Crypto {
	if c, ok := p.crypto[ctx]; ok {
		return c
	}
	return p.defaultCrypto
}

func (p *Policy) String() string {
	return fmt.Sprintf("%s (%s)", p.name, p.model)
}
