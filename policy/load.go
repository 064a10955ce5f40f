package policy

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultPolicy []byte

// DateLayout is the layout of expiration dates in policy documents.
const DateLayout = "2006-01-02"

// PolicyError is returned for malformed policy documents.
type PolicyError struct {
	Field   string
	Message string
	Err     error
}

func (e *PolicyError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("policy error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("policy error: %s", e.Message)
}

func (e *PolicyError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidPolicy
}

// Is makes every PolicyError match ErrInvalidPolicy.
func (e *PolicyError) Is(target error) bool {
	return target == ErrInvalidPolicy
}

func newPolicyError(field string, err error, format string, args ...any) *PolicyError {
	if err == nil {
		err = ErrInvalidPolicy
	}
	return &PolicyError{Field: field, Message: fmt.Sprintf(format, args...), Err: err}
}

type document struct {
	Name                string                          `yaml:"name"`
	Description         string                          `yaml:"description"`
	Model               Model                           `yaml:"model"`
	RevocationFreshness string                          `yaml:"revocation-freshness"`
	Contexts            map[Context]*ContextConstraints `yaml:"contexts"`
	Cryptographic       cryptoDocument                  `yaml:"cryptographic"`
}

type cryptoDocument struct {
	Level                Level                      `yaml:"level"`
	AcceptableDigests    []string                   `yaml:"acceptable-digest-algorithms"`
	AcceptableEncryption []string                   `yaml:"acceptable-encryption-algorithms"`
	MinimumKeySizes      map[string]int             `yaml:"minimum-key-sizes"`
	Expirations          []expirationDocument       `yaml:"expirations"`
	Contexts             map[Context]cryptoDocument `yaml:"contexts,omitempty"`
}

type expirationDocument struct {
	Algorithm string `yaml:"algorithm"`
	KeySize   int    `yaml:"key-size"`
	Date      string `yaml:"date"`
}

// Default returns the built-in policy.
func Default() (*Policy, error) {
	return ParseYAML(defaultPolicy)
}

// Load reads a policy from a YAML or XML file.
func Load(filename string) (*Policy, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", filename, err)
	}
	return Parse(data)
}

// Parse decodes a policy document, choosing XML when the document starts
// with '<' and YAML otherwise.
func Parse(data []byte) (*Policy, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("<")) {
		return ParseXML(data)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a YAML policy document.
func ParseYAML(data []byte) (*Policy, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, newPolicyError("", err, "failed to parse YAML: %v", err)
	}
	return build(&doc)
}

func build(doc *document) (*Policy, error) {
	if doc.Name == "" {
		return nil, newPolicyError("name", nil, "required field is missing")
	}
	if doc.Model == "" {
		doc.Model = ModelShell
	}
	if !doc.Model.Valid() {
		return nil, newPolicyError("model", ErrUnknownModel, "%q", doc.Model)
	}
	p := &Policy{
		name:        doc.Name,
		description: doc.Description,
		model:       doc.Model,
		contexts:    make(map[Context]*ContextConstraints),
		crypto:      make(map[Context]*Crypto),
	}
	if doc.RevocationFreshness != "" {
		d, err := time.ParseDuration(doc.RevocationFreshness)
		if err != nil || d < 0 {
			return nil, newPolicyError("revocation-freshness", err, "invalid duration %q", doc.RevocationFreshness)
		}
		p.revocationFreshness = d
	}
	for ctx, c := range doc.Contexts {
		if !ctx.Valid() {
			return nil, newPolicyError("contexts", ErrUnknownContext, "%q", ctx)
		}
		if c == nil {
			c = &ContextConstraints{}
		}
		if err := c.validate("contexts." + string(ctx)); err != nil {
			return nil, err
		}
		p.contexts[ctx] = c
	}

	def, err := buildCrypto("cryptographic", doc.Cryptographic)
	if err != nil {
		return nil, err
	}
	p.defaultCrypto = def
	for ctx, cd := range doc.Cryptographic.Contexts {
		if !ctx.Valid() {
			return nil, newPolicyError("cryptographic.contexts", ErrUnknownContext, "%q", ctx)
		}
		c, err := buildCrypto("cryptographic.contexts."+string(ctx), cd)
		if err != nil {
			return nil, err
		}
		p.crypto[ctx] = c
	}
	return p, nil
}

func buildCrypto(field string, cd cryptoDocument) (*Crypto, error) {
	if !cd.Level.Valid() {
		return nil, newPolicyError(field+".level", ErrUnknownLevel, "%q", cd.Level)
	}
	exps := make([]AlgorithmExpiration, 0, len(cd.Expirations))
	for i, e := range cd.Expirations {
		if e.Algorithm == "" {
			return nil, newPolicyError(fmt.Sprintf("%s.expirations[%d]", field, i), nil, "algorithm is missing")
		}
		d, err := time.Parse(DateLayout, e.Date)
		if err != nil {
			return nil, newPolicyError(fmt.Sprintf("%s.expirations[%d]", field, i), err, "invalid date %q", e.Date)
		}
		exps = append(exps, AlgorithmExpiration{Algorithm: e.Algorithm, KeySize: e.KeySize, Date: d})
	}
	return NewCrypto(cd.Level, cd.AcceptableDigests, cd.AcceptableEncryption, cd.MinimumKeySizes, exps), nil
}

func (c *ContextConstraints) levels() map[string]*Level {
	return map[string]*Level{
		"signing-certificate-attribute": &c.SigningCertificateAttribute,
		"signing-certificate-digest":    &c.SigningCertificateDigest,
		"issuer-serial-match":           &c.IssuerSerialMatch,
		"signature-policy-available":    &c.SignaturePolicyAvailable,
		"signature-policy-hash":         &c.SignaturePolicyHash,
		"prospective-chain":             &c.ProspectiveChain,
		"reference-data-found":          &c.ReferenceDataFound,
		"reference-data-intact":         &c.ReferenceDataIntact,
		"signature-intact":              &c.SignatureIntact,
		"signing-time":                  &c.SigningTime,
		"signing-time-not-in-future":    &c.SigningTimeNotInFuture,
		"content-timestamp-order":       &c.ContentTimestampOrder,
		"message-imprint":               &c.MessageImprint,
		"cryptographic":                 &c.Cryptographic,
	}
}

func (c *ContextConstraints) valueLevels() map[string]*LevelValues {
	return map[string]*LevelValues{
		"signature-policy":           &c.SignaturePolicy,
		"mandated-signed-attributes": &c.MandatedSignedAttributes,
	}
}

func (c *CertificateConstraints) levels() map[string]*Level {
	return map[string]*Level{
		"signature":                 &c.Signature,
		"basic-constraints":         &c.BasicConstraints,
		"path-length":               &c.PathLength,
		"revocation-data-available": &c.RevocationDataAvailable,
		"revocation-freshness":      &c.RevocationFreshness,
		"not-revoked":               &c.NotRevoked,
		"not-on-hold":               &c.NotOnHold,
		"validity":                  &c.Validity,
		"cryptographic":             &c.Cryptographic,
	}
}

func (c *CertificateConstraints) valueLevels() map[string]*LevelValues {
	return map[string]*LevelValues{
		"key-usage":            &c.KeyUsage,
		"extended-key-usage":   &c.ExtendedKeyUsage,
		"trust-service-type":   &c.TrustServiceType,
		"trust-service-status": &c.TrustServiceStatus,
	}
}

func validateLevels(field string, levels map[string]*Level, values map[string]*LevelValues) error {
	for name, l := range levels {
		if !l.Valid() {
			return newPolicyError(field+"."+name, ErrUnknownLevel, "%q", *l)
		}
	}
	for name, lv := range values {
		if !lv.Level.Valid() {
			return newPolicyError(field+"."+name, ErrUnknownLevel, "%q", lv.Level)
		}
	}
	return nil
}

func (c *ContextConstraints) validate(field string) error {
	if err := validateLevels(field, c.levels(), c.valueLevels()); err != nil {
		return err
	}
	if err := c.SigningCertificate.validate(field + ".signing-certificate"); err != nil {
		return err
	}
	return c.CACertificate.validate(field + ".ca-certificate")
}

func (c *CertificateConstraints) validate(field string) error {
	return validateLevels(field, c.levels(), c.valueLevels())
}
