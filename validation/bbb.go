// Package validation implements the validation processes of ETSI EN 319
// 102-1: the basic building blocks, past signature validation and the
// signature validation levels built on them.
package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/georgepadayatti/adesval/certvalidator"
	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// Validation errors. Validation outcomes are reported as indications;
// these are returned for unusable requests only.
var (
	ErrInvalidInput  = errors.New("invalid validation input")
	ErrUnsignedToken = errors.New("token carries no signature")
)

// BBBInput is a basic building blocks request for one token.
type BBBInput struct {
	Data    *diagnostic.DiagnosticData
	Token   diagnostic.Token
	Context policy.Context
	Policy  *policy.Policy
	Time    time.Time
}

// ExecuteBBB runs the basic building blocks for a signature, timestamp or
// revocation token: identification of the signing certificate, validation
// context initialisation (signatures only), certificate chain validation,
// cryptographic verification and signature acceptance validation.
//
// An INDETERMINATE chain validation that past validation may rescue does
// not stop the process: a FAILED cryptographic verification or acceptance
// validation overrides it, otherwise the chain conclusion stands.
func ExecuteBBB(in *BBBInput) (*report.BBBResult, error) {
	if in == nil || in.Data == nil || in.Token == nil || in.Policy == nil {
		return nil, ErrInvalidInput
	}
	obj, ok := signedObject(in.Token)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnsignedToken, in.Token.Kind(), in.Token.TokenID())
	}
	cc := in.Policy.Context(in.Context)
	res := &report.BBBResult{
		TokenID:        obj.ID,
		Context:        string(in.Context),
		ValidationTime: in.Time,
	}

	isc, signer := identifySigningCertificate(in.Data, in.Token, obj, cc)
	res.ISC = isc
	if !conclude(res, isc) {
		return res, nil
	}
	res.SigningCertificateID = signer.ID

	if sig, ok := in.Token.(*diagnostic.Signature); ok && isSignatureContext(in.Context) {
		res.VCI = validateConstraintsInitialisation(sig, cc)
		if !conclude(res, res.VCI) {
			return res, nil
		}
	}

	res.XCV = certvalidator.ValidateChain(certvalidator.Input{
		Data:    in.Data,
		Chain:   chainFor(in.Data, obj, signer),
		Context: in.Context,
		Policy:  in.Policy,
		Time:    in.Time,
	})
	rescuable := res.XCV.Conclusion.Rescuable()
	if !conclude(res, &res.XCV.Block) && !rescuable {
		return res, nil
	}

	res.CV = cryptographicVerification(in, obj, signer)
	if !res.CV.Passed() {
		if !rescuable || res.CV.Conclusion.IsFailed() {
			conclude(res, res.CV)
		}
		return res, nil
	}
	collectNotes(&res.Conclusion, res.CV)

	res.SAV = signatureAcceptanceValidation(in, obj)
	if !res.SAV.Passed() && (!rescuable || res.SAV.Conclusion.IsFailed()) {
		conclude(res, res.SAV)
		return res, nil
	}
	collectNotes(&res.Conclusion, res.SAV)
	if !rescuable {
		res.Conclusion.Indication = report.Passed
	}
	return res, nil
}

// conclude merges a block into the result and reports whether it passed.
// A failed block sets the result indication.
func conclude(res *report.BBBResult, b *report.Block) bool {
	collectNotes(&res.Conclusion, b)
	if b.Passed() {
		return true
	}
	res.Conclusion.Indication = b.Conclusion.Indication
	res.Conclusion.SubIndication = b.Conclusion.SubIndication
	res.Conclusion.Errors = append(res.Conclusion.Errors, b.Conclusion.Errors...)
	return false
}

func collectNotes(c *report.Conclusion, b *report.Block) {
	c.Warnings = append(c.Warnings, b.Conclusion.Warnings...)
	c.Infos = append(c.Infos, b.Conclusion.Infos...)
}

func isSignatureContext(ctx policy.Context) bool {
	return ctx == policy.ContextSignature || ctx == policy.ContextCounterSignature
}

// signedObject returns the signed part of a token.
func signedObject(t diagnostic.Token) (*diagnostic.SignedObject, bool) {
	switch v := t.(type) {
	case *diagnostic.Signature:
		return &v.SignedObject, true
	case *diagnostic.Timestamp:
		return &v.SignedObject, true
	case *diagnostic.Revocation:
		return &v.SignedObject, true
	}
	return nil, false
}

// chainFor returns the chain of a token starting at its identified signer.
func chainFor(d *diagnostic.DiagnosticData, obj *diagnostic.SignedObject, signer *diagnostic.Certificate) []*diagnostic.Certificate {
	if signer == nil {
		return nil
	}
	if chain := certvalidator.ChainOf(d, obj); len(chain) > 0 && chain[0].ID == signer.ID {
		return chain
	}
	chain, _ := certvalidator.BuildChain(d, signer)
	return chain
}
