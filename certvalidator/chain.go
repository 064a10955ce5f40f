// Package certvalidator provides X.509 certificate path building and
// validation at a fixed point in time.
package certvalidator

import (
	"crypto/x509"

	"github.com/georgepadayatti/adesval/diagnostic"
)

// MaxChainLength bounds prospective chains.
const MaxChainLength = 16

// BuildChain returns the prospective certification path of cert, signing
// certificate first, and whether it ends at a trusted certificate.
//
// Issuers are matched by subject name and, when the encodings are known, by
// signature. Trusted issuers are preferred, then the latest notAfter, then
// the lowest certificate ID. Building stops at the first
// trusted or self-signed certificate; cycles end the chain.
func BuildChain(d *diagnostic.DiagnosticData, cert *diagnostic.Certificate) ([]*diagnostic.Certificate, bool) {
	chain := []*diagnostic.Certificate{cert}
	seen := map[string]bool{cert.ID: true}
	cur := cert
	for !cur.Trusted && !cur.SelfSigned && len(chain) < MaxChainLength {
		next := findIssuer(d, cur, seen)
		if next == nil {
			break
		}
		chain = append(chain, next)
		seen[next.ID] = true
		cur = next
	}
	return chain, cur.Trusted
}

func findIssuer(d *diagnostic.DiagnosticData, cert *diagnostic.Certificate, seen map[string]bool) *diagnostic.Certificate {
	var best *diagnostic.Certificate
	for _, c := range d.Certificates {
		if seen[c.ID] || c.Subject != cert.Issuer || !signedBy(d, cert, c) {
			continue
		}
		switch {
		case best == nil:
			best = c
		case c.Trusted && !best.Trusted:
			best = c
		case c.Trusted != best.Trusted:
		case c.NotAfter.After(best.NotAfter):
			best = c
		case c.NotAfter.Equal(best.NotAfter) && c.ID < best.ID:
			best = c
		}
	}
	return best
}

func signedBy(d *diagnostic.DiagnosticData, cert, issuer *diagnostic.Certificate) bool {
	x, ok := d.X509(cert.ID)
	if !ok {
		return true
	}
	ix, ok := d.X509(issuer.ID)
	if !ok {
		return true
	}
	return checkSignedBy(x, ix)
}

func checkSignedBy(cert, issuer *x509.Certificate) bool {
	return issuer.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

// ChainOf returns the certificate chain of a signed object: the chain
// provided by the diagnostic data when it is complete, otherwise a chain
// built from the signing certificate.
func ChainOf(d *diagnostic.DiagnosticData, o *diagnostic.SignedObject) []*diagnostic.Certificate {
	if chain := d.Chain(o); len(chain) > 0 && chain[len(chain)-1].Trusted {
		return chain
	}
	id := o.SigningCertificateID
	if id == "" && len(o.CertificateChain) > 0 {
		id = o.CertificateChain[0]
	}
	cert, ok := d.Certificate(id)
	if !ok {
		return d.Chain(o)
	}
	chain, _ := BuildChain(d, cert)
	return chain
}

// TrustAnchorIndex returns the index of the first trusted certificate, or -1.
func TrustAnchorIndex(chain []*diagnostic.Certificate) int {
	for i, c := range chain {
		if c.Trusted {
			return i
		}
	}
	return -1
}
