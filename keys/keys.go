// Package keys loads the certificates of trust stores from PEM, DER,
// PKCS#7 and PKCS#12 files.
package keys

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/georgepadayatti/adesval/diagnostic"
)

// Common errors
var (
	ErrNoCertFound       = errors.New("no certificate found in data")
	ErrUnsupportedFormat = errors.New("unsupported trust store format")
)

// LoadCertsFromPemDer loads certificates from a PEM or DER encoded file.
func LoadCertsFromPemDer(filename string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return LoadCertsFromPemDerData(data)
}

// LoadCertsFromPemDerData loads certificates from PEM or DER encoded data.
// DER data may hold one certificate, a concatenation of certificates or a
// PKCS#7 certificate bundle.
func LoadCertsFromPemDerData(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	if isPEM(data) {
		rest := data
		for len(rest) > 0 {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			switch block.Type {
			case "CERTIFICATE", "TRUSTED CERTIFICATE":
				cert, err := x509.ParseCertificate(block.Bytes)
				if err != nil {
					return nil, fmt.Errorf("failed to parse certificate: %w", err)
				}
				certs = append(certs, cert)
			case "PKCS7":
				bundle, err := diagnostic.CertificatesFromPKCS7(block.Bytes)
				if err != nil {
					return nil, fmt.Errorf("failed to parse PKCS#7 bundle: %w", err)
				}
				certs = append(certs, bundle...)
			}
		}
	} else {
		parsed, err := x509.ParseCertificates(data)
		if err != nil {
			bundle, p7err := diagnostic.CertificatesFromPKCS7(data)
			if p7err != nil {
				return nil, fmt.Errorf("failed to parse DER certificate: %w", err)
			}
			parsed = bundle
		}
		certs = parsed
	}

	if len(certs) == 0 {
		return nil, ErrNoCertFound
	}
	return certs, nil
}

// LoadCertsFromPemDerFiles loads certificates from multiple files.
func LoadCertsFromPemDerFiles(filenames []string) ([]*x509.Certificate, error) {
	var all []*x509.Certificate
	for _, filename := range filenames {
		certs, err := LoadCertsFromPemDer(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to load certs from %s: %w", filename, err)
		}
		all = append(all, certs...)
	}
	return all, nil
}

// LoadPKCS12 loads the certificates of a PKCS#12 file. Java style trust
// stores holding only certificates are read first; a key bundle yields its
// certificate followed by its CA certificates.
func LoadPKCS12(filename, password string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return LoadPKCS12Data(data, password)
}

// LoadPKCS12Data loads the certificates of PKCS#12 data.
func LoadPKCS12Data(data []byte, password string) ([]*x509.Certificate, error) {
	certs, err := pkcs12.DecodeTrustStore(data, password)
	if err == nil && len(certs) > 0 {
		return certs, nil
	}
	_, cert, cas, chainErr := pkcs12.DecodeChain(data, password)
	if chainErr != nil {
		if err == nil {
			err = chainErr
		}
		return nil, fmt.Errorf("failed to decode PKCS#12 data: %w", err)
	}
	return append([]*x509.Certificate{cert}, cas...), nil
}

// TrustStore is a file of trusted certificates.
type TrustStore struct {
	Path string `yaml:"path"`
	// Password protects PKCS#12 stores.
	Password string `yaml:"password,omitempty"`
}

// IsPKCS12 reports whether the store is read as PKCS#12, from its extension.
func (s TrustStore) IsPKCS12() bool {
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".p12", ".pfx":
		return true
	}
	return false
}

// Load reads the certificates of the store.
func (s TrustStore) Load() ([]*x509.Certificate, error) {
	if s.IsPKCS12() {
		return LoadPKCS12(s.Path, s.Password)
	}
	return LoadCertsFromPemDer(s.Path)
}

// LoadTrustAnchors reads every store and removes duplicate certificates.
func LoadTrustAnchors(stores []TrustStore) ([]*x509.Certificate, error) {
	seen := make(map[string]bool)
	var anchors []*x509.Certificate
	for _, s := range stores {
		certs, err := s.Load()
		if err != nil {
			return nil, fmt.Errorf("trust store %s: %w", s.Path, err)
		}
		for _, c := range certs {
			if seen[string(c.Raw)] {
				continue
			}
			seen[string(c.Raw)] = true
			anchors = append(anchors, c)
		}
	}
	return anchors, nil
}

// isPEM checks if the data appears to be PEM encoded.
func isPEM(data []byte) bool {
	return len(data) > 10 && string(data[:5]) == "-----"
}
