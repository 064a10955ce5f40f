// Package report holds the verdict vocabulary of ETSI EN 319 102-1 and the
// result trees produced by the validation processes.
package report

// Indication is the main status of a validation process.
type Indication string

// Indication values per ETSI EN 319 102-1.
const (
	Passed        Indication = "PASSED"
	Failed        Indication = "FAILED"
	Indeterminate Indication = "INDETERMINATE"

	// Aggregate values for a signature across all validation levels.
	TotalPassed Indication = "TOTAL_PASSED"
	TotalFailed Indication = "TOTAL_FAILED"
)

// SubIndication narrows the reason of a FAILED or INDETERMINATE indication.
type SubIndication string

// Sub-indication values per ETSI EN 319 102-1
const (
	// FAILED sub-indications
	FormatFailure               SubIndication = "FORMAT_FAILURE"
	HashFailure                 SubIndication = "HASH_FAILURE"
	SigCryptoFailure            SubIndication = "SIG_CRYPTO_FAILURE"
	Revoked                     SubIndication = "REVOKED"
	SigConstraintsFailure       SubIndication = "SIG_CONSTRAINTS_FAILURE"
	ChainConstraintsFailure     SubIndication = "CHAIN_CONSTRAINTS_FAILURE"
	CertificateChainGeneralFail SubIndication = "CERTIFICATE_CHAIN_GENERAL_FAILURE"
	CryptoConstraintsFailure    SubIndication = "CRYPTO_CONSTRAINTS_FAILURE"
	Expired                     SubIndication = "EXPIRED"
	NotYetValid                 SubIndication = "NOT_YET_VALID"

	// INDETERMINATE sub-indications
	PolicyProcessingError         SubIndication = "POLICY_PROCESSING_ERROR"
	SignaturePolicyNotAvailable   SubIndication = "SIGNATURE_POLICY_NOT_AVAILABLE"
	TimestampOrderFailure         SubIndication = "TIMESTAMP_ORDER_FAILURE"
	NoSigningCertificateFound     SubIndication = "NO_SIGNING_CERTIFICATE_FOUND"
	NoCertificateChainFound       SubIndication = "NO_CERTIFICATE_CHAIN_FOUND"
	RevokedNoPOE                  SubIndication = "REVOKED_NO_POE"
	RevokedCANoPOE                SubIndication = "REVOKED_CA_NO_POE"
	OutOfBoundsNoPOE              SubIndication = "OUT_OF_BOUNDS_NO_POE"
	OutOfBoundsNotRevoked         SubIndication = "OUT_OF_BOUNDS_NOT_REVOKED"
	CryptoConstraintsFailureNoPOE SubIndication = "CRYPTO_CONSTRAINTS_FAILURE_NO_POE"
	NoPOE                         SubIndication = "NO_POE"
	TryLater                      SubIndication = "TRY_LATER"
	SignedDataNotFound            SubIndication = "SIGNED_DATA_NOT_FOUND"
	Generic                       SubIndication = "GENERIC"
)

// Rescuable reports whether past validation may turn an INDETERMINATE
// result with this sub-indication into PASSED using proofs of existence.
func (s SubIndication) Rescuable() bool {
	switch s {
	case RevokedNoPOE, RevokedCANoPOE,
		OutOfBoundsNoPOE, OutOfBoundsNotRevoked,
		CryptoConstraintsFailureNoPOE, TryLater:
		return true
	}
	return false
}

// Terminal reports whether the indication can no longer change.
func (i Indication) Terminal() bool {
	return i == Passed || i == Failed
}

// Total maps a signature level conclusion onto the aggregate vocabulary.
func Total(c Conclusion) Indication {
	switch c.Indication {
	case Passed:
		return TotalPassed
	case Failed:
		return TotalFailed
	default:
		return Indeterminate
	}
}
