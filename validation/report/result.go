package report

import (
	"time"
)

// Conclusion is the verdict of a block or a validation process.
type Conclusion struct {
	Indication    Indication    `json:"indication" xml:"Indication"`
	SubIndication SubIndication `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	Errors        []Message     `json:"errors,omitempty" xml:"Errors>Error,omitempty"`
	Warnings      []Message     `json:"warnings,omitempty" xml:"Warnings>Warning,omitempty"`
	Infos         []Message     `json:"infos,omitempty" xml:"Infos>Info,omitempty"`
}

// Message pairs a message tag with optional free text.
type Message struct {
	Key   MessageTag `json:"key" xml:"Key"`
	Value string     `json:"value,omitempty" xml:"Value,omitempty"`
}

// NewConclusion creates a conclusion with the given indication.
func NewConclusion(ind Indication, sub SubIndication) Conclusion {
	return Conclusion{Indication: ind, SubIndication: sub}
}

// AddError adds an error to the conclusion.
func (c *Conclusion) AddError(key MessageTag, value string) {
	c.Errors = append(c.Errors, Message{Key: key, Value: value})
}

// AddWarning adds a warning to the conclusion.
func (c *Conclusion) AddWarning(key MessageTag, value string) {
	c.Warnings = append(c.Warnings, Message{Key: key, Value: value})
}

// AddInfo adds information to the conclusion.
func (c *Conclusion) AddInfo(key MessageTag, value string) {
	c.Infos = append(c.Infos, Message{Key: key, Value: value})
}

// IsPassed returns true if the indication is PASSED.
func (c Conclusion) IsPassed() bool {
	return c.Indication == Passed
}

// IsFailed returns true if the indication is FAILED.
func (c Conclusion) IsFailed() bool {
	return c.Indication == Failed
}

// IsIndeterminate returns true if the indication is INDETERMINATE.
func (c Conclusion) IsIndeterminate() bool {
	return c.Indication == Indeterminate
}

// Rescuable reports whether past validation may still turn the conclusion into PASSED.
func (c Conclusion) Rescuable() bool {
	return c.IsIndeterminate() && c.SubIndication.Rescuable()
}

// Verdict returns a copy holding only indication and sub-indication.
func (c Conclusion) Verdict() Conclusion {
	return Conclusion{Indication: c.Indication, SubIndication: c.SubIndication}
}

// SubXCVResult is the validation of one certificate of a chain.
type SubXCVResult struct {
	Block
	CertificateID string    `json:"certificateId" xml:"CertificateId,attr"`
	ControlTime   time.Time `json:"controlTime" xml:"ControlTime"`
	TrustAnchor   bool      `json:"trustAnchor,omitempty" xml:"TrustAnchor,attr,omitempty"`
	// AlgorithmExpiration is set when cryptographic constraints failed
	// because an algorithm expired before the control time.
	AlgorithmExpiration *time.Time `json:"algorithmExpiration,omitempty" xml:"AlgorithmExpiration,omitempty"`
}

// XCVResult is the result of X.509 certificate chain validation.
type XCVResult struct {
	Block
	Model        string         `json:"model" xml:"Model,attr"`
	ValidationAt time.Time      `json:"validationTime" xml:"ValidationTime"`
	Certificates []SubXCVResult `json:"certificates,omitempty" xml:"SubXCV,omitempty"`
	// FailedCertificateID identifies the certificate whose validation
	// produced a non-PASSED conclusion.
	FailedCertificateID string `json:"failedCertificateId,omitempty" xml:"FailedCertificateId,omitempty"`
}

// Failed returns the sub-result of the failing certificate, if any.
func (r *XCVResult) Failed() *SubXCVResult {
	if r == nil || r.FailedCertificateID == "" {
		return nil
	}
	for i := range r.Certificates {
		if r.Certificates[i].CertificateID == r.FailedCertificateID {
			return &r.Certificates[i]
		}
	}
	return nil
}

// BBBResult is the result of the basic building blocks for one token.
type BBBResult struct {
	TokenID              string     `json:"tokenId" xml:"TokenId,attr"`
	Context              string     `json:"context" xml:"Context,attr"`
	ValidationTime       time.Time  `json:"validationTime" xml:"ValidationTime"`
	SigningCertificateID string     `json:"signingCertificateId,omitempty" xml:"SigningCertificateId,omitempty"`
	ISC                  *Block     `json:"isc,omitempty" xml:"ISC,omitempty"`
	VCI                  *Block     `json:"vci,omitempty" xml:"VCI,omitempty"`
	XCV                  *XCVResult `json:"xcv,omitempty" xml:"XCV,omitempty"`
	CV                   *Block     `json:"cv,omitempty" xml:"CV,omitempty"`
	SAV                  *Block     `json:"sav,omitempty" xml:"SAV,omitempty"`
	Conclusion           Conclusion `json:"conclusion" xml:"Conclusion"`
}

// PCVResult is the result of past certificate validation.
type PCVResult struct {
	Block
	ControlTime time.Time    `json:"controlTime" xml:"ControlTime"`
	Iterations  []*XCVResult `json:"iterations,omitempty" xml:"Iteration,omitempty"`
}

// PSVResult is the result of past signature validation.
type PSVResult struct {
	Block
	ControlTime       *time.Time `json:"controlTime,omitempty" xml:"ControlTime,omitempty"`
	BestSignatureTime *time.Time `json:"bestSignatureTime,omitempty" xml:"BestSignatureTime,omitempty"`
	PCV               *PCVResult `json:"pcv,omitempty" xml:"PCV,omitempty"`
}

// ArchiveTimestampResult is the validation of one archive timestamp of an evidence record.
type ArchiveTimestampResult struct {
	TimestampID    string     `json:"timestampId" xml:"TimestampId,attr"`
	Chain          int        `json:"chain" xml:"Chain,attr"`
	ProductionTime time.Time  `json:"productionTime" xml:"ProductionTime"`
	ControlTime    time.Time  `json:"controlTime" xml:"ControlTime"`
	BBB            *BBBResult `json:"bbb,omitempty" xml:"BBB,omitempty"`
}

// ERVResult is the result of evidence record validation.
type ERVResult struct {
	Block
	EvidenceRecordID string                   `json:"evidenceRecordId" xml:"EvidenceRecordId,attr"`
	Timestamps       []ArchiveTimestampResult `json:"timestamps,omitempty" xml:"Timestamp,omitempty"`
	// POETime is the proven existence time of the covered objects.
	POETime *time.Time `json:"poeTime,omitempty" xml:"POETime,omitempty"`
}

// TimestampResult is the validation of a timestamp attached to a signature.
type TimestampResult struct {
	TimestampID string     `json:"timestampId" xml:"TimestampId,attr"`
	Type        string     `json:"type" xml:"Type,attr"`
	BBB         *BBBResult `json:"bbb" xml:"BBB"`
	PSV         *PSVResult `json:"psv,omitempty" xml:"PSV,omitempty"`
	Conclusion  Conclusion `json:"conclusion" xml:"Conclusion"`
}

// SignatureResult aggregates all validation levels of one signature.
type SignatureResult struct {
	SignatureID       string             `json:"signatureId" xml:"SignatureId,attr"`
	Indication        Indication         `json:"indication" xml:"Indication"`
	SubIndication     SubIndication      `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	BestSignatureTime time.Time          `json:"bestSignatureTime" xml:"BestSignatureTime"`
	Basic             *BBBResult         `json:"basic" xml:"Basic"`
	Timestamps        []*TimestampResult `json:"timestamps,omitempty" xml:"Timestamp,omitempty"`
	LongTerm          *Block             `json:"longTerm,omitempty" xml:"LongTerm,omitempty"`
	LongTermPSV       *PSVResult         `json:"longTermPsv,omitempty" xml:"LongTermPSV,omitempty"`
	EvidenceRecords   []*ERVResult       `json:"evidenceRecords,omitempty" xml:"EvidenceRecord,omitempty"`
	Archival          *Block             `json:"archival,omitempty" xml:"Archival,omitempty"`
	ArchivalPSV       *PSVResult         `json:"archivalPsv,omitempty" xml:"ArchivalPSV,omitempty"`
	CounterSignatures []*BBBResult       `json:"counterSignatures,omitempty" xml:"CounterSignature,omitempty"`
}

// Report is the outcome of validating every signature of a document.
type Report struct {
	ValidationTime time.Time          `json:"validationTime" xml:"ValidationTime"`
	Policy         string             `json:"policy" xml:"Policy"`
	Signatures     []*SignatureResult `json:"signatures" xml:"Signature"`
}

// Counts returns the number of signatures per aggregate indication.
func (r *Report) Counts() map[Indication]int {
	counts := make(map[Indication]int)
	for _, s := range r.Signatures {
		counts[s.Indication]++
	}
	return counts
}
