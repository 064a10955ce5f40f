package report

import (
	"github.com/georgepadayatti/adesval/policy"
)

// ConstraintStatus is the outcome of a single check.
type ConstraintStatus string

const (
	StatusOK          ConstraintStatus = "OK"
	StatusNotOK       ConstraintStatus = "NOT OK"
	StatusWarning     ConstraintStatus = "WARNING"
	StatusInformation ConstraintStatus = "INFORMATION"
	StatusIgnored     ConstraintStatus = "IGNORED"
)

// Constraint records a check executed inside a block.
type Constraint struct {
	Name           MessageTag       `json:"name" xml:"Name"`
	Status         ConstraintStatus `json:"status" xml:"Status"`
	Indication     Indication       `json:"indication,omitempty" xml:"Indication,omitempty"`
	SubIndication  SubIndication    `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	AdditionalInfo string           `json:"additionalInfo,omitempty" xml:"AdditionalInfo,omitempty"`
	BlockID        string           `json:"blockId,omitempty" xml:"BlockId,attr,omitempty"`
}

// Check is one element of an ordered check chain. Indication and
// SubIndication are reported when Test fails at FAIL level.
type Check struct {
	Tag           MessageTag
	Level         policy.Level
	Indication    Indication
	SubIndication SubIndication
	// Info is attached to the constraint when set.
	Info string
	// BlockID references the nested block the check summarises.
	BlockID string
	Test    func() bool
}

// Block is the result of running a check chain.
type Block struct {
	Title       string       `json:"title" xml:"Title,attr"`
	Constraints []Constraint `json:"constraints,omitempty" xml:"Constraint,omitempty"`
	Conclusion  Conclusion   `json:"conclusion" xml:"Conclusion"`
}

// NewBlock creates an empty block.
func NewBlock(title string) *Block {
	return &Block{Title: title}
}

// Run evaluates checks in order. The first failing FAIL-level check stops
// the chain and sets the conclusion from its indication. WARN and INFORM
// level failures are accumulated. Returns true when the block passed.
func (b *Block) Run(checks ...Check) bool {
	for _, c := range checks {
		if !b.Apply(c) {
			return false
		}
	}
	if b.Conclusion.Indication == "" {
		b.Conclusion.Indication = Passed
	}
	return true
}

// Apply evaluates a single check and returns false if it failed at FAIL level.
// The conclusion is left unset while the chain continues.
func (b *Block) Apply(c Check) bool {
	if c.Level == policy.LevelIgnore || c.Level == "" {
		b.Constraints = append(b.Constraints, Constraint{Name: c.Tag, Status: StatusIgnored})
		return true
	}
	con := Constraint{Name: c.Tag, AdditionalInfo: c.Info, BlockID: c.BlockID}
	if c.Test() {
		con.Status = StatusOK
		b.Constraints = append(b.Constraints, con)
		return true
	}
	switch c.Level {
	case policy.LevelInform:
		con.Status = StatusInformation
		b.Conclusion.AddInfo(c.Tag, c.Info)
	case policy.LevelWarn:
		con.Status = StatusWarning
		b.Conclusion.AddWarning(c.Tag, c.Info)
	default:
		con.Status = StatusNotOK
		con.Indication = c.Indication
		con.SubIndication = c.SubIndication
		b.Constraints = append(b.Constraints, con)
		b.Conclusion.Indication = c.Indication
		b.Conclusion.SubIndication = c.SubIndication
		b.Conclusion.AddError(c.Tag, c.Info)
		return false
	}
	b.Constraints = append(b.Constraints, con)
	return true
}

// Fail sets a terminal conclusion without a check, for results derived
// from nested blocks.
func (b *Block) Fail(tag MessageTag, ind Indication, sub SubIndication, info string) {
	b.Constraints = append(b.Constraints, Constraint{
		Name:           tag,
		Status:         StatusNotOK,
		Indication:     ind,
		SubIndication:  sub,
		AdditionalInfo: info,
	})
	b.Conclusion.Indication = ind
	b.Conclusion.SubIndication = sub
	b.Conclusion.AddError(tag, info)
}

// Passed reports whether the block concluded PASSED.
func (b *Block) Passed() bool {
	return b != nil && b.Conclusion.IsPassed()
}
