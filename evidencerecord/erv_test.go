package evidencerecord

import (
	"errors"
	"testing"
	"time"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/digest"
	"github.com/georgepadayatti/adesval/internal/pkitest"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

var (
	firstTime      = pkitest.Date(2021, 3, 1)
	secondTime     = pkitest.Date(2022, 3, 1)
	thirdTime      = pkitest.Date(2023, 3, 1)
	validationTime = pkitest.Date(2024, 6, 1)
)

// recorder is a TimestampValidator returning a fixed conclusion per
// timestamp and recording the control times it was called with.
type recorder struct {
	calls   map[string]time.Time
	verdict map[string]report.Conclusion
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string]time.Time), verdict: make(map[string]report.Conclusion)}
}

func (r *recorder) ValidateTimestamp(ts *diagnostic.Timestamp, controlTime time.Time) (*report.BBBResult, error) {
	r.calls[ts.ID] = controlTime
	c, ok := r.verdict[ts.ID]
	if !ok {
		c = report.NewConclusion(report.Passed, "")
	}
	return &report.BBBResult{TokenID: ts.ID, ValidationTime: controlTime, Conclusion: c}, nil
}

type record struct {
	pki     *pkitest.PKI
	er      *diagnostic.EvidenceRecord
	objects []diagnostic.DataObject
	ats     []*diagnostic.Timestamp
}

// newRecord builds an evidence record with two SHA-256 archive timestamps
// (a timestamp renewal) followed by a SHA-512 chain (a hash-tree renewal).
func newRecord(t *testing.T) *record {
	t.Helper()
	p := pkitest.New(t)
	root := p.Root("Test Root", pkitest.Date(2020, 1, 1), pkitest.Date(2040, 1, 1))
	tsa := p.TSA("Test TSA", root, pkitest.Date(2020, 1, 1), pkitest.Date(2030, 1, 1))
	sig := p.Signature("S-1", tsa, firstTime, []byte("signed document"))

	objects := []diagnostic.DataObject{
		{ID: sig.ID, Content: []byte("signed document")},
		{ID: "S-1-detached", Content: []byte("detached attachment")},
	}
	group := [][]byte{
		pkitest.Hash(t, digest.SHA256, objects[1].Content),
		pkitest.Hash(t, digest.SHA256, objects[0].Content),
	}
	tree1 := [][][]byte{group}
	root1, err := Root(digest.SHA256, tree1)
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	ats1 := p.Timestamp("ATS-1", tsa, diagnostic.TimestampEvidenceRecord, firstTime, digest.SHA256, root1, sig.ID)

	tree2 := [][][]byte{{pkitest.Hash(t, digest.SHA256, ats1.Raw)}}
	root2, err := Root(digest.SHA256, tree2)
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	ats2 := p.Timestamp("ATS-2", tsa, diagnostic.TimestampEvidenceRecord, secondTime, digest.SHA256, root2, sig.ID)

	tree3 := [][][]byte{
		{pkitest.Hash(t, digest.SHA512, ats2.Raw), pkitest.Hash(t, digest.SHA512, objects[0].Content)},
		{pkitest.Hash(t, digest.SHA512, []byte("sibling subtree"))},
	}
	root3, err := Root(digest.SHA512, tree3)
	if err != nil {
		t.Fatalf("Root() error = %v", err)
	}
	ats3 := p.Timestamp("ATS-3", tsa, diagnostic.TimestampEvidenceRecord, thirdTime, digest.SHA512, root3, sig.ID)

	er := &diagnostic.EvidenceRecord{
		ID:             "ER-1",
		CoveredObjects: objects,
		Chains: []diagnostic.ArchiveTimestampChain{
			{Order: 1, DigestAlgorithm: digest.SHA256, Timestamps: []diagnostic.ArchiveTimestamp{
				{TimestampID: ats1.ID, HashTree: tree1},
				{TimestampID: ats2.ID, HashTree: tree2},
			}},
			{Order: 2, DigestAlgorithm: digest.SHA512, Timestamps: []diagnostic.ArchiveTimestamp{
				{TimestampID: ats3.ID, HashTree: tree3},
			}},
		},
	}
	p.Data.EvidenceRecords = append(p.Data.EvidenceRecords, er)
	sig.EvidenceRecordIDs = append(sig.EvidenceRecordIDs, er.ID)
	return &record{pki: p, er: er, objects: objects, ats: []*diagnostic.Timestamp{ats1, ats2, ats3}}
}

func (r *record) validate(t *testing.T, ts TimestampValidator) *report.ERVResult {
	t.Helper()
	p, err := policy.Default()
	if err != nil {
		t.Fatalf("policy.Default() error = %v", err)
	}
	res, err := Validate(&Input{
		Data:       r.pki.Resolve(validationTime),
		Record:     r.er,
		Policy:     p,
		Time:       validationTime,
		Timestamps: ts,
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return res
}

func failedAt(res *report.ERVResult) report.MessageTag {
	for _, c := range res.Constraints {
		if c.Status == report.StatusNotOK {
			return c.Name
		}
	}
	return ""
}

func TestValidateRoundTrip(t *testing.T) {
	r := newRecord(t)
	rec := newRecorder()
	res := r.validate(t, rec)

	if !res.Passed() {
		t.Fatalf("got %s/%s at %s, want PASSED", res.Conclusion.Indication, res.Conclusion.SubIndication, failedAt(res))
	}
	if res.POETime == nil || !res.POETime.Equal(firstTime) {
		t.Errorf("POETime = %v, want %s", res.POETime, firstTime)
	}
	want := map[string]time.Time{"ATS-1": secondTime, "ATS-2": thirdTime, "ATS-3": validationTime}
	for id, at := range want {
		if got := rec.calls[id]; !got.Equal(at) {
			t.Errorf("%s validated at %s, want %s", id, got, at)
		}
	}
	if len(res.Timestamps) != 3 || res.Timestamps[2].Chain != 2 {
		t.Errorf("unexpected timestamp results: %+v", res.Timestamps)
	}
}

func TestValidateFlippedDataObject(t *testing.T) {
	r := newRecord(t)
	r.er.CoveredObjects[1].Content = []byte("detached attachmenT")

	res := r.validate(t, newRecorder())
	if res.Conclusion.Indication != report.Failed || res.Conclusion.SubIndication != report.HashFailure {
		t.Fatalf("got %s/%s, want FAILED/HASH_FAILURE", res.Conclusion.Indication, res.Conclusion.SubIndication)
	}
	if tag := failedAt(res); tag != report.ERV_IFATSHV {
		t.Errorf("failed at %s, want %s", tag, report.ERV_IFATSHV)
	}
}

func TestValidateBrokenRoot(t *testing.T) {
	r := newRecord(t)
	r.ats[1].MessageImprint.Value = append([]byte{}, r.ats[1].MessageImprint.Value...)
	r.ats[1].MessageImprint.Value[0] ^= 0xff

	res := r.validate(t, newRecorder())
	if tag := failedAt(res); tag != report.ERV_IHTRV {
		t.Errorf("failed at %s, want %s", tag, report.ERV_IHTRV)
	}
}

func TestValidateBrokenCrossChainLink(t *testing.T) {
	r := newRecord(t)
	// the SHA-512 chain no longer covers the last SHA-256 timestamp
	tree := r.er.Chains[1].Timestamps[0].HashTree
	tree[0][0] = pkitest.Hash(t, digest.SHA512, []byte("something else"))
	root, err := Root(digest.SHA512, tree)
	if err != nil {
		t.Fatal(err)
	}
	r.ats[2].MessageImprint.Value = root

	rec := newRecorder()
	// an invalid timestamp must not be reached
	rec.verdict["ATS-3"] = report.NewConclusion(report.Indeterminate, report.NoCertificateChainFound)
	res := r.validate(t, rec)

	if res.Conclusion.Indication != report.Failed || res.Conclusion.SubIndication != report.HashFailure {
		t.Fatalf("got %s/%s, want FAILED/HASH_FAILURE", res.Conclusion.Indication, res.Conclusion.SubIndication)
	}
	if tag := failedAt(res); tag != report.ERV_ATS_LINK {
		t.Errorf("failed at %s, want %s", tag, report.ERV_ATS_LINK)
	}
	if len(rec.calls) != 0 {
		t.Errorf("timestamps validated before the structure was checked: %v", rec.calls)
	}
}

func TestValidateTimestampOrder(t *testing.T) {
	r := newRecord(t)
	r.ats[1].ProductionTime = firstTime.Add(-time.Hour)

	res := r.validate(t, newRecorder())
	if res.Conclusion.SubIndication != report.TimestampOrderFailure {
		t.Errorf("got %s/%s, want TIMESTAMP_ORDER_FAILURE", res.Conclusion.Indication, res.Conclusion.SubIndication)
	}

	r = newRecord(t)
	r.er.Chains[1].Order = 1
	res = r.validate(t, newRecorder())
	if res.Conclusion.SubIndication != report.TimestampOrderFailure {
		t.Errorf("chains out of order: got %s, want TIMESTAMP_ORDER_FAILURE", res.Conclusion.SubIndication)
	}
}

func TestValidateImprintAlgorithmMismatch(t *testing.T) {
	r := newRecord(t)
	r.ats[2].MessageImprint.DigestAlgorithm = digest.SHA384

	res := r.validate(t, newRecorder())
	if tag := failedAt(res); tag != report.ERV_ATS_ALGO {
		t.Errorf("failed at %s, want %s", tag, report.ERV_ATS_ALGO)
	}
}

func TestValidateTimestampNotValid(t *testing.T) {
	r := newRecord(t)
	rec := newRecorder()
	rec.verdict["ATS-2"] = report.NewConclusion(report.Indeterminate, report.OutOfBoundsNoPOE)

	res := r.validate(t, rec)
	if res.Conclusion.Indication != report.Indeterminate || res.Conclusion.SubIndication != report.OutOfBoundsNoPOE {
		t.Errorf("got %s/%s, want the timestamp conclusion", res.Conclusion.Indication, res.Conclusion.SubIndication)
	}
	if res.POETime != nil {
		t.Error("no proof of existence without a valid record")
	}
}

func TestValidateInvalidInput(t *testing.T) {
	if _, err := Validate(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := Validate(&Input{Data: &diagnostic.DiagnosticData{}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRoot(t *testing.T) {
	a := []byte{0x01, 0xff}
	b := []byte{0x80, 0x00}
	single, err := Root(digest.SHA256, [][][]byte{{a}})
	if err != nil || string(single) != string(a) {
		t.Errorf("a single value must pass through, got %x, %v", single, err)
	}

	// unsigned ordering: 0x01ff sorts before 0x8000 whatever the input order
	ab, _ := Root(digest.SHA256, [][][]byte{{a, b}})
	ba, _ := Root(digest.SHA256, [][][]byte{{b, a}})
	want := pkitest.Hash(t, digest.SHA256, append(append([]byte{}, a...), b...))
	if string(ab) != string(want) || string(ba) != string(want) {
		t.Errorf("Root() = %x / %x, want %x", ab, ba, want)
	}

	// the running digest joins the next group
	two, _ := Root(digest.SHA256, [][][]byte{{a}, {b}})
	if string(two) != string(want) {
		t.Errorf("Root() over two groups = %x, want %x", two, want)
	}

	if _, err := Root(digest.SHA256, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for an empty tree, got %v", err)
	}
}
