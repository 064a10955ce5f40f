package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/internal/pkitest"
	"github.com/georgepadayatti/adesval/validation/report"
)

// newMultiFixture builds a data set with a valid signature, a signature
// by a revoked signer and a counter-signature of the first one.
func newMultiFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	revoked := f.pki.Leaf("Revoked Signer", f.root, pkitest.Date(2022, 1, 1), pkitest.Date(2026, 1, 1))
	f.pki.Signature("S-2", revoked, signingTime, []byte("second document"))
	cs := f.pki.Signature("S-3", f.signer, signingTime.Add(time.Hour), f.sig.SignatureValue)
	cs.ParentID = f.sig.ID
	f.publishCRL(t, pkitest.Date(2024, 5, 30), pkitest.Revoked{Cert: revoked, At: revocationTime})
	return f
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, indication string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "indication" && l.GetValue() == indication {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestExecutorValidate(t *testing.T) {
	f := newMultiFixture(t)
	d := f.pki.Resolve(validationTime)
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	e := NewExecutor(defaultPolicy(t), WithWorkers(2), WithMetrics(metrics))
	rep, err := e.Validate(context.Background(), d)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(rep.Signatures) != 2 {
		t.Fatalf("expected 2 top-level signatures, got %d", len(rep.Signatures))
	}
	if rep.Signatures[0].SignatureID != "S-1" || rep.Signatures[1].SignatureID != "S-2" {
		t.Errorf("signatures out of order: %s, %s", rep.Signatures[0].SignatureID, rep.Signatures[1].SignatureID)
	}
	assertTotal(t, rep.Signatures[0], report.TotalPassed, "")
	assertTotal(t, rep.Signatures[1], report.Indeterminate, report.RevokedNoPOE)
	if len(rep.Signatures[0].CounterSignatures) != 1 {
		t.Errorf("expected the counter-signature under S-1, got %d", len(rep.Signatures[0].CounterSignatures))
	}
	if !rep.ValidationTime.Equal(validationTime) {
		t.Errorf("ValidationTime = %v, want %v", rep.ValidationTime, validationTime)
	}

	counts := rep.Counts()
	if counts[report.TotalPassed] != 1 || counts[report.Indeterminate] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
	const name = "adesval_validation_signatures_total"
	if got := counterValue(t, reg, name, string(report.TotalPassed)); got != 1 {
		t.Errorf("%s{indication=TOTAL_PASSED} = %v, want 1", name, got)
	}
	if got := counterValue(t, reg, name, string(report.Indeterminate)); got != 1 {
		t.Errorf("%s{indication=INDETERMINATE} = %v, want 1", name, got)
	}
}

func TestExecutorDeterministic(t *testing.T) {
	f := newMultiFixture(t)
	d := f.pki.Resolve(validationTime)
	p := defaultPolicy(t)

	sequential, err := NewExecutor(p, WithWorkers(1)).Validate(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := NewExecutor(p, WithWorkers(8)).Validate(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(sequential, parallel); diff != "" {
		t.Errorf("reports differ (-sequential +parallel):\n%s", diff)
	}
}

func TestExecutorValidationTime(t *testing.T) {
	now := pkitest.Date(2025, 2, 1)
	fixed := pkitest.Date(2024, 1, 1)
	recorded := pkitest.Date(2024, 6, 1)
	clock := clockwork.NewFakeClockAt(now)

	e := NewExecutor(defaultPolicy(t), WithClock(clock))
	if got := e.ValidationTime(&diagnostic.DiagnosticData{}); !got.Equal(now) {
		t.Errorf("without a recorded time got %v, want the clock %v", got, now)
	}
	if got := e.ValidationTime(&diagnostic.DiagnosticData{ValidationTime: &recorded}); !got.Equal(recorded) {
		t.Errorf("got %v, want the recorded %v", got, recorded)
	}
	e = NewExecutor(defaultPolicy(t), WithClock(clock), WithValidationTime(fixed))
	if got := e.ValidationTime(&diagnostic.DiagnosticData{ValidationTime: &recorded}); !got.Equal(fixed) {
		t.Errorf("got %v, want the fixed %v", got, fixed)
	}
}

func TestExecutorErrors(t *testing.T) {
	f := newFixture(t)
	e := NewExecutor(defaultPolicy(t))
	if _, err := e.Validate(context.Background(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.Validate(context.Background(), f.pki.Data); !errors.Is(err, diagnostic.ErrNotResolved) {
		t.Errorf("expected ErrNotResolved, got %v", err)
	}
	if _, err := NewExecutor(nil).Validate(context.Background(), f.pki.Resolve(validationTime)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without policy, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Validate(ctx, f.pki.Data); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Error("expected an error registering the metrics twice")
	}
	m, err := NewMetrics(nil)
	if err != nil || m == nil {
		t.Errorf("NewMetrics(nil) = %v, %v", m, err)
	}
	var none *Metrics
	none.observe("TOTAL_PASSED", 1)
}
