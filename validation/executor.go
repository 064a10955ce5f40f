package validation

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/georgepadayatti/adesval/diagnostic"
	"github.com/georgepadayatti/adesval/policy"
	"github.com/georgepadayatti/adesval/validation/report"
)

// Executor validates every signature of a diagnostic data set. Signatures
// are validated concurrently; each one works on its own copy of the shared
// proofs of existence.
type Executor struct {
	policy  *policy.Policy
	workers int
	clock   clockwork.Clock
	logger  logrus.FieldLogger
	metrics *Metrics
	// fixed validation time, overriding the data set and the clock
	at *time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithWorkers bounds the number of signatures validated at once.
func WithWorkers(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithClock sets the clock giving the default validation time.
func WithClock(c clockwork.Clock) ExecutorOption {
	return func(e *Executor) {
		e.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics sets the metrics updated after each signature.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithValidationTime fixes the validation time.
func WithValidationTime(t time.Time) ExecutorOption {
	return func(e *Executor) {
		e.at = &t
	}
}

// NewExecutor creates an executor for a policy.
func NewExecutor(p *policy.Policy, opts ...ExecutorOption) *Executor {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	e := &Executor{
		policy:  p,
		workers: runtime.GOMAXPROCS(0),
		clock:   clockwork.NewRealClock(),
		logger:  discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidationTime returns the time a data set is validated at: the fixed
// time, the time recorded in the data set, or the current time.
func (e *Executor) ValidationTime(d *diagnostic.DiagnosticData) time.Time {
	switch {
	case e.at != nil:
		return *e.at
	case d != nil && d.ValidationTime != nil:
		return *d.ValidationTime
	}
	return e.clock.Now()
}

// Validate validates every signature of the data set that is not a
// counter-signature. The data set must be resolved and is not modified.
func (e *Executor) Validate(ctx context.Context, d *diagnostic.DiagnosticData) (*report.Report, error) {
	if e.policy == nil || d == nil {
		return nil, ErrInvalidInput
	}
	if !d.Resolved() {
		return nil, diagnostic.ErrNotResolved
	}
	vt := e.ValidationTime(d)
	v := &SignatureValidator{
		Data:   d,
		Policy: e.policy,
		Time:   vt,
		POE:    BaseStore(d, vt),
	}

	var sigs []*diagnostic.Signature
	for _, s := range d.Signatures {
		if !s.IsCounterSignature() {
			sigs = append(sigs, s)
		}
	}
	log := e.logger.WithFields(logrus.Fields{
		"policy":         e.policy.Name(),
		"validationTime": vt.Format(time.RFC3339),
	})
	log.WithField("signatures", len(sigs)).Debug("validating signatures")

	results := make([]*report.SignatureResult, len(sigs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, sig := range sigs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := e.clock.Now()
			res, err := v.ValidateSignature(sig)
			if err != nil {
				log.WithError(err).WithField("token", sig.ID).Error("signature validation failed")
				return err
			}
			results[i] = res
			e.metrics.observe(string(res.Indication), e.clock.Since(start).Seconds())
			logResult(log, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validation aborted: %w", err)
	}
	return &report.Report{
		ValidationTime: vt,
		Policy:         e.policy.Name(),
		Signatures:     results,
	}, nil
}

func logResult(log logrus.FieldLogger, res *report.SignatureResult) {
	tokens := []*report.BBBResult{res.Basic}
	tokens = append(tokens, res.CounterSignatures...)
	for _, ts := range res.Timestamps {
		tokens = append(tokens, ts.BBB)
	}
	for _, t := range tokens {
		if t == nil {
			continue
		}
		log.WithFields(logrus.Fields{
			"token":         t.TokenID,
			"context":       t.Context,
			"indication":    t.Conclusion.Indication,
			"subIndication": t.Conclusion.SubIndication,
		}).Debug("basic building blocks")
	}
	log.WithFields(logrus.Fields{
		"token":             res.SignatureID,
		"indication":        res.Indication,
		"subIndication":     res.SubIndication,
		"bestSignatureTime": res.BestSignatureTime.Format(time.RFC3339),
	}).Info("signature validated")
}
