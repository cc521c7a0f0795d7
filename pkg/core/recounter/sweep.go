package recounter

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// Sweep runs a full recount at every occurrence of a recurrence rule
type Sweep struct {
	rule   *rrule.RRule
	run    func(ctx context.Context) error
	logger *zap.Logger
	now    func() time.Time
}

// NewSweep parses an RFC 5545 rule such as "FREQ=DAILY;BYHOUR=3;BYMINUTE=0;BYSECOND=0"
func NewSweep(rule string, run func(ctx context.Context) error, logger *zap.Logger) (*Sweep, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reconcile rrule: %w", err)
	}
	return &Sweep{rule: r, run: run, logger: logger, now: time.Now}, nil
}

// NextRun returns the first occurrence strictly after t, or the zero time once the rule is exhausted
func (s *Sweep) NextRun(after time.Time) time.Time {
	return s.rule.After(after, false)
}

// Run blocks, sweeping at each occurrence until ctx is done or the rule has no more occurrences
func (s *Sweep) Run(ctx context.Context) {
	for {
		next := s.NextRun(s.now())
		if next.IsZero() {
			s.logger.Info("Reconcile rule has no further occurrences")
			return
		}

		s.logger.Debug("Next reconcile scheduled", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		start := time.Now()
		if err := s.run(ctx); err != nil {
			s.logger.Error("Reconcile failed", zap.Error(err))
			continue
		}
		s.logger.Info("Reconcile finished", zap.Duration("duration", time.Since(start)))
	}
}
