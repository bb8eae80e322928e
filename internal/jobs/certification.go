// Package jobs runs the periodic maintenance tasks of the enrollment worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Certifier issues the certifications whose course completion event was missed.
type Certifier interface {
	CertifyCompleted(ctx context.Context) (int, error)
}

// CertificationSweep runs the certifier on a cron schedule. Runs never overlap.
type CertificationSweep struct {
	certifier Certifier
	schedule  string
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

func NewCertificationSweep(certifier Certifier, schedule string, logger *slog.Logger) *CertificationSweep {
	return &CertificationSweep{certifier: certifier, schedule: schedule, logger: logger}
}

// RunOnce performs a single sweep. It is a no-op while another sweep is still running.
func (s *CertificationSweep) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "certification sweep still running, skipping")
		return 0, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	issued, err := s.certifier.CertifyCompleted(ctx)
	if err != nil {
		return issued, fmt.Errorf("certification sweep: %w", err)
	}
	if issued > 0 {
		s.logger.InfoContext(ctx, "certification sweep issued certifications", "count", issued)
	}
	return issued, nil
}

// Run schedules the sweep and blocks until ctx is done, then waits for a running sweep to finish.
func (s *CertificationSweep) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "certification sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid certification sweep schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.logger.Info("certification sweep scheduled", "schedule", s.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
