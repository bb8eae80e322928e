package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type certifierFunc func(ctx context.Context) (int, error)

func (f certifierFunc) CertifyCompleted(ctx context.Context) (int, error) { return f(ctx) }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCertificationSweep_RunOnce(t *testing.T) {
	sweep := NewCertificationSweep(certifierFunc(func(context.Context) (int, error) { return 2, nil }), "@every 1s", discard())

	issued, err := sweep.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, issued)
}

func TestCertificationSweep_RunOnceWrapsErrors(t *testing.T) {
	storeDown := errors.New("store down")
	sweep := NewCertificationSweep(certifierFunc(func(context.Context) (int, error) { return 0, storeDown }), "@every 1s", discard())

	_, err := sweep.RunOnce(context.Background())

	assert.ErrorIs(t, err, storeDown)
}

func TestCertificationSweep_SkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	sweep := NewCertificationSweep(certifierFunc(func(context.Context) (int, error) {
		close(entered)
		<-release
		return 1, nil
	}), "@every 1s", discard())

	done := make(chan int)
	go func() {
		n, _ := sweep.RunOnce(context.Background())
		done <- n
	}()
	<-entered

	issued, err := sweep.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, issued)

	close(release)
	assert.Equal(t, 1, <-done)
}

func TestCertificationSweep_RunRejectsBadSchedule(t *testing.T) {
	sweep := NewCertificationSweep(certifierFunc(func(context.Context) (int, error) { return 0, nil }), "not a schedule", discard())

	err := sweep.Run(context.Background())

	assert.ErrorContains(t, err, "invalid certification sweep schedule")
}

func TestCertificationSweep_RunStopsWithContext(t *testing.T) {
	sweep := NewCertificationSweep(certifierFunc(func(context.Context) (int, error) { return 0, nil }), "@every 1h", discard())
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- sweep.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not stop")
	}
}
