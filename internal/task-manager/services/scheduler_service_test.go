package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingScanner struct {
	calls atomic.Int32
	err   error
}

func (c *countingScanner) Scan(context.Context) (int, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestSchedulerService_RunsScanOnStartAndOnDemand(t *testing.T) {
	scanner := &countingScanner{}
	svc, err := NewSchedulerService(context.Background(), scanner, time.Hour, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, svc.RunNow(), "RunNow before Start")

	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.Eventually(t, func() bool { return scanner.calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.RunNow())
	assert.Eventually(t, func() bool { return scanner.calls.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerService_ScanErrorsAreSwallowed(t *testing.T) {
	scanner := &countingScanner{err: errors.New("db gone")}
	svc, err := NewSchedulerService(context.Background(), scanner, time.Hour, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.Eventually(t, func() bool { return scanner.calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestNewSchedulerService_RejectsNonPositiveInterval(t *testing.T) {
	_, err := NewSchedulerService(context.Background(), &countingScanner{}, 0, zap.NewNop())
	assert.Error(t, err)
}
