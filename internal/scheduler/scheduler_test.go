package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := NewScheduler(context.Background())
	err := s.Register("run", "not a cron spec", func(context.Context) {})
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	s := NewScheduler(context.Background())
	require.NoError(t, s.Register("run", "0 30 9 * * 1-5", func(context.Context) {}))
	assert.Error(t, s.Register("run", "0 0 16 * * 1-5", func(context.Context) {}))
}

func TestRunNow(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(context.Background())
	require.NoError(t, s.Register("run", "0 0 0 1 1 *", func(context.Context) { calls.Add(1) }))

	require.NoError(t, s.RunNow("run"))
	assert.Equal(t, int32(1), calls.Load())
	assert.Error(t, s.RunNow("missing"))
}

func TestScheduledJobFires(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(context.Background())
	require.NoError(t, s.Register("run", "* * * * * *", func(context.Context) { calls.Add(1) }))

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestCancelledContextSkipsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	s := NewScheduler(ctx)
	require.NoError(t, s.Register("run", "0 0 0 1 1 *", func(context.Context) { calls.Add(1) }))
	require.NoError(t, s.RunNow("run"))
	assert.Zero(t, calls.Load())
}
