package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestRegisterJob(t *testing.T) {
	s := NewService(arbor.NewLogger())

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.RegisterJob("purge", "@every 10m", "Purge expired cache", noop))
	assert.Error(t, s.RegisterJob("purge", "@every 10m", "dup", noop), "duplicate names are rejected")
	assert.Error(t, s.RegisterJob("bad", "every ten minutes", "", noop), "invalid schedule is rejected")

	status, err := s.GetJobStatus("purge")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, "@every 10m", status.Schedule)

	_, err = s.GetJobStatus("missing")
	assert.Error(t, err)
}

func TestTriggerJob_RecordsOutcome(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	var calls atomic.Int32
	require.NoError(t, s.RegisterJob("ok", "@every 1h", "", func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, s.RegisterJob("fails", "@every 1h", "", func(context.Context) error {
		return errors.New("upstream down")
	}))
	require.NoError(t, s.RegisterJob("panics", "@every 1h", "", func(context.Context) error {
		panic("boom")
	}))

	require.NoError(t, s.TriggerJob("ok"))
	require.NoError(t, s.TriggerJob("fails"))
	require.NoError(t, s.TriggerJob("panics"))
	assert.Error(t, s.TriggerJob("missing"))

	waitFor(t, func() bool {
		all := s.GetAllJobStatuses()
		return all["ok"].Runs == 1 && all["fails"].Runs == 1 && all["panics"].Runs == 1
	})

	all := s.GetAllJobStatuses()
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, all["ok"].LastError)
	assert.NotNil(t, all["ok"].LastRun)
	assert.NotNil(t, all["ok"].NextRun)
	assert.Equal(t, "upstream down", all["fails"].LastError)
	assert.Contains(t, all["panics"].LastError, "panic: boom")
}

func TestExecuteJob_SkipsOverlappingRun(t *testing.T) {
	s := NewService(arbor.NewLogger())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, s.RegisterJob("slow", "@every 1h", "", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))

	go s.executeJob("slow")
	<-started
	s.executeJob("slow")

	status, _ := s.GetJobStatus("slow")
	assert.True(t, status.IsRunning)
	assert.Equal(t, int64(1), status.Skipped)

	close(release)
	waitFor(t, func() bool {
		st, _ := s.GetJobStatus("slow")
		return !st.IsRunning
	})
}

func TestEnableDisable(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("warm", "@every 30s", "", func(context.Context) error { return nil }))

	require.NoError(t, s.DisableJob("warm"))
	status, _ := s.GetJobStatus("warm")
	assert.False(t, status.Enabled)
	assert.Nil(t, status.NextRun)

	require.NoError(t, s.EnableJob("warm"))
	require.NoError(t, s.EnableJob("warm"))
	status, _ = s.GetJobStatus("warm")
	assert.True(t, status.Enabled)

	assert.Error(t, s.EnableJob("missing"))
	assert.Error(t, s.DisableJob("missing"))
}

func TestStopCancelsRunningJobs(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	started := make(chan struct{})
	require.NoError(t, s.RegisterJob("blocking", "@every 1h", "", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, s.TriggerJob("blocking"))
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after cancelling jobs")
	}
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop())
}
