package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(testLogger())

	var runs atomic.Int32
	s.Add("tick", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.Greater(t, runs.Load(), int32(2))

	final := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, final, runs.Load(), "no runs after Stop")
}

func TestSchedulerSurvivesJobErrors(t *testing.T) {
	s := NewScheduler(testLogger())

	var runs atomic.Int32
	s.Add("flaky", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("transient failure")
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	// Failures are logged and the next tick still fires.
	assert.Greater(t, runs.Load(), int32(1))
}
