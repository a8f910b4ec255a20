package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-subscriptions/store"
)

func TestRunOnStartAndTicks(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler([]Job{{
		Name:       "sweep",
		Interval:   20 * time.Millisecond,
		RunOnStart: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}}, Config{})

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestFailingJobKeepsRunning(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler([]Job{{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			if runs.Add(1) == 1 {
				panic("first run")
			}
			return errors.New("still broken")
		},
	}}, Config{})

	s.Start()
	defer s.Stop()
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestJobLockAllowsOneInstance(t *testing.T) {
	locks := store.NewMemoryStore(time.Hour)
	var runs atomic.Int32
	job := Job{
		Name:       "renewal",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}

	a := NewScheduler([]Job{job}, Config{Locks: locks})
	b := NewScheduler([]Job{job}, Config{Locks: locks})
	a.Start()
	b.Start()
	defer a.Stop()
	defer b.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestDisabledJobIsSkipped(t *testing.T) {
	s := NewScheduler([]Job{{Name: "off", Interval: 0}}, Config{})
	s.Start()
	s.Stop()
}
