package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunTasksIsolatesFailures(t *testing.T) {
	var ran atomic.Int32
	errs := RunTasks(context.Background(), 3, 10, func(_ context.Context, i int) error {
		ran.Add(1)
		switch i {
		case 2:
			return errors.New("boom")
		case 5:
			panic("kaboom")
		}
		return nil
	})

	assert.EqualValues(t, 10, ran.Load())
	assert.Equal(t, 2, CountErrors(errs))
	assert.EqualError(t, errs[2], "boom")
	assert.Contains(t, errs[5].Error(), "kaboom")
	assert.NoError(t, errs[9])
}

func TestRunTasksRespectsLimit(t *testing.T) {
	var active, peak atomic.Int32
	RunTasks(context.Background(), 2, 8, func(context.Context, int) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunTasksZero(t *testing.T) {
	assert.Empty(t, RunTasks(context.Background(), 4, 0, nil))
}

func TestRunTasksCancelledContextSkipsWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	errs := RunTasks(ctx, 2, 3, func(context.Context, int) error {
		ran.Add(1)
		return nil
	})
	assert.EqualValues(t, 0, ran.Load())
	assert.Equal(t, 3, CountErrors(errs))
}
