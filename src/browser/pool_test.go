package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mse-pipeline/src/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSession struct {
	id     string
	closed atomic.Bool
}

func (s *stubSession) ID() string                                     { return s.id }
func (s *stubSession) Navigate(context.Context, string) error         { return nil }
func (s *stubSession) Click(context.Context, string) error            { return nil }
func (s *stubSession) SetValue(context.Context, string, string) error { return nil }
func (s *stubSession) WaitVisible(context.Context, string, time.Duration) error {
	return nil
}
func (s *stubSession) WaitAny(_ context.Context, sel []string, _ time.Duration) (string, error) {
	return sel[0], nil
}
func (s *stubSession) Evaluate(context.Context, string, interface{}) error { return nil }
func (s *stubSession) OuterHTML(context.Context, string) (string, error)   { return "", nil }
func (s *stubSession) Close() error {
	s.closed.Store(true)
	return nil
}

type stubFactory struct {
	made atomic.Int32
	fail error
}

func (f *stubFactory) NewSession(context.Context) (interfaces.ISession, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	n := f.made.Add(1)
	return &stubSession{id: fmt.Sprintf("s%d", n)}, nil
}

func TestAcquireReusesReleasedSession(t *testing.T) {
	f := &stubFactory{}
	pool := NewSessionPool(f, 0, nil)
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(a)

	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.EqualValues(t, 1, f.made.Load())
}

func TestAcquireCreatesWhenEmpty(t *testing.T) {
	f := &stubFactory{}
	pool := NewSessionPool(f, 0, nil)
	ctx := context.Background()

	a, _ := pool.Acquire(ctx)
	b, _ := pool.Acquire(ctx)
	assert.NotSame(t, a, b)

	stats := pool.Stats()
	assert.Equal(t, 2, stats.InUse)
	assert.Equal(t, 2, stats.Created)
}

func TestFactoryErrorPropagatesWithoutRetry(t *testing.T) {
	boom := errors.New("chrome not found")
	f := &stubFactory{fail: boom}
	pool := NewSessionPool(f, 1, nil)

	_, err := pool.Acquire(context.Background())
	assert.ErrorIs(t, err, boom)

	// the slot was returned, so a second attempt is not blocked
	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, pool.Stats().InUse)
}

func TestDiscardClosesAndNextAcquireBuildsFresh(t *testing.T) {
	f := &stubFactory{}
	pool := NewSessionPool(f, 0, nil)
	ctx := context.Background()

	a, _ := pool.Acquire(ctx)
	pool.Discard(a)
	assert.True(t, a.(*stubSession).closed.Load())

	b, _ := pool.Acquire(ctx)
	assert.NotSame(t, a, b)
	assert.Equal(t, 1, pool.Stats().Discarded)
}

func TestMaxActiveBlocksUntilRelease(t *testing.T) {
	pool := NewSessionPool(&stubFactory{}, 1, nil)
	a, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(a)
	b, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestConcurrentAcquireRelease(t *testing.T) {
	f := &stubFactory{}
	pool := NewSessionPool(f, 4, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := pool.Acquire(context.Background())
			if err != nil {
				return
			}
			pool.Release(s)
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.LessOrEqual(t, stats.Created, 4)
	assert.Equal(t, stats.Created, stats.Idle)
}

func TestCloseShutsIdleSessions(t *testing.T) {
	pool := NewSessionPool(&stubFactory{}, 0, nil)
	a, _ := pool.Acquire(context.Background())
	b, _ := pool.Acquire(context.Background())
	pool.Release(a)

	require.NoError(t, pool.Close())
	assert.True(t, a.(*stubSession).closed.Load())

	pool.Release(b)
	assert.True(t, b.(*stubSession).closed.Load())

	_, err := pool.Acquire(context.Background())
	assert.Error(t, err)
}
