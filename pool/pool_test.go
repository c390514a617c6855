package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) IsClosed() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) breakConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func countingDialer(dialed *atomic.Int32) DialFunc[*fakeConn] {
	return func(ctx context.Context) (*fakeConn, error) {
		dialed.Add(1)
		return &fakeConn{}, nil
	}
}

func newTestPool(t *testing.T, maxConns int) (*Pool[*fakeConn], *atomic.Int32) {
	t.Helper()
	var dialed atomic.Int32
	p, err := New(countingDialer(&dialed), maxConns)
	require.NoError(t, err)
	return p, &dialed
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	dial := func(ctx context.Context) (*fakeConn, error) { return &fakeConn{}, nil }

	_, err := New(dial, 0)
	require.Error(t, err)

	_, err = New(dial, -3)
	require.Error(t, err)

	_, err = New[*fakeConn](nil, 4)
	require.Error(t, err)
}

func TestAcquireOpensLazily(t *testing.T) {
	p, dialed := newTestPool(t, 4)

	assert.Equal(t, Stats{}, p.Stats(), "no connections before first Acquire")

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, int32(1), dialed.Load())
	assert.Equal(t, Stats{Open: 1, Idle: 0, InUse: 1}, p.Stats())
}

func TestAcquireReturnsDistinctHandles(t *testing.T) {
	p, _ := newTestPool(t, 3)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)

	assert.NotSame(t, a, b, "two live acquisitions must never share a handle")
}

func TestAcquireReusesMostRecentlyReturned(t *testing.T) {
	p, dialed := newTestPool(t, 3)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)

	p.Release(a)
	p.Release(b)

	got, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, b, got, "LIFO reuse: last returned comes back first")
	assert.Equal(t, int32(2), dialed.Load(), "reuse must not dial")
}

func TestAcquireExhaustionIsNonBlocking(t *testing.T) {
	const maxConns = 3
	p, _ := newTestPool(t, maxConns)
	ctx := context.Background()

	for i := 0; i < maxConns; i++ {
		_, err := p.Acquire(ctx)
		require.NoError(t, err)
	}

	start := time.Now()
	_, err := p.Acquire(ctx)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Less(t, time.Since(start), time.Second, "exhausted Acquire must not block")
}

// The worked example: cap of two, two checkouts, a failed third, then reuse
// of the first handle after it comes back.
func TestAcquireReleaseScenario(t *testing.T) {
	p, _ := newTestPool(t, 2)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Open: 1, InUse: 1}, p.Stats())

	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Open: 2, InUse: 2}, p.Stats())

	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, ErrExhausted)

	p.Release(a)
	assert.Equal(t, Stats{Open: 2, Idle: 1, InUse: 1}, p.Stats())

	d, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, a, d)
	assert.Equal(t, Stats{Open: 2, Idle: 0, InUse: 2}, p.Stats())

	_ = b
}

func TestAcquireDialFailureFreesSlot(t *testing.T) {
	dialErr := errors.New("refused")
	fail := true
	dial := func(ctx context.Context) (*fakeConn, error) {
		if fail {
			return nil, dialErr
		}
		return &fakeConn{}, nil
	}

	p, err := New(dial, 1)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.ErrorIs(t, err, dialErr)
	assert.Equal(t, Stats{}, p.Stats(), "failed open must roll the slot back")

	// The slot is retryable, not leaked.
	fail = false
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, Stats{Open: 1, InUse: 1}, p.Stats())
}

func TestReleaseBrokenConnectionIsDiscarded(t *testing.T) {
	p, dialed := newTestPool(t, 2)
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	require.NoError(t, err)

	c.breakConn()
	p.Release(c)

	st := p.Stats()
	assert.Equal(t, 0, st.Open, "broken release decrements live count")
	assert.Equal(t, 0, st.Idle, "broken handle must not re-enter the pool")

	// Next acquire opens a fresh connection instead of the broken one.
	got, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, c, got)
	assert.Equal(t, int32(2), dialed.Load())
}

func TestReleaseNilHandleIsDiscarded(t *testing.T) {
	p, _ := newTestPool(t, 2)

	_, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, p.Stats().Open)

	var lost *fakeConn
	p.Release(lost)

	assert.Equal(t, Stats{}, p.Stats())
}

func TestRoundTripReusesSingleConnection(t *testing.T) {
	p, dialed := newTestPool(t, 5)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		c, err := p.Acquire(ctx)
		require.NoError(t, err)
		p.Release(c)
	}

	assert.Equal(t, int32(1), dialed.Load(), "uncontended round trips reuse one connection")
	assert.Equal(t, Stats{Open: 1, Idle: 1, InUse: 0}, p.Stats())
}

func TestCloseTearsDownIdleConnections(t *testing.T) {
	p, _ := newTestPool(t, 3)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	out, err := p.Acquire(ctx)
	require.NoError(t, err)

	p.Release(a)
	p.Release(b)

	p.Close()

	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
	assert.Equal(t, 0, p.Stats().Idle)

	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, ErrClosed)

	// The checked-out handle stays usable until its owner returns it; the
	// closed pool then destroys it instead of pooling it.
	assert.False(t, out.IsClosed())
	p.Release(out)
	assert.True(t, out.IsClosed())
	assert.Equal(t, Stats{}, p.Stats())

	// Idempotent.
	p.Close()
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	p, dialed := newTestPool(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), dialed.Load())
}

func TestWithReleasesOnError(t *testing.T) {
	p, _ := newTestPool(t, 1)
	boom := errors.New("boom")

	err := p.With(context.Background(), func(c *fakeConn) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, Stats{Open: 1, Idle: 1, InUse: 0}, p.Stats())
}

func TestWithReleasesOnPanic(t *testing.T) {
	p, _ := newTestPool(t, 1)

	require.Panics(t, func() {
		_ = p.With(context.Background(), func(c *fakeConn) error {
			panic("query gone wrong")
		})
	})

	assert.Equal(t, Stats{Open: 1, Idle: 1, InUse: 0}, p.Stats())
}

func TestDoubleReleaseOfBrokenHandlePanics(t *testing.T) {
	p, _ := newTestPool(t, 1)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	c.breakConn()
	p.Release(c)
	require.Equal(t, 0, p.Stats().Open)

	// A second release has no slot to give back: the accounting underflow
	// is a caller bug and must not be absorbed silently.
	require.Panics(t, func() { p.Release(c) })
}

func TestConcurrentAcquireRelease(t *testing.T) {
	const (
		maxConns   = 5
		goroutines = 20
		iterations = 200
	)

	p, _ := newTestPool(t, maxConns)
	ctx := context.Background()

	var held sync.Map // conn -> struct{}, detects double handout

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				c, err := p.Acquire(ctx)
				if errors.Is(err, ErrExhausted) {
					continue
				}
				if err != nil {
					t.Errorf("acquire: %v", err)
					return
				}

				if _, loaded := held.LoadOrStore(c, struct{}{}); loaded {
					t.Errorf("handle %p handed to two callers", c)
					return
				}

				st := p.Stats()
				if st.Idle < 0 || st.Idle > st.Open || st.Open > maxConns {
					t.Errorf("invariant violated: %+v", st)
					return
				}

				held.Delete(c)
				p.Release(c)
			}
		}()
	}
	wg.Wait()

	st := p.Stats()
	assert.Equal(t, 0, st.InUse, "everything returned")
	assert.LessOrEqual(t, st.Open, maxConns)
	assert.Equal(t, st.Open, st.Idle)
}

func TestStatsSnapshot(t *testing.T) {
	p, _ := newTestPool(t, 4)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	_, err = p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(a)

	assert.Equal(t, Stats{Open: 2, Idle: 1, InUse: 1}, p.Stats())
	assert.Equal(t, 4, p.MaxConns())
}
