package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mailbridge/internal/automation"
	"mailbridge/internal/automation/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 25, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func newTestApp(opts ...memory.Option) *memory.App {
	base := []memory.Option{memory.WithLocation(time.UTC), memory.WithClock(clock)}
	return memory.New(append(base, opts...)...)
}

func connect(t *testing.T, app *memory.App) *Conn {
	t.Helper()
	conn, err := Connect(context.Background(), app.Dial)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newTestBridge(t *testing.T, opts ...memory.Option) (*Bridge, *memory.App) {
	t.Helper()
	app := newTestApp(opts...)
	b := New(connect(t, app), WithLocation(time.UTC), WithClock(clock))
	return b, app
}

func TestConnectFailsWhenApplicationNotRunning(t *testing.T) {
	app := newTestApp()
	app.Quit()

	_, err := Connect(context.Background(), app.Dial)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, automation.ErrNotRunning)
}

func TestWarmupRetriesUntilReady(t *testing.T) {
	app := newTestApp(memory.WithStartupDelay(2))
	conn := connect(t, app)

	require.NoError(t, conn.Warmup(context.Background(), DefaultWarmupRetries, time.Millisecond))
}

func TestWarmupGivesUp(t *testing.T) {
	app := newTestApp(memory.WithStartupDelay(10))
	conn := connect(t, app)

	err := conn.Warmup(context.Background(), 3, time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
}

func TestCallsAfterCloseFailFast(t *testing.T) {
	app := newTestApp()
	conn, err := Connect(context.Background(), app.Dial)
	require.NoError(t, err)
	assert.Equal(t, 1, app.OpenSessions())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 0, app.OpenSessions())

	called := false
	err = conn.Do(context.Background(), "count", func(automation.Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, called)
}

func TestApplicationQuitSurfacesAsConnectionError(t *testing.T) {
	b, app := newTestBridge(t)
	app.Quit()

	_, err := b.Mail.List(context.Background(), EmailQuery{})
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, automation.ErrDisconnected)
}

func TestDoSerializesConcurrentCalls(t *testing.T) {
	conn := connect(t, newTestApp())

	var active, peak, total int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := conn.Do(context.Background(), "count", func(automation.Session) error {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				atomic.AddInt32(&total, 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
	assert.Equal(t, int32(16), total)
}

func TestDoHonoursContextOnlyBeforeStart(t *testing.T) {
	conn := connect(t, newTestApp())

	release := make(chan struct{})
	started := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		finished <- conn.Do(context.Background(), "slow", func(automation.Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := conn.Do(ctx, "queued", func(automation.Session) error {
		t.Error("queued job must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrOperation)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.NoError(t, <-finished)
}

func TestPanicBecomesOperationFailure(t *testing.T) {
	conn := connect(t, newTestApp())

	err := conn.Do(context.Background(), "boom", func(automation.Session) error {
		panic("exploded")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperation)
	assert.Contains(t, err.Error(), "exploded")

	require.NoError(t, conn.Do(context.Background(), "after", func(automation.Session) error { return nil }))
}

func TestUpstreamErrorsAreTranslated(t *testing.T) {
	conn := connect(t, newTestApp())

	cases := []struct {
		upstream error
		kind     error
	}{
		{automation.ErrNoSuchItem, ErrNotFound},
		{automation.ErrNoSuchFolder, ErrNotFound},
		{automation.ErrDisconnected, ErrConnection},
		{automation.ErrNotReady, ErrConnection},
		{errors.New("rpc server unavailable"), ErrOperation},
	}
	for _, tc := range cases {
		err := conn.Do(context.Background(), "count", func(automation.Session) error { return tc.upstream })
		assert.ErrorIs(t, err, tc.kind, tc.upstream.Error())
		assert.Equal(t, tc.kind, KindOf(err))
	}
}
