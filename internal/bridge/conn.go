package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"mailbridge/internal/automation"
)

const (
	DefaultWarmupRetries = 5
	DefaultWarmupDelay   = 500 * time.Millisecond
)

// Conn owns the single session to the automation application. Every call runs
// on one worker goroutine pinned to its OS thread, one job at a time.
type Conn struct {
	jobs chan job
	quit chan struct{}
	done chan struct{}
	log  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

type job struct {
	op     string
	fn     func(automation.Session) error
	result chan error
}

// Connect dials the running application on a dedicated worker thread. It never
// launches the application: if none is running the dial fails and Connect
// returns a connection error.
func Connect(ctx context.Context, dial automation.Dialer, opts ...Option) (*Conn, error) {
	o := buildOptions(opts)
	c := &Conn{
		jobs: make(chan job),
		quit: make(chan struct{}),
		done: make(chan struct{}),
		log:  o.logger,
	}
	ready := make(chan error, 1)
	go c.run(ctx, dial, ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	c.log.Info("connected to automation application")
	return c, nil
}

func (c *Conn) run(ctx context.Context, dial automation.Dialer, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.done)

	session, err := dial(ctx)
	if err != nil {
		ready <- &Error{Kind: ErrConnection, Op: "connect", Err: err}
		return
	}
	ready <- nil

	for {
		select {
		case <-c.quit:
			c.closeErr = session.Close()
			return
		case j := <-c.jobs:
			j.result <- c.exec(session, j)
		}
	}
}

func (c *Conn) exec(session automation.Session, j job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: ErrOperation, Op: j.op, Err: fmt.Errorf("panic: %v", r)}
		}
		c.log.Debug("bridge call", "op", j.op, "duration", time.Since(start), "error", err)
	}()
	return translate(j.op, "", j.fn(session))
}

// Do runs fn on the worker. ctx is only consulted while the job waits for the
// worker; once started a job runs to completion.
func (c *Conn) Do(ctx context.Context, op string, fn func(automation.Session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-c.quit:
		return c.closedError(op)
	default:
	}
	j := job{op: op, fn: fn, result: make(chan error, 1)}
	select {
	case c.jobs <- j:
	case <-c.quit:
		return c.closedError(op)
	case <-ctx.Done():
		return &Error{Kind: ErrOperation, Op: op, Err: ctx.Err()}
	}
	return <-j.result
}

func (c *Conn) closedError(op string) error {
	return &Error{Kind: ErrConnection, Op: op, Err: automation.ErrDisconnected}
}

// Warmup polls the Inbox item count until the object model answers. The
// application can accept a session before its store is loaded.
func (c *Conn) Warmup(ctx context.Context, retries int, delay time.Duration) error {
	if retries <= 0 {
		retries = 1
	}
	var last error
	for attempt := 1; attempt <= retries; attempt++ {
		last = c.Do(ctx, "warmup", func(s automation.Session) error {
			inbox, err := s.DefaultFolder(automation.FolderInbox)
			if err != nil {
				return err
			}
			defer inbox.Release()
			items, err := inbox.Items()
			if err != nil {
				return err
			}
			defer items.Release()
			_, err = items.Count()
			return err
		})
		if last == nil {
			c.log.Info("automation application ready", "attempts", attempt)
			return nil
		}
		c.log.Warn("warmup attempt failed", "attempt", attempt, "retries", retries, "error", last)
		if attempt == retries {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &Error{Kind: ErrConnection, Op: "warmup", Err: ctx.Err()}
		}
	}
	return &Error{Kind: ErrConnection, Op: "warmup", Err: fmt.Errorf("gave up after %d attempts: %w", retries, last)}
}

// Close releases the session on the worker thread and stops the worker. Later
// calls fail fast with a connection error.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.done
		c.log.Info("automation session released")
	})
	return c.closeErr
}
