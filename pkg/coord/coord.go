// Package coord owns the work queue and the bounded analyzer pool, starts
// one producer per enumeration driver, and handles completion marking and
// shutdown.
package coord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/huntlab/filehound/pkg/analyzer"
	"github.com/huntlab/filehound/pkg/enum"
	"github.com/huntlab/filehound/pkg/store"
	"github.com/huntlab/filehound/pkg/types"
)

// ErrAllDriversFailed is returned when no driver produced a clean or even
// partial enumeration.
var ErrAllDriversFailed = errors.New("all drivers failed to start")

// DefaultDrainTimeout bounds how long in-flight analyses may run after a
// cancellation before the run is forced down.
const DefaultDrainTimeout = 30 * time.Second

// Coordinator wires drivers to the analyzer pool through a bounded queue.
type Coordinator struct {
	analyzer     *analyzer.Analyzer
	store        store.Store
	workspaceID  int64
	workers      int
	queueDepth   int
	drainTimeout time.Duration
	log          *slog.Logger
}

// Option adjusts coordinator defaults.
type Option func(*Coordinator)

// WithWorkers sets the analyzer pool size. Default is the CPU count.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueDepth sets the work-queue capacity. Default is four times the
// pool size, which backpressures fast drivers.
func WithQueueDepth(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queueDepth = n
		}
	}
}

// WithDrainTimeout sets the shutdown drain deadline.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// New builds a coordinator around an analyzer and the shared store.
func New(a *analyzer.Analyzer, st store.Store, workspaceID int64, log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		analyzer:     a,
		store:        st,
		workspaceID:  workspaceID,
		workers:      runtime.NumCPU(),
		drainTimeout: DefaultDrainTimeout,
		log:          log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.queueDepth == 0 {
		c.queueDepth = 4 * c.workers
	}
	return c
}

// Run enumerates every driver's host through the analyzer pool. It
// returns once all drivers are exhausted and the queue has drained, a
// fatal error occurred, or the context was cancelled and in-flight work
// drained or hit the deadline.
func (c *Coordinator) Run(ctx context.Context, drivers []enum.Driver) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan types.FileRef, c.queueDepth)

	// pending counts enqueued-but-unfinished references, archive members
	// included: a worker adds members before finishing their container,
	// so the counter cannot reach zero while any analysis can still
	// produce work.
	var pending sync.WaitGroup

	c.analyzer.SetSubmit(func(ref types.FileRef) bool {
		pending.Add(1)
		select {
		case queue <- ref:
			return true
		default:
			pending.Done()
			return false
		}
	})

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	fatal := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			c.log.Error("fatal error, aborting run", slog.Any("error", err))
			cancel()
		})
	}

	// Analyzer pool. Workers survive fatal errors so the queue always
	// drains; cancelled analyses return immediately.
	var workersWG sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		workersWG.Add(1)
		go func() {
			defer workersWG.Done()
			for ref := range queue {
				if err := c.analyzeOne(runCtx, ref); err != nil {
					fatal(err)
				}
				pending.Done()
			}
		}()
	}

	// One producer per host.
	var (
		prodWG  sync.WaitGroup
		mu      sync.Mutex
		failed  int
		skipped int
	)
	for _, drv := range drivers {
		host := drv.Host()

		done, err := c.store.HostCompleted(ctx, c.workspaceID, host)
		if err != nil {
			fatal(err)
			break
		}
		if done {
			c.log.Info("host already completed, skipping", slog.String("host", host.String()))
			mu.Lock()
			skipped++
			mu.Unlock()
			continue
		}

		hostID, err := c.store.AddHost(ctx, c.workspaceID, host)
		if err != nil {
			fatal(err)
			break
		}
		c.analyzer.RegisterHost(host, hostID)

		prodWG.Add(1)
		go func(drv enum.Driver, host types.Host) {
			defer prodWG.Done()
			emitted := false
			err := drv.Enumerate(runCtx, func(ref types.FileRef) error {
				emitted = true
				pending.Add(1)
				select {
				case queue <- ref:
					return nil
				case <-runCtx.Done():
					pending.Done()
					return runCtx.Err()
				}
			})
			switch {
			case err == nil:
				if merr := c.store.MarkHostComplete(ctx, c.workspaceID, host); merr != nil {
					c.log.Warn("marking host complete failed", slog.String("host", host.String()), slog.Any("error", merr))
				} else {
					c.log.Info("host completed", slog.String("host", host.String()))
				}
			case errors.Is(err, context.Canceled):
				c.log.Info("driver cancelled", slog.String("host", host.String()))
			default:
				// Protocol-level refusal or unrecoverable listing error:
				// fatal for this driver only; the host stays incomplete.
				// Only a driver that emitted nothing counts as failed to
				// start.
				c.log.Error("driver failed", slog.String("host", host.String()), slog.Any("error", err))
				if !emitted {
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}(drv, host)
	}

	// Close the queue once every producer is done and all scheduled work,
	// archive re-entries included, has finished.
	go func() {
		prodWG.Wait()
		pending.Wait()
		close(queue)
	}()

	workersDone := make(chan struct{})
	go func() {
		workersWG.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-ctx.Done():
		select {
		case <-workersDone:
		case <-time.After(c.drainTimeout):
			c.log.Warn("drain deadline exceeded, forcing shutdown")
		}
	}

	// Sessions were kept open for late fetches; tear them down now that
	// nothing can fetch anymore.
	for _, drv := range drivers {
		if closer, ok := drv.(io.Closer); ok {
			closer.Close()
		}
	}

	if fatalErr != nil {
		return fatalErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(drivers) > 0 && failed == len(drivers)-skipped && failed > 0 {
		return ErrAllDriversFailed
	}
	return nil
}

// analyzeOne runs one analysis, abandoning it quickly when the run is
// being torn down.
func (c *Coordinator) analyzeOne(ctx context.Context, ref types.FileRef) error {
	if ctx.Err() != nil {
		return nil
	}
	return c.analyzer.Analyze(ctx, ref)
}
