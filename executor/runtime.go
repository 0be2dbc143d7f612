// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package executor provides the long-lived task runtime that all asynchronous
// bridge work is scheduled on.  A runtime owns a fixed set of worker
// goroutines and one dispatcher goroutine that parks for the runtime's whole
// lifetime, so queued work keeps making progress whether or not any foreign
// call is in flight.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidWorkerThreads is returned by New when fewer than one worker is
// requested.
var ErrInvalidWorkerThreads = errors.New("worker thread count must be at " +
	"least one")

// Task is a unit of asynchronous work.  The context is cancelled when the
// runtime stops.
type Task func(ctx context.Context)

// Config holds the parameters of a Runtime.
type Config struct {
	// WorkerThreads is the number of tasks that may run at once.
	WorkerThreads int

	// Clock drives SpawnAfter timers.  Defaults to the wall clock.
	Clock clock.Clock
}

// Runtime is a multi-worker task executor.
type Runtime struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	enqueue chan Task
	work    chan Task

	// mu guards stopped and every call to group.Go, so that no goroutine
	// is added to the group once Stop has begun.
	mu      sync.Mutex
	stopped bool
	quit    chan struct{}
	group   errgroup.Group
}

// New creates a runtime and starts its dispatcher and workers.
func New(cfg Config) (*Runtime, error) {
	if cfg.WorkerThreads < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerThreads,
			cfg.WorkerThreads)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		enqueue: make(chan Task),
		work:    make(chan Task),
		quit:    make(chan struct{}),
	}

	r.group.Go(func() error {
		r.dispatcher()
		return nil
	})
	for i := 0; i < cfg.WorkerThreads; i++ {
		r.group.Go(func() error {
			r.worker()
			return nil
		})
	}

	log.Debugf("Runtime started with %d worker(s)", cfg.WorkerThreads)

	return r, nil
}

// WorkerThreads returns the configured worker count.
func (r *Runtime) WorkerThreads() int {
	return r.cfg.WorkerThreads
}

// Context returns the runtime context, cancelled by Stop.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// Spawn schedules task and returns without waiting for it to start.  It
// returns false if the runtime has been stopped, in which case the task will
// never run.
func (r *Runtime) Spawn(task Task) bool {
	select {
	case r.enqueue <- task:
		return true
	case <-r.quit:
		return false
	}
}

// SpawnAfter schedules task to run once, no earlier than d from now.  The
// timer is registered before SpawnAfter returns and does not occupy a worker
// while pending.  If the runtime stops first the task never runs.
func (r *Runtime) SpawnAfter(d time.Duration, task Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return false
	}

	tick := r.cfg.Clock.TickAfter(d)
	r.group.Go(func() error {
		select {
		case <-tick:
			if !r.Spawn(task) {
				log.Debugf("Timer of %v fired after shutdown", d)
			}
		case <-r.quit:
		}
		return nil
	})

	return true
}

// Stop cancels the runtime context and stops accepting work.  Queued tasks
// that have not started are still run once, with the cancelled context, so
// they can release what they hold.  Stop does not wait; use WaitForShutdown
// for that.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true

	// Cancel first so that drained tasks see a done context.
	r.cancel()
	close(r.quit)

	log.Debugf("Runtime stopping")
}

// WaitForShutdown blocks until the dispatcher, all workers and all pending
// timers have exited.  It must only be called after Stop.
func (r *Runtime) WaitForShutdown() {
	_ = r.group.Wait()
}

// dispatcher owns the unbounded task queue and hands tasks to idle workers.
// It parks until the runtime stops.
func (r *Runtime) dispatcher() {
	var (
		queue    []Task
		dispatch chan Task
		next     Task
	)
	for {
		select {
		case task := <-r.enqueue:
			if len(queue) == 0 {
				next = task
				dispatch = r.work
			}
			queue = append(queue, task)

		case dispatch <- next:
			queue[0] = nil
			queue = queue[1:]
			if len(queue) != 0 {
				next = queue[0]
			} else {
				next = nil
				dispatch = nil
			}

		case <-r.quit:
			if len(queue) > 0 {
				log.Debugf("Draining %d queued task(s) on "+
					"shutdown", len(queue))
			}
			for _, task := range queue {
				r.run(task)
			}
			return
		}
	}
}

func (r *Runtime) worker() {
	for {
		select {
		case task := <-r.work:
			r.run(task)

		case <-r.quit:
			return
		}
	}
}

// run executes a single task.  A panicking task is logged and swallowed: the
// runtime is driven from a foreign host that cannot observe Go panics.
func (r *Runtime) run(task Task) {
	defer func() {
		if p := recover(); p != nil {
			log.Criticalf("Task panicked: %v\n%s", p, debug.Stack())
		}
	}()

	task(r.ctx)
}
