// Package dispatch runs work on a fixed pool of goroutines while keeping every
// symbol on a single worker, so tasks of one symbol execute strictly in the
// order they were submitted.
package dispatch

import (
	"context"
	"hash/fnv"
	"runtime"
	"sync"
	"sync/atomic"

	apperrors "trade-reconciler/internal/errors"
)

// DefaultQueueSize is the per-worker buffer used when none is configured.
const DefaultQueueSize = 256

// Task is a unit of work for one symbol.
type Task func() error

// ErrorHandler receives the errors returned by tasks.
type ErrorHandler func(symbol string, err error)

type job struct {
	symbol string
	task   Task
}

// Dispatcher routes tasks to workers by symbol.
type Dispatcher struct {
	queues  []chan job
	onError ErrorHandler

	mu      sync.RWMutex
	wg      sync.WaitGroup
	running atomic.Bool
	stopped atomic.Bool

	submitted atomic.Uint64
	done      atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithErrorHandler sets the function called when a task fails.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(d *Dispatcher) {
		d.onError = fn
	}
}

// New creates a dispatcher with the given number of workers, each with its own
// queue. If workers is 0, it defaults to runtime.NumCPU().
func New(workers, queueSize int, opts ...Option) *Dispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	d := &Dispatcher{queues: make([]chan job, workers)}
	for i := range d.queues {
		d.queues[i] = make(chan job, queueSize)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers. A stopped dispatcher cannot be restarted.
func (d *Dispatcher) Start() {
	if d.stopped.Load() || d.running.Swap(true) {
		return
	}

	for _, q := range d.queues {
		d.wg.Add(1)
		go d.worker(q)
	}
}

func (d *Dispatcher) worker(q <-chan job) {
	defer d.wg.Done()

	for j := range q {
		if err := j.task(); err != nil {
			d.failed.Add(1)
			if d.onError != nil {
				d.onError(j.symbol, err)
			}
		}
		d.done.Add(1)
	}
}

// WorkerFor returns the index of the worker that owns symbol.
func (d *Dispatcher) WorkerFor(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(len(d.queues)))
}

// Submit queues task on the worker owning symbol, blocking while that queue
// is full. It fails with ErrDispatcherStopped when the dispatcher is not
// running, or with the context's error if ctx ends first.
func (d *Dispatcher) Submit(ctx context.Context, symbol string, task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running.Load() {
		return apperrors.ErrDispatcherStopped
	}

	select {
	case d.queues[d.WorkerFor(symbol)] <- job{symbol: symbol, task: task}:
		d.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues task without blocking. It returns ErrQueueFull when the
// owning worker's queue has no room.
func (d *Dispatcher) TrySubmit(symbol string, task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running.Load() {
		return apperrors.ErrDispatcherStopped
	}

	select {
	case d.queues[d.WorkerFor(symbol)] <- job{symbol: symbol, task: task}:
		d.submitted.Add(1)
		return nil
	default:
		return apperrors.ErrQueueFull
	}
}

// Stop rejects new tasks, lets the workers drain everything already queued
// and waits for them to exit.
func (d *Dispatcher) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.stopped.Store(true)

	// Waits for in-flight Submit calls; workers keep draining meanwhile.
	d.mu.Lock()
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Stats returns dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	queued := 0
	for _, q := range d.queues {
		queued += len(q)
	}
	return Stats{
		Workers:     len(d.queues),
		Running:     d.running.Load(),
		TasksTotal:  d.submitted.Load(),
		TasksDone:   d.done.Load(),
		TasksFailed: d.failed.Load(),
		QueueLen:    queued,
	}
}

// Stats contains dispatcher statistics.
type Stats struct {
	Workers     int
	Running     bool
	TasksTotal  uint64
	TasksDone   uint64
	TasksFailed uint64
	QueueLen    int
}
