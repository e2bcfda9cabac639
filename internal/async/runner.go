package async

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/metrics"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Runner owns the inbound and outbound queues and the worker's active set.
	//
	// Completed tasks and events share one outbound FIFO, so the game thread
	// observes them in the order the worker produced them.
	Runner struct {
		logger   *logrus.Entry
		interval time.Duration
		metrics  *metrics.Metrics
		tracer   trace.Tracer

		inMu sync.Mutex
		in   []*entry

		// active is only touched by the worker.
		active      []*entry
		activeCount atomic.Int32

		outMu sync.Mutex
		out   []*entry

		wake chan struct{}
	}

	// Option configures a Runner.
	Option func(*Runner)

	entry struct {
		item     Item
		task     Task
		enqueued time.Time
		span     trace.Span
	}
)

// DefaultInterval is the worker cadence while tasks are active.
const DefaultInterval = 10 * time.Millisecond

const tracerName = "github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/async"

// WithMetrics records queue metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer sets the tracer used for task spans. Defaults to the global
// tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// WithInterval sets the worker cadence.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRunner returns an idle runner.
func NewRunner(logger *logrus.Entry, opts ...Option) *Runner {
	r := &Runner{
		logger:   logger,
		interval: DefaultInterval,
		wake:     make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}

	return r
}

// Enqueue hands t to the worker. It is safe to call from any goroutine.
func (r *Runner) Enqueue(t Task) {
	_, span := r.tracer.Start(context.Background(), "async.task",
		trace.WithAttributes(attribute.String("task", t.String())),
	)

	r.inMu.Lock()
	r.in = append(r.in, &entry{item: t, task: t, enqueued: time.Now(), span: span})
	r.inMu.Unlock()

	r.metrics.TaskEnqueued(t.String())
	r.logger.WithField("task", t.String()).Debug("async task enqueued")

	r.signal()
}

// AddEvent queues a passive event for the game thread. It is safe to call
// from any goroutine.
func (r *Runner) AddEvent(e Event) {
	r.outMu.Lock()
	r.out = append(r.out, &entry{item: e, enqueued: time.Now()})
	r.outMu.Unlock()
}

func (r *Runner) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run is the worker loop. It ticks active tasks every interval and sleeps
// until the next Enqueue when there are none. It returns when ctx is done;
// tasks still active at that point are abandoned.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	last := time.Now()

	for {
		if r.idle() {
			select {
			case <-ctx.Done():
				return nil
			case <-r.wake:
			}

			// Idle time does not count towards task timeouts.
			last = time.Now()
		} else {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			case <-r.wake:
			}
		}

		now := time.Now()
		r.Step(now.Sub(last))
		last = now
	}
}

func (r *Runner) idle() bool {
	if len(r.active) > 0 {
		return false
	}

	r.inMu.Lock()
	defer r.inMu.Unlock()

	return len(r.in) == 0
}

// Step runs one worker iteration: newly enqueued tasks join the active set,
// every incomplete task is ticked, and completed tasks move to the outbound
// queue in completion order. Run calls Step; tests may drive it directly
// instead of starting the worker.
func (r *Runner) Step(elapsed time.Duration) {
	r.inMu.Lock()
	r.active = append(r.active, r.in...)
	r.in = nil
	r.inMu.Unlock()

	remaining := r.active[:0]
	var done []*entry

	for _, e := range r.active {
		if !e.task.IsComplete() {
			e.task.Tick(elapsed)
		}

		if e.task.IsComplete() {
			done = append(done, e)
			continue
		}

		remaining = append(remaining, e)
	}

	for i := len(remaining); i < len(r.active); i++ {
		r.active[i] = nil
	}

	r.active = remaining
	r.activeCount.Store(int32(len(r.active)))
	r.metrics.SetActiveTasks(len(r.active))

	if len(done) == 0 {
		return
	}

	r.outMu.Lock()
	r.out = append(r.out, done...)
	r.outMu.Unlock()
}

// GameTick drains the outbound queue on the game thread, finalizing each item
// and then firing its delegates. Items queued while draining wait for the
// next call.
func (r *Runner) GameTick() {
	r.outMu.Lock()
	out := r.out
	r.out = nil
	r.outMu.Unlock()

	for _, e := range out {
		e.item.Finalize()
		e.item.TriggerDelegates()

		if e.task == nil {
			r.metrics.EventDelivered(e.item.String())
			continue
		}

		ok := e.task.WasSuccessful()
		d := time.Since(e.enqueued)

		r.metrics.TaskCompleted(e.task.String(), ok, d)
		r.logger.
			WithFields(logrus.Fields{
				"task":     e.task.String(),
				"success":  ok,
				"duration": d.String(),
			}).
			Debug("async task finalized")

		e.span.SetAttributes(attribute.Bool("success", ok))
		if !ok {
			e.span.SetStatus(codes.Error, "task failed")
		}
		e.span.End()
	}
}

// Pending returns the number of tasks and events not yet finalized.
func (r *Runner) Pending() int {
	r.inMu.Lock()
	n := len(r.in)
	r.inMu.Unlock()

	r.outMu.Lock()
	n += len(r.out)
	r.outMu.Unlock()

	return n + int(r.activeCount.Load())
}
