// Package refresh drives the Idle -> Fetching -> Idle cycle: on a refresh
// signal it invalidates the target, fetches processes and sockets together
// and hands the joined result back.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/iamgilwell/proctopo/internal/metrics"
	"github.com/iamgilwell/proctopo/internal/notify"
	"github.com/iamgilwell/proctopo/internal/query"
)

var tracer = otel.Tracer("proctopo.refresh")

// State is the controller's fetch state.
type State int32

const (
	Idle State = iota
	Fetching
)

func (s State) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// Target receives the refresh lifecycle. BeginRefresh runs before the fetch
// starts; exactly one of ApplyRefresh, FailRefresh or DiscardRefresh follows.
type Target interface {
	BeginRefresh(gen uint64)
	ApplyRefresh(gen uint64, res query.Result) error
	FailRefresh(gen uint64, err error)
	DiscardRefresh(gen uint64)
}

// Outcome reports how one refresh ended.
type Outcome struct {
	Generation uint64
	Err        error
	// Coalesced is set for callers that joined a fetch already in flight.
	Coalesced bool
	Discarded bool
}

// Options tunes a Controller.
type Options struct {
	// Timeout bounds one fetch pair; zero means no bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Controller coalesces refresh requests so at most one fetch pair is in
// flight at a time.
type Controller struct {
	svc     query.Service
	target  Target
	timeout time.Duration
	log     *slog.Logger

	group  singleflight.Group
	state  atomic.Int32
	issued atomic.Uint64

	mu            sync.Mutex
	lastCompleted uint64
}

// New creates a controller that fetches from svc and reports to target.
func New(svc query.Service, target Target, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{svc: svc, target: target, timeout: opts.Timeout, log: log}
}

// State returns the current fetch state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Refresh starts a fetch, or joins the one in flight, and returns a channel
// that yields the outcome once. It never blocks. The fetch is detached from
// ctx cancellation; only the configured timeout bounds it.
func (c *Controller) Refresh(ctx context.Context) <-chan Outcome {
	base := context.WithoutCancel(ctx)

	// started is set only when this call's function is the one singleflight
	// runs; every other caller of the same flight joined it.
	var started bool
	results := c.group.DoChan("refresh", func() (any, error) {
		started = true
		return c.run(base), nil
	})

	out := make(chan Outcome, 1)
	go func() {
		r := <-results
		o := r.Val.(Outcome)
		if !started {
			o.Coalesced = true
			metrics.RefreshCoalesced.Inc()
			c.log.Debug("refresh coalesced into in-flight fetch", "generation", o.Generation)
		}
		out <- o
	}()
	return out
}

// Run subscribes to bus once and starts a refresh for every refresh
// notification until ctx is done. The subscription is released on return.
func (c *Controller) Run(ctx context.Context, bus *notify.Bus) error {
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			if n.Cmd != notify.CmdRefresh {
				c.log.Warn("ignoring unknown notification", "cmd", n.Cmd, "source", n.Source)
				continue
			}
			c.Refresh(ctx)
		}
	}
}

func (c *Controller) run(ctx context.Context) Outcome {
	gen := c.issued.Add(1)
	c.state.Store(int32(Fetching))
	defer c.state.Store(int32(Idle))

	c.target.BeginRefresh(gen)
	c.log.Debug("refresh started", "generation", gen)

	res, err := c.fetch(ctx, gen)
	return c.complete(ctx, gen, res, err)
}

func (c *Controller) fetch(ctx context.Context, gen uint64) (query.Result, error) {
	ctx, span := tracer.Start(ctx, "refresh.fetch",
		trace.WithAttributes(attribute.Int64("refresh.generation", int64(gen))))
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := query.Fetch(ctx, c.svc)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return query.Result{}, err
	}
	span.SetAttributes(
		attribute.Int("refresh.processes", len(res.Processes)),
		attribute.Int("refresh.sockets", len(res.Sockets)),
	)
	return res, nil
}

// complete hands a finished fetch to the target unless a newer generation
// has already completed.
func (c *Controller) complete(ctx context.Context, gen uint64, res query.Result, err error) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen <= c.lastCompleted {
		metrics.RefreshTotal.WithLabelValues(metrics.OutcomeDiscarded).Inc()
		c.log.Info("discarding superseded refresh", "generation", gen, "latest", c.lastCompleted)
		c.target.DiscardRefresh(gen)
		return Outcome{Generation: gen, Discarded: true}
	}
	c.lastCompleted = gen

	if err != nil {
		metrics.RefreshTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		c.log.Error("refresh failed", "generation", gen, "error", err)
		c.target.FailRefresh(gen, err)
		return Outcome{Generation: gen, Err: err}
	}

	_, span := tracer.Start(ctx, "refresh.apply",
		trace.WithAttributes(attribute.Int64("refresh.generation", int64(gen))))
	defer span.End()

	if err := c.target.ApplyRefresh(gen, res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RefreshTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		c.log.Error("refresh rejected", "generation", gen, "error", err)
		return Outcome{Generation: gen, Err: err}
	}
	metrics.RefreshTotal.WithLabelValues(metrics.OutcomeApplied).Inc()
	c.log.Info("refresh applied", "generation", gen,
		"processes", len(res.Processes), "sockets", len(res.Sockets))
	return Outcome{Generation: gen}
}
