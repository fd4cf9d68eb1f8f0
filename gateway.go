package goAuthClient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Gateway issues API requests and hides transient credential expiry from callers.
//
// Gateway methods are safe for concurrent use after Builder.Build. One Gateway
// owns one refresh gate; build one per session and inject it wherever requests
// originate.
type Gateway struct {
	config    Config
	baseURL   string
	doer      Doer
	refresher Refresher
	observer  SessionObserver
	gate      refreshGate
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *log.Logger
}

// Send issues req and returns the 2xx response.
//
// A response carrying Refresh.AuthExpiredStatus triggers at most one refresh
// per gate cycle: the first caller refreshes, concurrent callers wait for its
// outcome, and all of them replay their own descriptor once on success or
// fail with a *RefreshError on failure. A descriptor that already replayed
// fails with ErrRetryExhausted instead of refreshing again. Every other error
// is returned unchanged: transport errors verbatim and non-2xx statuses as
// *StatusError.
//
// req is marked retried in place and must not be shared between concurrent calls.
func (g *Gateway) Send(ctx context.Context, req *Request) (*Response, error) {
	if g == nil || g.doer == nil || g.refresher == nil {
		return nil, ErrGatewayNotReady
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := g.roundTrip(ctx, req)
	if err == nil {
		return resp, nil
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || !statusErr.AuthExpired() {
		return nil, err
	}

	if req.retried {
		exhausted := retryExhausted(err)
		g.metricInc(MetricRetryExhausted)
		g.emitAudit(ctx, auditEventRetryExhausted, false, req, exhausted, nil)
		return nil, exhausted
	}
	req.retried = true

	waiter, leader := g.gate.enter()
	if !leader {
		g.metricInc(MetricPendingQueued)
		return g.await(ctx, req, waiter, err)
	}

	if cause := g.refreshCycle(ctx, req); cause != nil {
		return nil, &RefreshError{Original: err, Cause: cause}
	}
	return g.replay(ctx, req)
}

// Do is shorthand for Send(ctx, NewRequest(method, path)).
func (g *Gateway) Do(ctx context.Context, method, path string) (*Response, error) {
	return g.Send(ctx, NewRequest(method, path))
}

func (g *Gateway) await(ctx context.Context, req *Request, waiter *pendingCaller, authErr error) (*Response, error) {
	select {
	case cause := <-waiter.outcome:
		if cause != nil {
			return nil, &RefreshError{Original: authErr, Cause: cause}
		}
		return g.replay(ctx, req)
	case <-ctx.Done():
		// The gate still releases this caller; the buffered outcome is discarded.
		return nil, ctx.Err()
	}
}

func (g *Gateway) replay(ctx context.Context, req *Request) (*Response, error) {
	g.metricInc(MetricReplayed)
	return g.Send(ctx, req)
}

// refreshCycle runs the single refresh call of a gate cycle and resolves the
// gate with its outcome. On failure it emits the session termination once.
func (g *Gateway) refreshCycle(ctx context.Context, req *Request) error {
	g.metricInc(MetricRefreshStarted)
	g.emitAudit(ctx, auditEventRefreshStarted, true, req, nil, nil)

	start := time.Now()
	cause := g.callRefresher(ctx)
	elapsed := time.Since(start)
	g.metrics.Observe(MetricRefreshLatency, elapsed)

	released := g.gate.resolve(cause)

	if cause == nil {
		g.metricInc(MetricRefreshSuccess)
		g.emitAudit(ctx, auditEventRefreshSuccess, true, req, nil, func() map[string]string {
			return map[string]string{
				"released":   fmt.Sprint(released),
				"latency_ms": fmt.Sprint(elapsed.Milliseconds()),
			}
		})
		return nil
	}

	g.metricInc(MetricRefreshFailure)
	g.emitAudit(ctx, auditEventRefreshFailure, false, req, cause, func() map[string]string {
		return map[string]string{
			"released": fmt.Sprint(released),
		}
	})
	g.warn("goAuthClient: credential refresh failed: %v", cause)
	g.terminate(ctx, req, cause, released)
	return cause
}

// callRefresher bounds the refresh by Refresh.Timeout and detaches it from the
// triggering caller's cancellation, since every parked caller depends on it.
func (g *Gateway) callRefresher(ctx context.Context) (err error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.config.Refresh.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresher panic: %v", r)
		}
	}()

	err = g.refresher.Refresh(rctx)
	if err != nil && errors.Is(rctx.Err(), context.DeadlineExceeded) {
		g.metricInc(MetricRefreshTimeout)
		return errors.Join(ErrRefreshTimeout, err)
	}
	return err
}

func (g *Gateway) terminate(ctx context.Context, req *Request, cause error, released int) {
	g.metricInc(MetricSessionTerminated)
	g.emitAudit(ctx, auditEventSessionTerminated, true, req, cause, nil)

	if g.observer == nil {
		g.warn("goAuthClient: session terminated without a session observer")
		return
	}

	t := SessionTermination{
		At:        time.Now().UTC(),
		Cause:     cause,
		LoginPath: g.config.Session.LoginPath,
		Released:  released,
	}

	defer func() {
		if r := recover(); r != nil {
			g.warn("goAuthClient: session observer panic: %v", r)
		}
	}()
	g.observer.OnSessionTerminated(context.WithoutCancel(ctx), t)
}

// Close flushes and stops the audit dispatcher.
func (g *Gateway) Close() {
	if g == nil {
		return
	}
	if g.audit != nil {
		g.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (g *Gateway) AuditDropped() uint64 {
	if g == nil || g.audit == nil {
		return 0
	}
	return g.audit.Dropped()
}

// MetricsSnapshot returns a copy of the gateway counters.
func (g *Gateway) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return g.metrics.Snapshot()
}

func (g *Gateway) metricInc(id MetricID) {
	if g == nil || g.metrics == nil {
		return
	}
	g.metrics.Inc(id)
}

func (g *Gateway) warn(format string, args ...any) {
	if g == nil || g.logger == nil {
		return
	}
	g.logger.Printf(format, args...)
}
