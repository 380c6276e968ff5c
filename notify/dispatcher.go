package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Delivers events to every notifier in the background. Callers never wait on delivery and never see its errors.
//
// A nil *Dispatcher is valid and drops everything.
type Dispatcher struct {
	Notifiers []Notifier
	// Events over the limit are dropped, not queued.
	Limiter *rate.Limiter
	Timeout time.Duration
	Logger  *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger, perSecond float64, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		Notifiers: notifiers,
		Limiter:   rate.NewLimiter(limit, burst),
		Timeout:   10 * time.Second,
		Logger:    logger.With("component", "notify"),
	}
}

func (d *Dispatcher) Dispatch(evt Event) {
	if d == nil || len(d.Notifiers) == 0 {
		return
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	if d.Limiter != nil && !d.Limiter.Allow() {
		notificationCount.WithLabelValues(string(evt.Kind), "dropped").Inc()
		d.Logger.Debug("notification rate limited, dropping", "kind", evt.Kind, "user", evt.UserID)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// detached from the caller: the originating request has usually finished by now
		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		for _, n := range d.Notifiers {
			if err := n.Notify(ctx, evt); err != nil {
				notificationCount.WithLabelValues(string(evt.Kind), "error").Inc()
				d.Logger.Warn("failed to deliver notification", "kind", evt.Kind, "user", evt.UserID, "err", err)
				continue
			}
			notificationCount.WithLabelValues(string(evt.Kind), "ok").Inc()
		}
	}()
}

// Blocks until in-flight deliveries finish. Used at shutdown and in tests.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
