package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anonto42/nano-midea/socialsync/internal/ledger"
	"github.com/anonto42/nano-midea/socialsync/internal/observability"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// DefaultReactorTimeout bounds one reactor invocation.
const DefaultReactorTimeout = 60 * time.Second

type route struct {
	collection string
	kind       Kind
}

type registration struct {
	reactor Reactor
	ignore  []string
}

// Dispatcher routes events to the reactors registered for their collection and
// kind. Every matching reactor runs concurrently and in isolation: a failing
// reactor neither cancels nor blocks the others.
type Dispatcher struct {
	ledger  ledger.Ledger
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	routes map[route][]registration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithReactorTimeout overrides DefaultReactorTimeout.
func WithReactorTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// NewDispatcher returns a dispatcher recording completed work in l.
func NewDispatcher(l ledger.Ledger, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		ledger:  l,
		logger:  logger,
		timeout: DefaultReactorTimeout,
		routes:  make(map[route][]registration),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register subscribes r to kind events on collection. Update events whose
// After image was written by one of ignoreWriters are not delivered to r.
func (d *Dispatcher) Register(collection string, kind Kind, r Reactor, ignoreWriters ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := route{collection: collection, kind: kind}
	d.routes[key] = append(d.routes[key], registration{reactor: r, ignore: ignoreWriters})
}

// Reactors lists the names registered for collection and kind.
func (d *Dispatcher) Reactors(collection string, kind Kind) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var names []string
	for _, reg := range d.routes[route{collection: collection, kind: kind}] {
		names = append(names, reg.reactor.Name())
	}
	return names
}

// Collections lists every collection with at least one registration.
func (d *Dispatcher) Collections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for r := range d.routes {
		if !slices.Contains(out, r.collection) {
			out = append(out, r.collection)
		}
	}
	slices.Sort(out)
	return out
}

// Dispatch runs every matching reactor and returns the joined errors of those
// that failed. Reactors that completed keep their ledger claim, so delivering
// the same event again only re-runs the failed ones.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	d.mu.RLock()
	regs := append([]registration(nil), d.routes[route{collection: e.Collection, kind: e.Kind}]...)
	d.mu.RUnlock()
	if len(regs) == 0 {
		return nil
	}

	errs := make([]error, len(regs))
	var g errgroup.Group
	for i, reg := range regs {
		g.Go(func() error {
			errs[i] = d.run(ctx, reg, e)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (d *Dispatcher) run(ctx context.Context, reg registration, e Event) error {
	name := reg.reactor.Name()
	start := time.Now()
	log := d.logger.With(slog.String("reactor", name), slog.String("event_id", e.ID))

	if e.Kind == Updated && e.After != nil && slices.Contains(reg.ignore, e.After.Writer()) {
		observability.ObserveReactor(name, "skipped", start)
		return nil
	}

	key := ClaimKey(name, e.ID)
	first, err := d.ledger.Claim(ctx, key)
	if err != nil {
		observability.ObserveReactor(name, "error", start)
		return fmt.Errorf("%s: %w", name, err)
	}
	if !first {
		log.Debug("event already handled")
		observability.ObserveReactor(name, "duplicate", start)
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	rctx, span := observability.StartReactorSpan(rctx, name, e.ID)
	err = reg.reactor.Handle(rctx, e)
	observability.EndSpan(span, err)

	switch {
	case err == nil:
		observability.ObserveReactor(name, "ok", start)
		return nil
	case errors.Is(err, store.ErrNotFound):
		log.Debug("referenced document is gone", slog.String("error", err.Error()))
		observability.ObserveReactor(name, "not_found", start)
		return nil
	}

	observability.ObserveReactor(name, "error", start)
	log.Error("reactor failed", slog.String("error", err.Error()))
	if rerr := d.ledger.Release(context.WithoutCancel(ctx), key); rerr != nil {
		log.Error("failed to release claim", slog.String("error", rerr.Error()))
		return errors.Join(fmt.Errorf("%s: %w", name, err), rerr)
	}
	return fmt.Errorf("%s: %w", name, err)
}
