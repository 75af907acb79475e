// Package reconcile replaces locally derived entities with authoritative
// reads. Triggers for the same entity coalesce inside a debounce window so a
// burst of task completions costs one fetch, not one per event.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bakeline/ordersync/internal/domain"
)

// Fetcher is the pull-side collaborator. *pull.Client implements it.
type Fetcher interface {
	OrderByID(ctx context.Context, id string) (domain.Order, error)
	FactoryOrderByID(ctx context.Context, id string) (domain.FactoryOrder, error)
}

// Applier is the store surface the reconciler writes through.
type Applier interface {
	ReplaceOrder(o domain.Order)
	ReplaceFactoryOrder(o domain.FactoryOrder)
}

type Options struct {
	Debounce     time.Duration // default 250ms
	MaxAttempts  int           // default 3
	RetryDelay   time.Duration // default 500ms, doubled per attempt
	FetchTimeout time.Duration // default 10s
	Logger       *slog.Logger
}

type Reconciler struct {
	fetcher Fetcher
	store   Applier
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[domain.EntityKey]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

func New(fetcher Fetcher, store Applier, opts Options) *Reconciler {
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		fetcher: fetcher,
		store:   store,
		opts:    opts,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		pending: map[domain.EntityKey]*time.Timer{},
	}
}

// Trigger schedules an authoritative refetch for the entity. Repeated
// triggers inside the debounce window coalesce into a single fetch.
func (r *Reconciler) Trigger(key domain.EntityKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, ok := r.pending[key]; ok {
		return
	}
	r.pending[key] = time.AfterFunc(r.opts.Debounce, func() { r.run(key) })
}

// TriggerAll schedules refetches for every key, used after a reconnect when
// events may have been missed.
func (r *Reconciler) TriggerAll(keys []domain.EntityKey) {
	for _, key := range keys {
		r.Trigger(key)
	}
}

// CancelPending drops a scheduled refetch that has not fired yet, typically
// because the owning view unmounted.
func (r *Reconciler) CancelPending(key domain.EntityKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.pending[key]; ok {
		timer.Stop()
		delete(r.pending, key)
	}
}

// Close cancels all pending work and waits for in-flight fetches.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for key, timer := range r.pending {
		timer.Stop()
		delete(r.pending, key)
	}
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) run(key domain.EntityKey) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	delete(r.pending, key)
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	delay := r.opts.RetryDelay
	for attempt := 1; ; attempt++ {
		err := r.fetchAndReplace(key)
		if err == nil {
			return
		}
		if attempt >= r.opts.MaxAttempts {
			// Keep the locally derived state; never blank the entity.
			r.logger.Error("reconcile.failed",
				"kind", string(key.Kind),
				"entity", key.ID,
				"attempts", attempt,
				"error", err)
			return
		}
		r.logger.Warn("reconcile.retry",
			"kind", string(key.Kind),
			"entity", key.ID,
			"attempt", attempt,
			"error", err)
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (r *Reconciler) fetchAndReplace(key domain.EntityKey) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.opts.FetchTimeout)
	defer cancel()
	switch key.Kind {
	case domain.KindFactoryOrder:
		order, err := r.fetcher.FactoryOrderByID(ctx, key.ID)
		if err != nil {
			return err
		}
		r.store.ReplaceFactoryOrder(order)
	default:
		order, err := r.fetcher.OrderByID(ctx, key.ID)
		if err != nil {
			return err
		}
		r.store.ReplaceOrder(order)
	}
	return nil
}
