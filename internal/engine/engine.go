// Package engine wires the event pipeline every consumer shares: scope
// filter, idempotency gate, normalization, store apply, reconciliation
// trigger, notification. Per-screen code only reads from the store.
package engine

import (
	"errors"
	"log/slog"

	"github.com/bakeline/ordersync/internal/dedup"
	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/normalize"
	"github.com/bakeline/ordersync/internal/notify"
	"github.com/bakeline/ordersync/internal/scope"
	"github.com/bakeline/ordersync/internal/store"
	"github.com/bakeline/ordersync/internal/wire"
)

// Triggerer is the reconciler surface the pipeline needs.
type Triggerer interface {
	Trigger(key domain.EntityKey)
	TriggerAll(keys []domain.EntityKey)
}

type Engine struct {
	session  domain.Session
	store    *store.Store
	seen     *dedup.Set
	rec      Triggerer
	notifier *notify.Dispatcher
	logger   *slog.Logger
}

func New(session domain.Session, st *store.Store, seen *dedup.Set, rec Triggerer, notifier *notify.Dispatcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		session:  session,
		store:    st,
		seen:     seen,
		rec:      rec,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleFrame runs one inbound frame through the pipeline. The stage order
// is fixed: authorization is checked before the dedup set is marked, so an
// unauthorized replay can never consume a dedup slot. No stage panics
// outward; every failure is a logged drop.
func (e *Engine) HandleFrame(data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		if errors.Is(err, wire.ErrUnknownEvent) {
			e.logger.Debug("pipeline.unknown_event", "error", err)
		} else {
			e.logger.Warn("pipeline.frame_dropped", "error", err)
		}
		return
	}

	if !scope.Visible(env, e.session) {
		// Absence of access is steady-state traffic, not a failure.
		e.logger.Debug("pipeline.out_of_scope", "event", env.Name, "role", string(e.session.Role))
		return
	}

	if !e.seen.ShouldApply(env.Key) {
		e.logger.Debug("pipeline.duplicate", "event", env.Name, "key", env.Key)
		return
	}

	patch, err := normalize.Normalize(env)
	if err != nil {
		e.logger.Warn("pipeline.normalize_failed", "event", env.Name, "error", err)
		return
	}

	result := e.store.Apply(patch)
	if !result.Applied {
		return
	}
	for _, key := range result.Reconcile {
		e.rec.Trigger(key)
	}

	if e.notifier != nil {
		e.notifier.Notify(env.Key, renderMessage(env.Name, patch))
	}
}
