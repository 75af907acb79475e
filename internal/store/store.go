// Package store holds the single in-memory projection of orders, tasks and
// returns that the UI reads. All mutation funnels through one serialized
// apply path; reconciler overwrites are authoritative and replace entities
// wholesale.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bakeline/ordersync/internal/domain"
)

// Change describes one store mutation delivered to subscribers.
type Change struct {
	Key           domain.EntityKey
	Authoritative bool
}

// ApplyResult reports what a patch did. Reconcile lists entities whose
// authoritative state should be refetched: entities first observed through a
// non-create event, and orders whose items just all reached completed.
type ApplyResult struct {
	Applied   bool
	Reason    string
	Reconcile []domain.EntityKey
}

type Store struct {
	mu            sync.RWMutex
	logger        *slog.Logger
	orders        map[string]*domain.Order
	factoryOrders map[string]*domain.FactoryOrder
	tasks         map[string]*domain.Task
	subs          map[int]func(Change)
	nextSub       int
}

func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:        logger,
		orders:        map[string]*domain.Order{},
		factoryOrders: map[string]*domain.FactoryOrder{},
		tasks:         map[string]*domain.Task{},
		subs:          map[int]func(Change){},
	}
}

// Subscribe registers a listener for store changes. The returned cancel func
// unregisters it; a consuming view calls it on unmount.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Apply merges one normalized patch. Event-derived and optimistic local
// patches both come through here; they are indistinguishable to the store.
func (s *Store) Apply(patch domain.Patch) ApplyResult {
	s.mu.Lock()
	var result ApplyResult
	switch p := patch.(type) {
	case domain.OrderCreatedPatch:
		result = s.applyCreated(p)
	case domain.OrderStatusPatch:
		result = s.applyOrderStatus(p)
	case domain.TasksAssignedPatch:
		result = s.applyTasksAssigned(p)
	case domain.ItemStatusPatch:
		result = s.applyItemStatus(p)
	case domain.ReturnStatusPatch:
		result = s.applyReturnStatus(p)
	case domain.MissingAssignmentPatch:
		result = ApplyResult{Applied: true}
	default:
		result = ApplyResult{Reason: fmt.Sprintf("unsupported patch %T", patch)}
	}
	s.mu.Unlock()
	if result.Applied {
		s.publish(Change{Key: patch.Key()})
	} else if result.Reason != "" {
		s.logger.Warn("store.patch_rejected",
			"kind", string(patch.Key().Kind),
			"entity", patch.Key().ID,
			"reason", result.Reason)
	}
	return result
}

// ReplaceOrder installs the authoritative view of an order, discarding any
// locally derived state for it. Server truth always wins.
func (s *Store) ReplaceOrder(o domain.Order) {
	s.mu.Lock()
	clone := cloneOrder(o)
	s.orders[o.ID] = &clone
	s.syncTasks(domain.KindOrder, o.ID, clone.Items)
	s.mu.Unlock()
	s.publish(Change{Key: o.Key(), Authoritative: true})
}

func (s *Store) ReplaceFactoryOrder(o domain.FactoryOrder) {
	s.mu.Lock()
	clone := cloneFactoryOrder(o)
	s.factoryOrders[o.ID] = &clone
	s.syncTasks(domain.KindFactoryOrder, o.ID, clone.Items)
	s.mu.Unlock()
	s.publish(Change{Key: o.Key(), Authoritative: true})
}

// Evict drops an entity and its tasks, typically when the owning view
// unmounts. The projection is rebuilt from a fresh pull on next mount.
func (s *Store) Evict(key domain.EntityKey) {
	s.mu.Lock()
	switch key.Kind {
	case domain.KindOrder:
		delete(s.orders, key.ID)
	case domain.KindFactoryOrder:
		delete(s.factoryOrders, key.ID)
	}
	for id, task := range s.tasks {
		if task.OrderID == key.ID && task.Kind == key.Kind {
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()
}

func (s *Store) Order(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return cloneOrder(*o), true
}

func (s *Store) FactoryOrder(id string) (domain.FactoryOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.factoryOrders[id]
	if !ok {
		return domain.FactoryOrder{}, false
	}
	return cloneFactoryOrder(*o), true
}

func (s *Store) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(*o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) FactoryOrders() []domain.FactoryOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FactoryOrder, 0, len(s.factoryOrders))
	for _, o := range s.factoryOrders {
		out = append(out, cloneFactoryOrder(*o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) TasksForChef(chefID string) []domain.Task {
	all := s.Tasks()
	out := all[:0]
	for _, t := range all {
		if t.ChefID == chefID {
			out = append(out, t)
		}
	}
	return out
}

// TrackedKeys lists every entity currently in the projection, used to fan
// out reconciliation after a reconnect.
func (s *Store) TrackedKeys() []domain.EntityKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EntityKey, 0, len(s.orders)+len(s.factoryOrders))
	for id := range s.orders {
		out = append(out, domain.EntityKey{Kind: domain.KindOrder, ID: id})
	}
	for id := range s.factoryOrders {
		out = append(out, domain.EntityKey{Kind: domain.KindFactoryOrder, ID: id})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) publish(change Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(change)
	}
}
