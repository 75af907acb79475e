package store

import (
	"time"

	"github.com/bakeline/ordersync/internal/domain"
)

// Helpers shared by the apply path for addressing orders and factory orders
// uniformly. All of them run under the write lock.

func (s *Store) entityStatus(key domain.EntityKey) (domain.OrderStatus, []domain.StatusChange, bool) {
	switch key.Kind {
	case domain.KindFactoryOrder:
		if o, ok := s.factoryOrders[key.ID]; ok {
			return o.Status, o.StatusHistory, true
		}
	default:
		if o, ok := s.orders[key.ID]; ok {
			return o.Status, o.StatusHistory, true
		}
	}
	return "", nil, false
}

func (s *Store) setEntityStatus(key domain.EntityKey, status domain.OrderStatus, history []domain.StatusChange, at time.Time) {
	switch key.Kind {
	case domain.KindFactoryOrder:
		if o, ok := s.factoryOrders[key.ID]; ok {
			o.Status = status
			o.StatusHistory = history
			if !at.IsZero() {
				o.UpdatedAt = at
			}
		}
	default:
		if o, ok := s.orders[key.ID]; ok {
			o.Status = status
			o.StatusHistory = history
			if !at.IsZero() {
				o.UpdatedAt = at
			}
		}
	}
}

func (s *Store) entityItems(key domain.EntityKey) ([]domain.OrderItem, bool) {
	switch key.Kind {
	case domain.KindFactoryOrder:
		if o, ok := s.factoryOrders[key.ID]; ok {
			return o.Items, true
		}
	default:
		if o, ok := s.orders[key.ID]; ok {
			return o.Items, true
		}
	}
	return nil, false
}

func (s *Store) setEntityItems(key domain.EntityKey, items []domain.OrderItem) {
	switch key.Kind {
	case domain.KindFactoryOrder:
		if o, ok := s.factoryOrders[key.ID]; ok {
			o.Items = items
		}
	default:
		if o, ok := s.orders[key.ID]; ok {
			o.Items = items
		}
	}
}

// createSkeleton registers an entity first observed through a non-create
// event. The caller schedules reconciliation to fill in the rest.
func (s *Store) createSkeleton(kind domain.EntityKind, id, orderNumber, branchName string, status domain.OrderStatus, at time.Time) {
	history := []domain.StatusChange{}
	if status != "" {
		history = append(history, domain.StatusChange{Status: status, ChangedAt: at})
	}
	if kind == domain.KindFactoryOrder {
		s.factoryOrders[id] = &domain.FactoryOrder{
			ID:            id,
			OrderNumber:   orderNumber,
			Status:        status,
			StatusHistory: history,
			UpdatedAt:     at,
		}
		return
	}
	s.orders[id] = &domain.Order{
		ID:            id,
		OrderNumber:   orderNumber,
		BranchName:    branchName,
		Status:        status,
		StatusHistory: history,
		UpdatedAt:     at,
	}
}

// syncTasks keeps the task set consistent with an entity's items after a
// create or an authoritative replace.
func (s *Store) syncTasks(kind domain.EntityKind, orderID string, items []domain.OrderItem) {
	assigned := map[string]bool{}
	for _, item := range items {
		if item.AssigneeID == "" {
			continue
		}
		assigned[item.ID] = true
		s.tasks[item.ID] = &domain.Task{
			ID:          item.ID,
			OrderID:     orderID,
			Kind:        kind,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Status:      item.Status,
			ChefID:      item.AssigneeID,
		}
	}
	for id, task := range s.tasks {
		if task.OrderID == orderID && task.Kind == kind && !assigned[id] {
			delete(s.tasks, id)
		}
	}
}

// appendStatusChange appends one history entry, deduplicated by status and
// change timestamp. History is append-only.
func appendStatusChange(history []domain.StatusChange, entry domain.StatusChange) []domain.StatusChange {
	for _, existing := range history {
		if existing.Status == entry.Status && existing.ChangedAt.Equal(entry.ChangedAt) {
			return history
		}
	}
	return append(history, entry)
}

func cloneOrder(o domain.Order) domain.Order {
	clone := o
	clone.Items = append([]domain.OrderItem(nil), o.Items...)
	clone.StatusHistory = append([]domain.StatusChange(nil), o.StatusHistory...)
	if o.Returns != nil {
		clone.Returns = make(map[string]domain.Return, len(o.Returns))
		for id, ret := range o.Returns {
			retClone := ret
			retClone.Items = append([]domain.OrderItem(nil), ret.Items...)
			clone.Returns[id] = retClone
		}
	}
	return clone
}

func cloneFactoryOrder(o domain.FactoryOrder) domain.FactoryOrder {
	clone := o
	clone.Items = append([]domain.OrderItem(nil), o.Items...)
	clone.StatusHistory = append([]domain.StatusChange(nil), o.StatusHistory...)
	return clone
}

func dedupeKeys(keys []domain.EntityKey) []domain.EntityKey {
	if len(keys) < 2 {
		return keys
	}
	seen := map[domain.EntityKey]bool{}
	out := keys[:0]
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

func noTime() time.Time { return time.Time{} }
