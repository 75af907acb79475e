package store

import (
	"fmt"

	"github.com/bakeline/ordersync/internal/domain"
)

// The apply* methods run under the write lock.

func (s *Store) applyCreated(p domain.OrderCreatedPatch) ApplyResult {
	if p.Kind == domain.KindFactoryOrder {
		if _, ok := s.factoryOrders[p.FactoryOrder.ID]; ok {
			return ApplyResult{Applied: true}
		}
		clone := cloneFactoryOrder(p.FactoryOrder)
		if len(clone.StatusHistory) == 0 && clone.Status != "" {
			clone.StatusHistory = []domain.StatusChange{{Status: clone.Status, ChangedAt: clone.UpdatedAt}}
		}
		s.factoryOrders[clone.ID] = &clone
		s.syncTasks(domain.KindFactoryOrder, clone.ID, clone.Items)
		return ApplyResult{Applied: true}
	}
	if _, ok := s.orders[p.Order.ID]; ok {
		return ApplyResult{Applied: true}
	}
	clone := cloneOrder(p.Order)
	if len(clone.StatusHistory) == 0 && clone.Status != "" {
		clone.StatusHistory = []domain.StatusChange{{Status: clone.Status, ChangedAt: clone.UpdatedAt}}
	}
	s.orders[clone.ID] = &clone
	s.syncTasks(domain.KindOrder, clone.ID, clone.Items)
	return ApplyResult{Applied: true}
}

func (s *Store) applyOrderStatus(p domain.OrderStatusPatch) ApplyResult {
	key := p.Key()
	status, history, ok := s.entityStatus(key)
	if !ok {
		s.createSkeleton(p.Kind, p.OrderID, p.OrderNumber, p.BranchName, p.Status, p.ChangedAt)
		return ApplyResult{Applied: true, Reconcile: []domain.EntityKey{key}}
	}
	if status == p.Status {
		return ApplyResult{Applied: true}
	}
	if !domain.CanTransitionOrder(status, p.Status) {
		return ApplyResult{Reason: fmt.Sprintf("order status %s cannot move to %s", status, p.Status)}
	}
	entry := domain.StatusChange{Status: p.Status, ChangedAt: p.ChangedAt, Note: p.Note}
	s.setEntityStatus(key, p.Status, appendStatusChange(history, entry), p.ChangedAt)
	return ApplyResult{Applied: true}
}

func (s *Store) applyTasksAssigned(p domain.TasksAssignedPatch) ApplyResult {
	key := p.Key()
	var reconcile []domain.EntityKey
	items, ok := s.entityItems(key)
	if !ok {
		s.createSkeleton(p.Kind, p.OrderID, p.OrderNumber, p.BranchName, domain.OrderPending, noTime())
		items, _ = s.entityItems(key)
		reconcile = append(reconcile, key)
	}
	for _, task := range p.Tasks {
		existing, ok := s.tasks[task.ID]
		if ok && !domain.CanTransitionItem(existing.Status, task.Status) && existing.Status != task.Status {
			// Task already moved past assignment; keep its progress.
			existing.ChefID = task.ChefID
			continue
		}
		clone := task
		s.tasks[task.ID] = &clone

		found := false
		for i := range items {
			if items[i].ID != task.ID {
				continue
			}
			found = true
			items[i].AssigneeID = task.ChefID
			if domain.CanTransitionItem(items[i].Status, domain.ItemAssigned) {
				items[i].Status = domain.ItemAssigned
			}
		}
		if !found {
			items = append(items, domain.OrderItem{
				ID:          task.ID,
				ProductName: task.ProductName,
				Quantity:    task.Quantity,
				Status:      domain.ItemAssigned,
				AssigneeID:  task.ChefID,
			})
		}
	}
	s.setEntityItems(key, items)
	return ApplyResult{Applied: true, Reconcile: reconcile}
}

func (s *Store) applyItemStatus(p domain.ItemStatusPatch) ApplyResult {
	key := p.Key()
	var reconcile []domain.EntityKey
	items, ok := s.entityItems(key)
	if !ok {
		s.createSkeleton(p.Kind, p.OrderID, p.OrderNumber, "", domain.OrderPending, noTime())
		items, _ = s.entityItems(key)
		reconcile = append(reconcile, key)
	}

	found := false
	for i := range items {
		if items[i].ID != p.ItemID {
			continue
		}
		found = true
		if items[i].Status == p.Status {
			break
		}
		if !domain.CanTransitionItem(items[i].Status, p.Status) {
			return ApplyResult{Reason: fmt.Sprintf("item %s status %s cannot move to %s", p.ItemID, items[i].Status, p.Status)}
		}
		items[i].Status = p.Status
	}
	if !found {
		items = append(items, domain.OrderItem{ID: p.ItemID, Status: p.Status})
		if len(reconcile) == 0 {
			reconcile = append(reconcile, key)
		}
	}
	s.setEntityItems(key, items)

	if task, ok := s.tasks[p.ItemID]; ok && task.OrderID == p.OrderID {
		if task.Status != p.Status && domain.CanTransitionItem(task.Status, p.Status) {
			task.Status = p.Status
		}
	}

	// A fully completed item set is a condition only the server can confirm
	// as an aggregate transition; hand it to the reconciler instead of
	// assuming completion locally.
	if p.Status == domain.ItemCompleted && domain.AllItemsCompleted(items) {
		if status, _, ok := s.entityStatus(key); ok && status != domain.OrderCompleted {
			reconcile = append(reconcile, key)
		}
	}
	return ApplyResult{Applied: true, Reconcile: dedupeKeys(reconcile)}
}

func (s *Store) applyReturnStatus(p domain.ReturnStatusPatch) ApplyResult {
	var reconcile []domain.EntityKey
	order, ok := s.orders[p.OrderID]
	if !ok {
		s.createSkeleton(domain.KindOrder, p.OrderID, p.OrderNumber, "", domain.OrderPending, noTime())
		order = s.orders[p.OrderID]
		reconcile = append(reconcile, p.Key())
	}
	if order.Returns == nil {
		order.Returns = map[string]domain.Return{}
	}
	existing, ok := order.Returns[p.ReturnID]
	if !ok {
		order.Returns[p.ReturnID] = domain.Return{ID: p.ReturnID, OrderID: p.OrderID, Status: p.Status}
		return ApplyResult{Applied: true, Reconcile: reconcile}
	}
	if existing.Status == p.Status {
		return ApplyResult{Applied: true}
	}
	if !domain.CanTransitionReturn(existing.Status, p.Status) {
		return ApplyResult{Reason: fmt.Sprintf("return %s status %s cannot move to %s", p.ReturnID, existing.Status, p.Status)}
	}
	existing.Status = p.Status
	order.Returns[p.ReturnID] = existing
	return ApplyResult{Applied: true, Reconcile: reconcile}
}
