package domain

import "time"

// Patch is one normalized state change produced by the payload normalizer.
// Downstream code switches exhaustively on the concrete variants instead of
// probing optional wire fields.
type Patch interface {
	Key() EntityKey
}

// OrderCreatedPatch introduces a newly observed order or factory order.
type OrderCreatedPatch struct {
	Kind         EntityKind
	Order        Order
	FactoryOrder FactoryOrder
}

func (p OrderCreatedPatch) Key() EntityKey {
	if p.Kind == KindFactoryOrder {
		return p.FactoryOrder.Key()
	}
	return p.Order.Key()
}

// OrderStatusPatch advances an order's aggregate status.
type OrderStatusPatch struct {
	Kind        EntityKind
	OrderID     string
	OrderNumber string
	BranchName  string
	Status      OrderStatus
	ChangedAt   time.Time
	Note        string
}

func (p OrderStatusPatch) Key() EntityKey { return EntityKey{Kind: p.Kind, ID: p.OrderID} }

// TasksAssignedPatch records production assignments for one order's items.
type TasksAssignedPatch struct {
	Kind        EntityKind
	OrderID     string
	OrderNumber string
	BranchName  string
	Tasks       []Task
}

func (p TasksAssignedPatch) Key() EntityKey { return EntityKey{Kind: p.Kind, ID: p.OrderID} }

// ItemStatusPatch advances a single item (and its task, if any).
type ItemStatusPatch struct {
	Kind        EntityKind
	OrderID     string
	OrderNumber string
	ItemID      string
	Status      ItemStatus
	ChangedAt   time.Time
}

func (p ItemStatusPatch) Key() EntityKey { return EntityKey{Kind: p.Kind, ID: p.OrderID} }

// ReturnStatusPatch updates a return attached to an order.
type ReturnStatusPatch struct {
	OrderID     string
	OrderNumber string
	ReturnID    string
	Status      ReturnStatus
}

func (p ReturnStatusPatch) Key() EntityKey { return EntityKey{Kind: KindOrder, ID: p.OrderID} }

// MissingAssignmentPatch carries an alert about an item with no assignee.
// It changes no store state; it exists so the notifier can fire.
type MissingAssignmentPatch struct {
	Kind        EntityKind
	OrderID     string
	OrderNumber string
	ItemID      string
	ProductName string
}

func (p MissingAssignmentPatch) Key() EntityKey { return EntityKey{Kind: p.Kind, ID: p.OrderID} }
