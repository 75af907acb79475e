package domain

type OrderStatus string

const (
	OrderPending      OrderStatus = "pending"
	OrderApproved     OrderStatus = "approved"
	OrderInProduction OrderStatus = "in_production"
	OrderCompleted    OrderStatus = "completed"
	OrderInTransit    OrderStatus = "in_transit"
	OrderDelivered    OrderStatus = "delivered"
	OrderCancelled    OrderStatus = "cancelled"
)

type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemAssigned   ItemStatus = "assigned"
	ItemInProgress ItemStatus = "in_progress"
	ItemCompleted  ItemStatus = "completed"
)

type ReturnStatus string

const (
	ReturnPendingApproval ReturnStatus = "pending_approval"
	ReturnApproved        ReturnStatus = "approved"
	ReturnRejected        ReturnStatus = "rejected"
)

// orderTransitions defines the legal aggregate-status transitions.
// delivered and cancelled are terminal.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:      {OrderApproved: true, OrderCancelled: true},
	OrderApproved:     {OrderInProduction: true, OrderCancelled: true},
	OrderInProduction: {OrderCompleted: true, OrderCancelled: true},
	OrderCompleted:    {OrderInTransit: true},
	OrderInTransit:    {OrderDelivered: true},
}

// itemTransitions defines the legal item/task transitions. completed is terminal.
var itemTransitions = map[ItemStatus]map[ItemStatus]bool{
	ItemPending:    {ItemAssigned: true},
	ItemAssigned:   {ItemInProgress: true},
	ItemInProgress: {ItemCompleted: true},
}

var returnTransitions = map[ReturnStatus]map[ReturnStatus]bool{
	ReturnPendingApproval: {ReturnApproved: true, ReturnRejected: true},
}

// CanTransitionOrder reports whether an order may move from one aggregate
// status directly to another. A same-status move is not a transition.
func CanTransitionOrder(from, to OrderStatus) bool {
	targets, ok := orderTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// CanTransitionItem reports whether an item or task may advance from one
// status directly to another.
func CanTransitionItem(from, to ItemStatus) bool {
	targets, ok := itemTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

func CanTransitionReturn(from, to ReturnStatus) bool {
	targets, ok := returnTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderApproved, OrderInProduction, OrderCompleted, OrderInTransit, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

func ValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemPending, ItemAssigned, ItemInProgress, ItemCompleted:
		return true
	}
	return false
}

func ValidReturnStatus(s ReturnStatus) bool {
	switch s {
	case ReturnPendingApproval, ReturnApproved, ReturnRejected:
		return true
	}
	return false
}
