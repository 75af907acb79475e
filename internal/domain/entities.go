package domain

import "time"

type EntityKind string

const (
	KindOrder        EntityKind = "order"
	KindFactoryOrder EntityKind = "factory_order"
)

// EntityKey addresses one reconcilable entity in the store.
type EntityKey struct {
	Kind EntityKind
	ID   string
}

type StatusChange struct {
	Status    OrderStatus `json:"status"`
	ChangedAt time.Time   `json:"changedAt"`
	Note      string      `json:"note,omitempty"`
}

type OrderItem struct {
	ID          string     `json:"itemId"`
	ProductName string     `json:"productName"`
	Unit        string     `json:"unit"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unitPrice"`
	Status      ItemStatus `json:"status"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
}

type Return struct {
	ID          string       `json:"returnId"`
	OrderID     string       `json:"orderId"`
	BranchID    string       `json:"branchId,omitempty"`
	BranchName  string       `json:"branchName,omitempty"`
	Items       []OrderItem  `json:"items,omitempty"`
	Status      ReturnStatus `json:"status"`
	RequestedAt time.Time    `json:"requestedAt,omitempty"`
}

type Order struct {
	ID            string            `json:"orderId"`
	OrderNumber   string            `json:"orderNumber"`
	BranchID      string            `json:"branchId,omitempty"`
	BranchName    string            `json:"branchName"`
	Status        OrderStatus       `json:"status"`
	Items         []OrderItem       `json:"items"`
	StatusHistory []StatusChange    `json:"statusHistory,omitempty"`
	Returns       map[string]Return `json:"returns,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt,omitempty"`
}

// Task is a production assignment derived from an order item. Its ID is the
// item it produces; every task belongs to exactly one order.
type Task struct {
	ID          string     `json:"taskId"`
	OrderID     string     `json:"orderId"`
	Kind        EntityKind `json:"kind"`
	ProductName string     `json:"productName"`
	Quantity    int        `json:"quantity"`
	Status      ItemStatus `json:"status"`
	ChefID      string     `json:"chefId"`
}

// FactoryOrder is the internal-production analogue of Order: no branch,
// optionally bound to a department, same status vocabulary.
type FactoryOrder struct {
	ID            string         `json:"factoryOrderId"`
	OrderNumber   string         `json:"orderNumber"`
	DepartmentID  string         `json:"departmentId,omitempty"`
	Status        OrderStatus    `json:"status"`
	Items         []OrderItem    `json:"items"`
	StatusHistory []StatusChange `json:"statusHistory,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt,omitempty"`
}

func (o Order) Key() EntityKey        { return EntityKey{Kind: KindOrder, ID: o.ID} }
func (o FactoryOrder) Key() EntityKey { return EntityKey{Kind: KindFactoryOrder, ID: o.ID} }

// AllItemsCompleted reports whether every item reached its terminal status.
// False for an order with no items at all.
func AllItemsCompleted(items []OrderItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.Status != ItemCompleted {
			return false
		}
	}
	return true
}
