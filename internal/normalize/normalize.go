// Package normalize converts validated wire payloads into canonical domain
// patches. Optional descriptive fields get deterministic defaults so the
// store's merge logic never sees a partially populated entity.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/wire"
)

const (
	// UnknownUnit is the sentinel for an absent measurement unit.
	UnknownUnit = "unknown unit"

	defaultQuantity = 1
)

// ValidationError reports a payload that passed the wire schema but cannot
// be turned into a coherent patch. The pipeline logs and drops it; it never
// crashes the stream.
type ValidationError struct {
	Event  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q %s", e.Event, e.Field, e.Reason)
}

// Normalize maps one envelope to its patch variant. The raw payload is never
// mutated.
func Normalize(env wire.Envelope) (domain.Patch, error) {
	switch env.Name {
	case wire.EventOrderCreated:
		return normalizeOrderCreated(env)
	case wire.EventOrderConfirmed:
		// The event name implies approved; a payload carrying a different
		// status is incoherent and dropped.
		status, err := payloadOrderStatus(env)
		if err != nil {
			return nil, err
		}
		if status != domain.OrderApproved {
			return nil, &ValidationError{Event: env.Name, Field: "status", Reason: fmt.Sprintf("must be %s, got %s", domain.OrderApproved, status)}
		}
		return normalizeOrderStatus(env, domain.KindOrder, "orderId", domain.OrderApproved)
	case wire.EventOrderStatusUpdated:
		status, err := payloadOrderStatus(env)
		if err != nil {
			return nil, err
		}
		return normalizeOrderStatus(env, domain.KindOrder, "orderId", status)
	case wire.EventOrderCompleted:
		return normalizeOrderStatus(env, domain.KindOrder, "orderId", domain.OrderCompleted)
	case wire.EventOrderShipped:
		return normalizeOrderStatus(env, domain.KindOrder, "orderId", domain.OrderInTransit)
	case wire.EventOrderDelivered:
		return normalizeOrderStatus(env, domain.KindOrder, "orderId", domain.OrderDelivered)
	case wire.EventTaskAssigned:
		return normalizeTasksAssigned(env, domain.KindOrder, "orderId")
	case wire.EventItemStatusUpdated:
		return normalizeItemStatus(env, domain.KindOrder, "orderId")
	case wire.EventReturnStatusUpdated:
		return normalizeReturnStatus(env)
	case wire.EventMissingAssignments:
		return normalizeMissingAssignment(env, domain.KindOrder, "orderId")

	case wire.EventFactoryOrderCreated:
		return normalizeFactoryOrderCreated(env)
	case wire.EventFactoryTaskAssigned:
		return normalizeTasksAssigned(env, domain.KindFactoryOrder, "factoryOrderId")
	case wire.EventFactoryItemStatusUpdated:
		return normalizeItemStatus(env, domain.KindFactoryOrder, "factoryOrderId")
	case wire.EventFactoryOrderCompleted:
		return normalizeOrderStatus(env, domain.KindFactoryOrder, "factoryOrderId", domain.OrderCompleted)
	}
	return nil, &ValidationError{Event: env.Name, Field: "name", Reason: "has no normalizer"}
}

func normalizeOrderCreated(env wire.Envelope) (domain.Patch, error) {
	orderID, err := requiredString(env, "orderId")
	if err != nil {
		return nil, err
	}
	items, err := normalizeItems(env, false)
	if err != nil {
		return nil, err
	}
	order := domain.Order{
		ID:          orderID,
		OrderNumber: str(env.Payload, "orderNumber"),
		BranchID:    str(env.Payload, "branchId"),
		BranchName:  str(env.Payload, "branchName"),
		Status:      domain.OrderPending,
		Items:       items,
		UpdatedAt:   changedAt(env.Payload),
	}
	if raw := str(env.Payload, "status"); raw != "" && domain.ValidOrderStatus(domain.OrderStatus(raw)) {
		order.Status = domain.OrderStatus(raw)
	}
	return domain.OrderCreatedPatch{Kind: domain.KindOrder, Order: order}, nil
}

func normalizeFactoryOrderCreated(env wire.Envelope) (domain.Patch, error) {
	orderID, err := requiredString(env, "factoryOrderId")
	if err != nil {
		return nil, err
	}
	items, err := normalizeItems(env, false)
	if err != nil {
		return nil, err
	}
	order := domain.FactoryOrder{
		ID:           orderID,
		OrderNumber:  str(env.Payload, "orderNumber"),
		DepartmentID: str(env.Payload, "departmentId"),
		Status:       domain.OrderPending,
		Items:        items,
		UpdatedAt:    changedAt(env.Payload),
	}
	return domain.OrderCreatedPatch{Kind: domain.KindFactoryOrder, FactoryOrder: order}, nil
}

func normalizeOrderStatus(env wire.Envelope, kind domain.EntityKind, idField string, status domain.OrderStatus) (domain.Patch, error) {
	orderID, err := requiredString(env, idField)
	if err != nil {
		return nil, err
	}
	return domain.OrderStatusPatch{
		Kind:        kind,
		OrderID:     orderID,
		OrderNumber: str(env.Payload, "orderNumber"),
		BranchName:  str(env.Payload, "branchName"),
		Status:      status,
		ChangedAt:   changedAt(env.Payload),
		Note:        str(env.Payload, "note"),
	}, nil
}

func normalizeTasksAssigned(env wire.Envelope, kind domain.EntityKind, idField string) (domain.Patch, error) {
	orderID, err := requiredString(env, idField)
	if err != nil {
		return nil, err
	}
	items, err := normalizeItems(env, true)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(items))
	for _, item := range items {
		tasks = append(tasks, domain.Task{
			ID:          item.ID,
			OrderID:     orderID,
			Kind:        kind,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Status:      domain.ItemAssigned,
			ChefID:      item.AssigneeID,
		})
	}
	return domain.TasksAssignedPatch{
		Kind:        kind,
		OrderID:     orderID,
		OrderNumber: str(env.Payload, "orderNumber"),
		BranchName:  str(env.Payload, "branchName"),
		Tasks:       tasks,
	}, nil
}

func normalizeItemStatus(env wire.Envelope, kind domain.EntityKind, idField string) (domain.Patch, error) {
	orderID, err := requiredString(env, idField)
	if err != nil {
		return nil, err
	}
	itemID, err := requiredString(env, "itemId")
	if err != nil {
		return nil, err
	}
	raw := str(env.Payload, "status")
	status := domain.ItemStatus(raw)
	if !domain.ValidItemStatus(status) {
		return nil, &ValidationError{Event: env.Name, Field: "status", Reason: fmt.Sprintf("unknown item status %q", raw)}
	}
	return domain.ItemStatusPatch{
		Kind:        kind,
		OrderID:     orderID,
		OrderNumber: str(env.Payload, "orderNumber"),
		ItemID:      itemID,
		Status:      status,
		ChangedAt:   changedAt(env.Payload),
	}, nil
}

func normalizeReturnStatus(env wire.Envelope) (domain.Patch, error) {
	orderID, err := requiredString(env, "orderId")
	if err != nil {
		return nil, err
	}
	returnID, err := requiredString(env, "returnId")
	if err != nil {
		return nil, err
	}
	raw := str(env.Payload, "status")
	status := domain.ReturnStatus(raw)
	if !domain.ValidReturnStatus(status) {
		return nil, &ValidationError{Event: env.Name, Field: "status", Reason: fmt.Sprintf("unknown return status %q", raw)}
	}
	return domain.ReturnStatusPatch{
		OrderID:     orderID,
		OrderNumber: str(env.Payload, "orderNumber"),
		ReturnID:    returnID,
		Status:      status,
	}, nil
}

func normalizeMissingAssignment(env wire.Envelope, kind domain.EntityKind, idField string) (domain.Patch, error) {
	orderID, err := requiredString(env, idField)
	if err != nil {
		return nil, err
	}
	itemID, err := requiredString(env, "itemId")
	if err != nil {
		return nil, err
	}
	return domain.MissingAssignmentPatch{
		Kind:        kind,
		OrderID:     orderID,
		OrderNumber: str(env.Payload, "orderNumber"),
		ItemID:      itemID,
		ProductName: str(env.Payload, "productName"),
	}, nil
}

// normalizeItems reads the items array, applying the defaulting rules:
// absent quantity -> 1, absent unit -> the unknown-unit sentinel, absent
// price -> 0, absent status -> pending. When requireAssignee is set, every
// item must name its assignee.
func normalizeItems(env wire.Envelope, requireAssignee bool) ([]domain.OrderItem, error) {
	raw, _ := env.Payload["items"].([]any)
	if len(raw) == 0 {
		return nil, &ValidationError{Event: env.Name, Field: "items", Reason: "is empty"}
	}
	items := make([]domain.OrderItem, 0, len(raw))
	for i, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, &ValidationError{Event: env.Name, Field: fmt.Sprintf("items[%d]", i), Reason: "is not an object"}
		}
		id := str(fields, "itemId")
		if id == "" {
			id = str(fields, "id")
		}
		if id == "" {
			return nil, &ValidationError{Event: env.Name, Field: fmt.Sprintf("items[%d].itemId", i), Reason: "is required"}
		}
		assignee := str(fields, "assigneeId")
		if assignee == "" {
			assignee = str(fields, "chefId")
		}
		if requireAssignee && assignee == "" {
			return nil, &ValidationError{Event: env.Name, Field: fmt.Sprintf("items[%d].assigneeId", i), Reason: "is required"}
		}
		item := domain.OrderItem{
			ID:          id,
			ProductName: str(fields, "productName"),
			Unit:        str(fields, "unit"),
			Quantity:    intField(fields, "quantity", defaultQuantity),
			UnitPrice:   floatField(fields, "unitPrice", 0),
			Status:      domain.ItemPending,
			AssigneeID:  assignee,
		}
		if item.Unit == "" {
			item.Unit = UnknownUnit
		}
		if item.Quantity <= 0 {
			item.Quantity = defaultQuantity
		}
		if raw := str(fields, "status"); raw != "" && domain.ValidItemStatus(domain.ItemStatus(raw)) {
			item.Status = domain.ItemStatus(raw)
		}
		items = append(items, item)
	}
	return items, nil
}

func payloadOrderStatus(env wire.Envelope) (domain.OrderStatus, error) {
	raw := str(env.Payload, "status")
	status := domain.OrderStatus(raw)
	if !domain.ValidOrderStatus(status) {
		return "", &ValidationError{Event: env.Name, Field: "status", Reason: fmt.Sprintf("unknown order status %q", raw)}
	}
	return status, nil
}

func requiredString(env wire.Envelope, field string) (string, error) {
	value := str(env.Payload, field)
	if value == "" {
		return "", &ValidationError{Event: env.Name, Field: field, Reason: "is required"}
	}
	return value, nil
}

func str(payload map[string]any, field string) string {
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

func intField(payload map[string]any, field string, fallback int) int {
	if value, ok := payload[field].(float64); ok {
		return int(value)
	}
	return fallback
}

func floatField(payload map[string]any, field string, fallback float64) float64 {
	if value, ok := payload[field].(float64); ok {
		return value
	}
	return fallback
}

// changedAt parses the payload timestamp when present. The zero time is the
// deterministic default so a replayed frame produces an identical patch.
func changedAt(payload map[string]any) time.Time {
	for _, field := range []string{"changedAt", "timestamp"} {
		raw, _ := payload[field].(string)
		if raw == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
