package engine

import (
	"fmt"

	"github.com/bakeline/ordersync/internal/domain"
)

// renderMessage produces the short user-facing text for a notification.
// Rendering proper (localization, layout) is outside this client; this is
// only the fallback wording the sinks receive.
func renderMessage(event string, patch domain.Patch) string {
	switch p := patch.(type) {
	case domain.OrderCreatedPatch:
		if p.Kind == domain.KindFactoryOrder {
			return fmt.Sprintf("factory order %s created", labelFactory(p.FactoryOrder))
		}
		return fmt.Sprintf("order %s created for %s", label(firstNonEmpty(p.Order.OrderNumber, p.Order.ID)), p.Order.BranchName)
	case domain.OrderStatusPatch:
		return fmt.Sprintf("order %s is now %s", label(firstNonEmpty(p.OrderNumber, p.OrderID)), p.Status)
	case domain.TasksAssignedPatch:
		return fmt.Sprintf("%d task(s) assigned on order %s", len(p.Tasks), label(firstNonEmpty(p.OrderNumber, p.OrderID)))
	case domain.ItemStatusPatch:
		return fmt.Sprintf("item %s on order %s is now %s", p.ItemID, label(firstNonEmpty(p.OrderNumber, p.OrderID)), p.Status)
	case domain.ReturnStatusPatch:
		return fmt.Sprintf("return %s on order %s is now %s", p.ReturnID, label(firstNonEmpty(p.OrderNumber, p.OrderID)), p.Status)
	case domain.MissingAssignmentPatch:
		return fmt.Sprintf("item %s (%s) on order %s has no assignee", p.ItemID, p.ProductName, label(firstNonEmpty(p.OrderNumber, p.OrderID)))
	}
	return event
}

func label(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func labelFactory(o domain.FactoryOrder) string {
	return label(firstNonEmpty(o.OrderNumber, o.ID))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
