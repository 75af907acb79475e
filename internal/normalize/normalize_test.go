package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/wire"
)

func env(name string, payload map[string]any) wire.Envelope {
	return wire.Envelope{Name: name, Key: "evt_1", Payload: payload}
}

func TestOrderCreatedAppliesDefaults(t *testing.T) {
	patch, err := Normalize(env(wire.EventOrderCreated, map[string]any{
		"orderId":     "O1",
		"orderNumber": "ORD-1",
		"branchName":  "Central",
		"items": []any{
			map[string]any{"itemId": "i1", "productName": "Rye loaf"},
			map[string]any{"itemId": "i2", "quantity": float64(3), "unit": "tray", "unitPrice": 2.5},
		},
	}))
	require.NoError(t, err)
	created, ok := patch.(domain.OrderCreatedPatch)
	require.True(t, ok)
	require.Equal(t, domain.KindOrder, created.Kind)
	require.Equal(t, domain.OrderPending, created.Order.Status)
	require.Len(t, created.Order.Items, 2)

	first := created.Order.Items[0]
	require.Equal(t, 1, first.Quantity)
	require.Equal(t, UnknownUnit, first.Unit)
	require.Equal(t, 0.0, first.UnitPrice)
	require.Equal(t, domain.ItemPending, first.Status)

	second := created.Order.Items[1]
	require.Equal(t, 3, second.Quantity)
	require.Equal(t, "tray", second.Unit)
	require.Equal(t, 2.5, second.UnitPrice)
}

func TestNormalizeNeverMutatesTheRawPayload(t *testing.T) {
	item := map[string]any{"itemId": "i1"}
	payload := map[string]any{
		"orderId":     "O1",
		"orderNumber": "ORD-1",
		"branchName":  "Central",
		"items":       []any{item},
	}
	_, err := Normalize(env(wire.EventOrderCreated, payload))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"itemId": "i1"}, item)
	require.NotContains(t, payload, "status")
}

func TestLifecycleEventNamesMapToStatuses(t *testing.T) {
	cases := []struct {
		event  string
		status domain.OrderStatus
	}{
		{wire.EventOrderCompleted, domain.OrderCompleted},
		{wire.EventOrderShipped, domain.OrderInTransit},
		{wire.EventOrderDelivered, domain.OrderDelivered},
	}
	for _, tc := range cases {
		patch, err := Normalize(env(tc.event, map[string]any{
			"orderId":     "O1",
			"orderNumber": "ORD-1",
			"branchName":  "Central",
			"status":      "ignored-by-name-mapped-events",
		}))
		require.NoError(t, err, tc.event)
		statusPatch, ok := patch.(domain.OrderStatusPatch)
		require.True(t, ok, tc.event)
		require.Equal(t, tc.status, statusPatch.Status, tc.event)
	}
}

func TestOrderConfirmedRequiresAnAgreeingStatus(t *testing.T) {
	payload := func(status string) map[string]any {
		return map[string]any{
			"orderId":     "O1",
			"orderNumber": "ORD-1",
			"branchName":  "Central",
			"status":      status,
		}
	}

	patch, err := Normalize(env(wire.EventOrderConfirmed, payload("approved")))
	require.NoError(t, err)
	require.Equal(t, domain.OrderApproved, patch.(domain.OrderStatusPatch).Status)

	for _, status := range []string{"cancelled", "teleported"} {
		_, err := Normalize(env(wire.EventOrderConfirmed, payload(status)))
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr), status)
		require.Equal(t, "status", vErr.Field)
	}
}

func TestOrderStatusUpdatedRejectsUnknownStatus(t *testing.T) {
	_, err := Normalize(env(wire.EventOrderStatusUpdated, map[string]any{
		"orderId":     "O1",
		"orderNumber": "ORD-1",
		"branchName":  "Central",
		"status":      "teleported",
	}))
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Equal(t, "status", vErr.Field)
}

func TestTaskAssignedRequiresAssignees(t *testing.T) {
	payload := map[string]any{
		"orderId":     "O1",
		"orderNumber": "ORD-1",
		"branchName":  "Central",
		"items": []any{
			map[string]any{"itemId": "i1", "assigneeId": "c1", "productName": "Baguette", "quantity": float64(4)},
		},
	}
	patch, err := Normalize(env(wire.EventTaskAssigned, payload))
	require.NoError(t, err)
	tasks, ok := patch.(domain.TasksAssignedPatch)
	require.True(t, ok)
	require.Len(t, tasks.Tasks, 1)
	require.Equal(t, "c1", tasks.Tasks[0].ChefID)
	require.Equal(t, domain.ItemAssigned, tasks.Tasks[0].Status)
	require.Equal(t, "O1", tasks.Tasks[0].OrderID)

	payload["items"] = []any{map[string]any{"itemId": "i1"}}
	_, err = Normalize(env(wire.EventTaskAssigned, payload))
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
}

func TestItemStatusParsesTimestamp(t *testing.T) {
	patch, err := Normalize(env(wire.EventItemStatusUpdated, map[string]any{
		"orderId":     "O1",
		"itemId":      "i1",
		"status":      "in_progress",
		"orderNumber": "ORD-1",
		"branchName":  "Central",
		"changedAt":   "2026-08-30T10:15:00Z",
	}))
	require.NoError(t, err)
	item, ok := patch.(domain.ItemStatusPatch)
	require.True(t, ok)
	require.Equal(t, domain.ItemInProgress, item.Status)
	require.Equal(t, time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC), item.ChangedAt)
}

func TestItemStatusDefaultsToZeroTime(t *testing.T) {
	patch, err := Normalize(env(wire.EventItemStatusUpdated, map[string]any{
		"orderId":     "O1",
		"itemId":      "i1",
		"status":      "completed",
		"orderNumber": "ORD-1",
		"branchName":  "Central",
	}))
	require.NoError(t, err)
	require.True(t, patch.(domain.ItemStatusPatch).ChangedAt.IsZero())
}

func TestFactoryEventsNormalizeToFactoryKind(t *testing.T) {
	patch, err := Normalize(env(wire.EventFactoryItemStatusUpdated, map[string]any{
		"factoryOrderId": "F1",
		"itemId":         "i1",
		"status":         "completed",
		"orderNumber":    "FAC-1",
	}))
	require.NoError(t, err)
	item, ok := patch.(domain.ItemStatusPatch)
	require.True(t, ok)
	require.Equal(t, domain.KindFactoryOrder, item.Kind)
	require.Equal(t, domain.EntityKey{Kind: domain.KindFactoryOrder, ID: "F1"}, patch.Key())

	created, err := Normalize(env(wire.EventFactoryOrderCreated, map[string]any{
		"factoryOrderId": "F1",
		"orderNumber":    "FAC-1",
		"items":          []any{map[string]any{"itemId": "i1"}},
	}))
	require.NoError(t, err)
	require.Equal(t, domain.KindFactoryOrder, created.(domain.OrderCreatedPatch).Kind)
}

func TestReturnStatusValidation(t *testing.T) {
	patch, err := Normalize(env(wire.EventReturnStatusUpdated, map[string]any{
		"orderId":     "O1",
		"returnId":    "R1",
		"status":      "approved",
		"orderNumber": "ORD-1",
	}))
	require.NoError(t, err)
	require.Equal(t, domain.ReturnApproved, patch.(domain.ReturnStatusPatch).Status)

	_, err = Normalize(env(wire.EventReturnStatusUpdated, map[string]any{
		"orderId":     "O1",
		"returnId":    "R1",
		"status":      "shredded",
		"orderNumber": "ORD-1",
	}))
	require.Error(t, err)
}

func TestMissingAssignmentsBecomesAlertPatch(t *testing.T) {
	patch, err := Normalize(env(wire.EventMissingAssignments, map[string]any{
		"orderId":     "O1",
		"itemId":      "i1",
		"orderNumber": "ORD-1",
		"productName": "Croissant",
	}))
	require.NoError(t, err)
	alert, ok := patch.(domain.MissingAssignmentPatch)
	require.True(t, ok)
	require.Equal(t, "Croissant", alert.ProductName)
}
