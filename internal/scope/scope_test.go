package scope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/wire"
)

func env(name string, payload map[string]any) wire.Envelope {
	return wire.Envelope{Name: name, Key: "evt", Payload: payload}
}

func TestAdminSeesEverything(t *testing.T) {
	admin := domain.Session{UserID: "u1", Role: domain.RoleAdmin}
	for _, name := range wire.EventNames() {
		require.True(t, Visible(env(name, map[string]any{}), admin), "admin should see %s", name)
	}
}

func TestBranchOnlySeesItsOwnBranch(t *testing.T) {
	branch := domain.Session{UserID: "u2", Role: domain.RoleBranch, BranchID: "b1"}

	require.True(t, Visible(env(wire.EventOrderCreated, map[string]any{"branchId": "b1"}), branch))
	require.False(t, Visible(env(wire.EventOrderCreated, map[string]any{"branchId": "b2"}), branch))
	// Factory traffic never reaches branch sessions.
	require.False(t, Visible(env(wire.EventFactoryOrderCreated, map[string]any{"branchId": "b1"}), branch))
	require.False(t, Visible(env(wire.EventMissingAssignments, map[string]any{"branchId": "b1"}), branch))
}

func TestBranchSeesMinimalOrderFrames(t *testing.T) {
	branch := domain.Session{UserID: "u2", Role: domain.RoleBranch, BranchID: "b1"}

	// The wire contract only guarantees branchName on order events; a frame
	// with no branchId is scoped by the server's room membership alone.
	minimal := map[string]any{
		"orderId":     "O1",
		"orderNumber": "ORD-1",
		"branchName":  "Central",
		"items":       []any{map[string]any{"itemId": "i1"}},
	}
	require.True(t, Visible(env(wire.EventOrderCreated, minimal), branch))
	require.True(t, Visible(env(wire.EventOrderDelivered, map[string]any{
		"orderId": "O1", "orderNumber": "ORD-1", "branchName": "Central",
	}), branch))
}

func TestChefOnlySeesOwnAssignments(t *testing.T) {
	chef := domain.Session{UserID: "u3", Role: domain.RoleChef, ChefID: "c1"}

	mine := map[string]any{
		"items": []any{map[string]any{"itemId": "i1", "assigneeId": "c1"}},
	}
	theirs := map[string]any{
		"items": []any{map[string]any{"itemId": "i1", "assigneeId": "c9"}},
	}
	require.True(t, Visible(env(wire.EventTaskAssigned, mine), chef))
	require.False(t, Visible(env(wire.EventTaskAssigned, theirs), chef))
	require.True(t, Visible(env(wire.EventItemStatusUpdated, map[string]any{"assigneeId": "c1"}), chef))
	require.False(t, Visible(env(wire.EventItemStatusUpdated, map[string]any{"assigneeId": "c9"}), chef))
	require.False(t, Visible(env(wire.EventMissingAssignments, map[string]any{}), chef))
}

func TestChefSeesItemUpdatesWithoutAssigneeInfo(t *testing.T) {
	chef := domain.Session{UserID: "u3", Role: domain.RoleChef, ChefID: "c1"}

	// itemStatusUpdated does not guarantee an assignee on the wire; without
	// one the frame stays visible and dedup/store rules take over.
	require.True(t, Visible(env(wire.EventItemStatusUpdated, map[string]any{
		"orderId": "O1", "itemId": "i1", "status": "completed",
		"orderNumber": "ORD-1", "branchName": "Central",
	}), chef))
	// A chefId identifier is honored the same way as assigneeId.
	require.True(t, Visible(env(wire.EventItemStatusUpdated, map[string]any{"chefId": "c1"}), chef))
	require.False(t, Visible(env(wire.EventItemStatusUpdated, map[string]any{"chefId": "c9"}), chef))
}

func TestProductionDepartmentScope(t *testing.T) {
	prod := domain.Session{UserID: "u4", Role: domain.RoleProduction, DepartmentID: "d1"}

	require.True(t, Visible(env(wire.EventFactoryOrderCreated, map[string]any{"departmentId": "d1"}), prod))
	require.False(t, Visible(env(wire.EventFactoryOrderCreated, map[string]any{"departmentId": "d2"}), prod))
	// Events without a department identifier stay visible to production.
	require.True(t, Visible(env(wire.EventFactoryOrderCreated, map[string]any{}), prod))
	require.True(t, Visible(env(wire.EventMissingAssignments, map[string]any{}), prod))

	unscoped := domain.Session{UserID: "u5", Role: domain.RoleProduction}
	require.True(t, Visible(env(wire.EventFactoryOrderCreated, map[string]any{"departmentId": "d2"}), unscoped))
}

func TestUnknownEventsAreVisibleToNoOne(t *testing.T) {
	admin := domain.Session{UserID: "u1", Role: domain.RoleAdmin}
	require.False(t, Visible(env("orderVaporized", map[string]any{}), admin))
}
