// Package scope decides which pushed events a given session may observe.
// An event outside the viewer's scope is expected steady-state traffic, not
// an error; callers drop it silently.
package scope

import (
	"strings"

	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/wire"
)

type rule struct {
	roles            map[domain.Role]bool
	branchScoped     bool
	chefScoped       bool
	departmentScoped bool
}

var allRoles = map[domain.Role]bool{
	domain.RoleAdmin:      true,
	domain.RoleBranch:     true,
	domain.RoleChef:       true,
	domain.RoleProduction: true,
}

var backOffice = map[domain.Role]bool{
	domain.RoleAdmin:      true,
	domain.RoleProduction: true,
}

var rules = map[string]rule{
	wire.EventOrderCreated:        {roles: allRoles, branchScoped: true},
	wire.EventOrderConfirmed:      {roles: allRoles, branchScoped: true},
	wire.EventOrderStatusUpdated:  {roles: allRoles, branchScoped: true},
	wire.EventTaskAssigned:        {roles: allRoles, branchScoped: true, chefScoped: true},
	wire.EventItemStatusUpdated:   {roles: allRoles, branchScoped: true, chefScoped: true},
	wire.EventOrderCompleted:      {roles: allRoles, branchScoped: true},
	wire.EventOrderShipped:        {roles: allRoles, branchScoped: true},
	wire.EventOrderDelivered:      {roles: allRoles, branchScoped: true},
	wire.EventReturnStatusUpdated: {roles: allRoles, branchScoped: true},
	wire.EventMissingAssignments:  {roles: backOffice, departmentScoped: true},

	wire.EventFactoryOrderCreated: {roles: backOffice, departmentScoped: true},
	wire.EventFactoryTaskAssigned: {
		roles: map[domain.Role]bool{
			domain.RoleAdmin:      true,
			domain.RoleProduction: true,
			domain.RoleChef:       true,
		},
		chefScoped:       true,
		departmentScoped: true,
	},
	wire.EventFactoryItemStatusUpdated: {
		roles: map[domain.Role]bool{
			domain.RoleAdmin:      true,
			domain.RoleProduction: true,
			domain.RoleChef:       true,
		},
		chefScoped:       true,
		departmentScoped: true,
	},
	wire.EventFactoryOrderCompleted: {roles: backOffice, departmentScoped: true},
}

// Visible reports whether the session is authorized to observe the event.
// Admin always passes the scope checks. For narrower roles the server's room
// membership (joinRoom) is the primary gate; the payload's organizational
// identifiers narrow visibility further only when the payload carries them,
// since the wire contract does not guarantee them on every event.
func Visible(env wire.Envelope, s domain.Session) bool {
	r, ok := rules[env.Name]
	if !ok {
		return false
	}
	if !r.roles[s.Role] {
		return false
	}
	switch s.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleBranch:
		if !r.branchScoped {
			return true
		}
		branchID := payloadString(env.Payload, "branchId")
		return branchID == "" || branchID == s.BranchID
	case domain.RoleChef:
		if !r.chefScoped {
			return true
		}
		return assigneeMatches(env.Payload, s.ChefID)
	case domain.RoleProduction:
		if !r.departmentScoped || s.DepartmentID == "" {
			return true
		}
		dept := payloadString(env.Payload, "departmentId")
		return dept == "" || dept == s.DepartmentID
	}
	return false
}

func payloadString(payload map[string]any, field string) string {
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

// assigneeMatches looks for the chef's identity either on the payload itself
// or on any of its items. A payload carrying no assignee identifiers at all
// stays visible; one carrying only foreign assignees does not.
func assigneeMatches(payload map[string]any, chefID string) bool {
	if chefID == "" {
		return false
	}
	found := false
	for _, field := range []string{"assigneeId", "chefId"} {
		if v := payloadString(payload, field); v != "" {
			if v == chefID {
				return true
			}
			found = true
		}
	}
	items, _ := payload["items"].([]any)
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range []string{"assigneeId", "chefId"} {
			if v := payloadString(item, field); v != "" {
				if v == chefID {
					return true
				}
				found = true
			}
		}
	}
	return !found
}
