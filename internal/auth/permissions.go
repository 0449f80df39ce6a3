package auth

import (
	"sync"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
)

// Action is something a principal may attempt.
type Action string

const (
	ActionCreate          Action = "create"
	ActionView            Action = "view"
	ActionEdit            Action = "edit"
	ActionDelete          Action = "delete"
	ActionViewAll         Action = "view_all"
	ActionFinalize        Action = "finalize"
	ActionManageSites     Action = "manage_sites"
	ActionManageSuppliers Action = "manage_suppliers"
	ActionViewAudit       Action = "view_audit"
)

// AllRoles lists every role.
var AllRoles = []models.Role{
	models.RoleSuperAdmin, models.RoleAdmin, models.RoleManager,
	models.RoleUser, models.RoleViewer, models.RolePricingTeam,
}

// DefaultGrants are the role-wide grants. Owner-scoped access (create, view
// and edit of one's own RFQs) is granted to every role and is not listed.
var DefaultGrants = map[models.Role][]Action{
	models.RoleSuperAdmin:  {ActionViewAll, ActionEdit, ActionDelete, ActionFinalize, ActionManageSites, ActionManageSuppliers, ActionViewAudit},
	models.RoleAdmin:       {ActionViewAll, ActionEdit, ActionDelete, ActionFinalize, ActionManageSites, ActionManageSuppliers, ActionViewAudit},
	models.RolePricingTeam: {ActionViewAll, ActionEdit, ActionFinalize, ActionManageSuppliers},
}

// Gate answers permission questions. Role grants are cached behind an
// RWMutex so they can be replaced at runtime.
type Gate struct {
	sync.RWMutex
	grants map[models.Role]map[Action]bool
}

// NewGate builds a gate seeded with DefaultGrants.
func NewGate() *Gate {
	g := &Gate{}
	g.SetGrants(DefaultGrants)
	return g
}

// SetGrants replaces the role-wide grant table.
func (g *Gate) SetGrants(grants map[models.Role][]Action) {
	data := make(map[models.Role]map[Action]bool, len(grants))
	for role, actions := range grants {
		data[role] = make(map[Action]bool, len(actions))
		for _, a := range actions {
			data[role][a] = true
		}
	}
	g.Lock()
	g.grants = data
	g.Unlock()
}

// HasGrant reports whether role holds action for every RFQ.
func (g *Gate) HasGrant(role models.Role, action Action) bool {
	g.RLock()
	defer g.RUnlock()
	return g.grants[role][action]
}

func knownRole(role models.Role) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CanPerform reports whether p may perform action, on rfq when the action
// concerns one.
func (g *Gate) CanPerform(p *models.Principal, action Action, rfq *models.RFQ) bool {
	if p == nil || !knownRole(p.Role) {
		return false
	}
	owns := rfq != nil && rfq.OwnerID != "" && rfq.OwnerID == p.UserID

	switch action {
	case ActionCreate:
		return true
	case ActionView:
		return owns || g.HasGrant(p.Role, ActionViewAll)
	case ActionEdit, ActionDelete:
		return owns || g.HasGrant(p.Role, action)
	default:
		return g.HasGrant(p.Role, action)
	}
}

// Authorize is CanPerform as an error: Unauthenticated for a nil principal,
// Forbidden for a denial.
func (g *Gate) Authorize(p *models.Principal, action Action, rfq *models.RFQ) error {
	if p == nil {
		return apperr.Unauthenticated()
	}
	if !g.CanPerform(p, action, rfq) {
		return apperr.Forbidden(string(action))
	}
	return nil
}
