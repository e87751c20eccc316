package engine

import (
	"strings"

	"planboard/internal/domain"
)

const roleHybrid = "hybrid"

var defaultAssigneeRoles = map[domain.AssigneeType][]string{
	domain.AssigneeDistributor: {"distribution", roleHybrid},
	domain.AssigneeProducer:    {"production", roleHybrid},
	domain.AssigneeSupplier:    {"supply", roleHybrid},
	domain.AssigneePurchaser:   {"purchase", roleHybrid},
	domain.AssigneeTrainer:     {"training", roleHybrid},
	domain.AssigneeRnD:         {"research", roleHybrid},
}

func (e Engine) organizations() []domain.Organization {
	if e.Config == nil {
		return nil
	}
	return e.Config.Organizations
}

// compatibleRoles returns nil when the assignee type is unrestricted.
func (e Engine) compatibleRoles(t domain.AssigneeType) []string {
	if e.Config != nil && len(e.Config.AssigneeRoles) > 0 {
		return e.Config.AssigneeRoles[string(t)]
	}
	return defaultAssigneeRoles[t]
}

// AssigneeCatalog lists organisations that can fill an assignee type.
// An empty type or an unrestricted one returns the whole catalog.
func (e Engine) AssigneeCatalog(t domain.AssigneeType) []domain.Organization {
	orgs := e.organizations()
	roles := e.compatibleRoles(t)
	if t == "" || roles == nil {
		return append([]domain.Organization(nil), orgs...)
	}
	var out []domain.Organization
	for _, org := range orgs {
		if intersects(org.Roles, roles) {
			out = append(out, org)
		}
	}
	return out
}

// ResolveAssignee maps free text onto a catalog entry by id or name, falling
// back to the trimmed text when nothing compatible matches.
func (e Engine) ResolveAssignee(t domain.AssigneeType, text string) string {
	text = strings.TrimSpace(text)
	for _, org := range e.AssigneeCatalog(t) {
		if strings.EqualFold(org.ID, text) || strings.EqualFold(org.Name, text) {
			return org.Name
		}
	}
	return text
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}
