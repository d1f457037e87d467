package services

import (
	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/models"
	"gorm.io/gorm"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uuid.UUID
	Role models.UserRole
}

func ActorFromUser(user *models.User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.UserRoleAdmin
}

type transitionRule struct {
	from  models.ReportStatus
	to    models.ReportStatus
	roles []models.UserRole
	// ownerOnly restricts volunteers to reports assigned to them.
	ownerOnly bool
}

var transitionRules = []transitionRule{
	{from: models.ReportStatusPending, to: models.ReportStatusAssigned, roles: []models.UserRole{models.UserRoleAdmin}},
	{from: models.ReportStatusPending, to: models.ReportStatusResolved, roles: []models.UserRole{models.UserRoleAdmin}},
	{from: models.ReportStatusAssigned, to: models.ReportStatusResolved, roles: []models.UserRole{models.UserRoleAdmin, models.UserRoleVolunteer}, ownerOnly: true},
}

func (r transitionRule) allows(actor Actor, report *models.Report) bool {
	permitted := false
	for _, role := range r.roles {
		if role == actor.Role {
			permitted = true
			break
		}
	}
	if !permitted {
		return false
	}
	if r.ownerOnly && actor.Role == models.UserRoleVolunteer {
		return isAssignedTo(report, actor.ID)
	}
	return true
}

func findTransitionRule(from, to models.ReportStatus) (transitionRule, bool) {
	for _, rule := range transitionRules {
		if rule.from == from && rule.to == to {
			return rule, true
		}
	}
	return transitionRule{}, false
}

// canReach reports whether some rule lets actor move any report into target.
// It decides whether a same-status request counts as an idempotent success.
func canReach(actor Actor, report *models.Report, target models.ReportStatus) bool {
	for _, rule := range transitionRules {
		if rule.to == target && rule.allows(actor, report) {
			return true
		}
	}
	return false
}

func isAssignedTo(report *models.Report, volunteerID uuid.UUID) bool {
	return report.AssignedVolunteerID != nil && *report.AssignedVolunteerID == volunteerID
}

// scopeReports narrows a report query to what actor may see.
func scopeReports(query *gorm.DB, actor Actor) *gorm.DB {
	switch actor.Role {
	case models.UserRoleAdmin:
		return query
	case models.UserRoleVolunteer:
		return query.Where("reports.assigned_volunteer_id = ?", actor.ID)
	default:
		return query.Where("reports.reporter_id = ?", actor.ID)
	}
}

func canViewReport(actor Actor, report *models.Report) bool {
	switch actor.Role {
	case models.UserRoleAdmin:
		return true
	case models.UserRoleVolunteer:
		return isAssignedTo(report, actor.ID)
	default:
		return report.ReporterID == actor.ID
	}
}
