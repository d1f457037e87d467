package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/models"
	"gorm.io/gorm"
)

type AssignmentService struct {
	DB *gorm.DB
}

func NewAssignmentService(db *gorm.DB) *AssignmentService {
	return &AssignmentService{DB: db}
}

// TransitionResult describes a state change. Changed is false for an
// idempotent repeat of the current status.
type TransitionResult struct {
	Report  *models.Report
	From    models.ReportStatus
	Changed bool
}

// Transition moves a report to target on behalf of actor. volunteerID is
// required when an admin assigns a pending report and ignored otherwise.
func (s *AssignmentService) Transition(ctx context.Context, actor Actor, reportID uuid.UUID, target models.ReportStatus, volunteerID *uuid.UUID) (*TransitionResult, error) {
	var report models.Report
	if err := s.DB.WithContext(ctx).First(&report, "id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("report not found")
		}
		return nil, fmt.Errorf("loading report: %w", err)
	}

	switch actor.Role {
	case models.UserRoleAdmin:
	case models.UserRoleVolunteer:
		if !isAssignedTo(&report, actor.ID) {
			return nil, forbiddenError("report is not assigned to you")
		}
		if target != models.ReportStatusResolved {
			return nil, forbiddenError("volunteers may only resolve reports")
		}
	default:
		return nil, forbiddenError("insufficient permissions to change report status")
	}

	if !target.Valid() {
		return nil, validationError("unknown status %q", target)
	}

	from := report.Status
	if target == from && canReach(actor, &report, target) {
		if target == models.ReportStatusAssigned && volunteerID != nil && !isAssignedTo(&report, *volunteerID) {
			return nil, conflictError("report is already assigned to another volunteer")
		}
		return &TransitionResult{Report: &report, From: from}, nil
	}

	rule, ok := findTransitionRule(from, target)
	if !ok {
		return nil, conflictError("cannot move report from %s to %s", from, target)
	}
	if !rule.allows(actor, &report) {
		return nil, forbiddenError("insufficient permissions to change report status")
	}

	var assignee *uuid.UUID
	if target == models.ReportStatusAssigned {
		if volunteerID == nil || *volunteerID == uuid.Nil {
			return nil, validationError("volunteerId is required to assign a report")
		}
		var volunteer models.User
		if err := s.DB.WithContext(ctx).First(&volunteer, "id = ?", *volunteerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, notFoundError("volunteer not found")
			}
			return nil, fmt.Errorf("loading volunteer: %w", err)
		}
		if volunteer.Role != models.UserRoleVolunteer {
			return nil, validationError("user %s is not a volunteer", volunteer.ID)
		}
		assignee = volunteerID
	}

	updated, err := s.commit(ctx, &report, from, target, assignee)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Report: updated, From: from, Changed: true}, nil
}

// commit applies the transition only if the row still has the observed
// status. Losing the race yields Conflict.
func (s *AssignmentService) commit(ctx context.Context, report *models.Report, observed, target models.ReportStatus, assignee *uuid.UUID) (*models.Report, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     target,
		"updated_at": now,
	}
	if assignee != nil {
		updates["assigned_volunteer_id"] = *assignee
	}
	if target == models.ReportStatusResolved {
		updates["resolved_at"] = now
	}

	var updated models.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Report{}).
			Where("id = ? AND status = ?", report.ID, observed).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("updating report status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Report{}).Where("id = ?", report.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("checking report: %w", err)
			}
			if count == 0 {
				return notFoundError("report not found")
			}
			return conflictError("report status changed concurrently")
		}

		if target == models.ReportStatusResolved {
			credited := report.AssignedVolunteerID
			if assignee != nil {
				credited = assignee
			}
			if credited != nil {
				if err := tx.Model(&models.VolunteerProfile{}).
					Where("user_id = ?", *credited).
					UpdateColumn("total_cases_resolved", gorm.Expr("total_cases_resolved + 1")).Error; err != nil {
					return fmt.Errorf("crediting volunteer: %w", err)
				}
			}
		}

		return tx.First(&updated, "id = ?", report.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
