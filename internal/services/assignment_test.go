package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/models"
)

func TestAssignmentService_Scenario(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewAssignmentService(db)
	ctx := context.Background()

	admin := createUser(t, db, models.UserRoleAdmin)
	reporter := createUser(t, db, models.UserRoleUser)
	v := createVolunteerAt(t, db, 77.60, 12.98, true)
	w := createVolunteerAt(t, db, 77.61, 12.99, true)
	report := createReport(t, db, reporter, 77.59, 12.97)

	result, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, &v.ID)
	if err != nil {
		t.Fatalf("admin assign failed: %v", err)
	}
	if result.Report.Status != models.ReportStatusAssigned {
		t.Fatalf("expected assigned, got %s", result.Report.Status)
	}
	if result.Report.AssignedVolunteerID == nil || *result.Report.AssignedVolunteerID != v.ID {
		t.Fatalf("expected report assigned to %s", v.ID)
	}
	if !result.Changed || result.From != models.ReportStatusPending {
		t.Fatalf("unexpected result metadata %+v", result)
	}

	_, err = svc.Transition(ctx, ActorFromUser(w), report.ID, models.ReportStatusResolved, nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for other volunteer, got %v", err)
	}
	if got := reloadReport(t, db, report.ID).Status; got != models.ReportStatusAssigned {
		t.Fatalf("expected status to remain assigned, got %s", got)
	}

	result, err = svc.Transition(ctx, ActorFromUser(v), report.ID, models.ReportStatusResolved, nil)
	if err != nil {
		t.Fatalf("volunteer resolve failed: %v", err)
	}
	if result.Report.Status != models.ReportStatusResolved {
		t.Fatalf("expected resolved, got %s", result.Report.Status)
	}
	if result.Report.ResolvedAt == nil {
		t.Fatal("expected resolvedAt to be stamped")
	}

	var profile models.VolunteerProfile
	if err := db.First(&profile, "user_id = ?", v.ID).Error; err != nil {
		t.Fatalf("failed loading profile: %v", err)
	}
	if profile.TotalCasesResolved != 1 {
		t.Fatalf("expected 1 resolved case, got %d", profile.TotalCasesResolved)
	}
}

func TestAssignmentService_Rules(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewAssignmentService(db)
	ctx := context.Background()

	admin := createUser(t, db, models.UserRoleAdmin)
	reporter := createUser(t, db, models.UserRoleUser)
	v := createVolunteerAt(t, db, 77.60, 12.98, true)
	w := createVolunteerAt(t, db, 77.61, 12.99, true)

	t.Run("user can never transition", func(t *testing.T) {
		report := createReport(t, db, reporter, 77.59, 12.97)
		for _, target := range []models.ReportStatus{models.ReportStatusAssigned, models.ReportStatusResolved, models.ReportStatusPending} {
			_, err := svc.Transition(ctx, ActorFromUser(reporter), report.ID, target, &v.ID)
			if !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected forbidden for %s, got %v", target, err)
			}
		}
		if got := reloadReport(t, db, report.ID).Status; got != models.ReportStatusPending {
			t.Fatalf("expected pending, got %s", got)
		}
	})

	t.Run("volunteer cannot touch unassigned report", func(t *testing.T) {
		report := createReport(t, db, reporter, 77.59, 12.97)
		_, err := svc.Transition(ctx, ActorFromUser(v), report.ID, models.ReportStatusResolved, nil)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("volunteer may only resolve", func(t *testing.T) {
		report := createReport(t, db, reporter, 77.59, 12.97)
		if _, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, &v.ID); err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		_, err := svc.Transition(ctx, ActorFromUser(v), report.ID, models.ReportStatusPending, nil)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("unknown status is a validation error", func(t *testing.T) {
		report := createReport(t, db, reporter, 77.59, 12.97)
		_, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatus("closed"), nil)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("missing report is not found", func(t *testing.T) {
		_, err := svc.Transition(ctx, ActorFromUser(admin), uuid.New(), models.ReportStatusResolved, nil)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("assign requires a volunteer", func(t *testing.T) {
		report := createReport(t, db, reporter, 77.59, 12.97)

		_, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, nil)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error without volunteer id, got %v", err)
		}

		missing := uuid.New()
		_, err = svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, &missing)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found for unknown volunteer, got %v", err)
		}

		_, err = svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, &reporter.ID)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for non-volunteer, got %v", err)
		}
	})

	t.Run("admin resolve is idempotent", func(t *testing.T) {
		report := createReport(t, db, reporter, 77.59, 12.97)
		first, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusResolved, nil)
		if err != nil {
			t.Fatalf("first resolve failed: %v", err)
		}
		if !first.Changed {
			t.Fatal("expected first resolve to change state")
		}
		second, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusResolved, nil)
		if err != nil {
			t.Fatalf("second resolve failed: %v", err)
		}
		if second.Changed || second.Report.Status != models.ReportStatusResolved {
			t.Fatalf("expected no-op success, got %+v", second)
		}
	})

	t.Run("resolved cannot be reassigned", func(t *testing.T) {
		report := createReport(t, db, reporter, 77.59, 12.97)
		if _, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusResolved, nil); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		_, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, &v.ID)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("assigned report keeps its volunteer", func(t *testing.T) {
		report := createReport(t, db, reporter, 77.59, 12.97)
		if _, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, &v.ID); err != nil {
			t.Fatalf("assign failed: %v", err)
		}

		same, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, &v.ID)
		if err != nil || same.Changed {
			t.Fatalf("expected same-volunteer assign to be a no-op, got %+v, %v", same, err)
		}

		_, err = svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusAssigned, &w.ID)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict on reassignment, got %v", err)
		}

		_, err = svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusPending, nil)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict on unassign, got %v", err)
		}
	})
}

func TestAssignmentService_CommitDetectsStaleStatus(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewAssignmentService(db)
	ctx := context.Background()

	admin := createUser(t, db, models.UserRoleAdmin)
	reporter := createUser(t, db, models.UserRoleUser)
	report := createReport(t, db, reporter, 77.59, 12.97)

	// Another writer resolves the report between load and commit.
	if _, err := svc.Transition(ctx, ActorFromUser(admin), report.ID, models.ReportStatusResolved, nil); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	_, err := svc.commit(ctx, report, models.ReportStatusPending, models.ReportStatusResolved, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for stale status, got %v", err)
	}

	if err := db.Delete(&models.Report{}, "id = ?", report.ID).Error; err != nil {
		t.Fatalf("failed deleting report: %v", err)
	}
	_, err = svc.commit(ctx, report, models.ReportStatusResolved, models.ReportStatusResolved, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for vanished report, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	err := forbiddenError("nope %d", 1)
	if !errors.Is(err, ErrForbidden) || errors.Is(err, ErrConflict) {
		t.Fatalf("unexpected kind for %v", err)
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Message != "nope 1" {
		t.Fatalf("expected message to survive, got %v", err)
	}
}
