package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/geoindex"
	"github.com/resqnet/backend/internal/models"
	"gorm.io/gorm"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.User{},
		&models.VolunteerProfile{},
		&models.Report{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Name:         fmt.Sprintf("%s user", role),
		Email:        fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		Phone:        "9000000000",
		PasswordHash: "hash",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}
	return user
}

func createVolunteerAt(t *testing.T, db *gorm.DB, lng, lat float64, available bool) *models.User {
	t.Helper()
	user := createUser(t, db, models.UserRoleVolunteer)
	if err := db.Model(user).Updates(map[string]interface{}{
		"location_longitude": lng,
		"location_latitude":  lat,
	}).Error; err != nil {
		t.Fatalf("failed setting location: %v", err)
	}
	profile := &models.VolunteerProfile{UserID: user.ID, Skills: []string{"first aid"}, RadiusKm: 5}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("failed creating profile: %v", err)
	}
	if err := db.Model(profile).Update("availability", available).Error; err != nil {
		t.Fatalf("failed setting availability: %v", err)
	}
	user.Location = geo.NewPoint(lng, lat)
	profile.Availability = available
	user.VolunteerProfile = profile
	return user
}

func createReport(t *testing.T, db *gorm.DB, reporter *models.User, lng, lat float64) *models.Report {
	t.Helper()
	loc := geo.NewPoint(lng, lat)
	report, err := NewReportService(db).Create(context.Background(), reporter.ID, CreateReportInput{
		Text:          "Flooded street, family stuck on roof",
		Location:      &loc,
		EmergencyType: "flood",
		PriorityLevel: "high",
	})
	if err != nil {
		t.Fatalf("failed creating report: %v", err)
	}
	return report
}

func reloadReport(t *testing.T, db *gorm.DB, id uuid.UUID) models.Report {
	t.Helper()
	var report models.Report
	if err := db.First(&report, "id = ?", id).Error; err != nil {
		t.Fatalf("failed reloading report: %v", err)
	}
	return report
}

type recordingIndex struct {
	geoindex.Index
	synced []uuid.UUID
}

func (r *recordingIndex) Sync(ctx context.Context, user *models.User) error {
	r.synced = append(r.synced, user.ID)
	return r.Index.Sync(ctx, user)
}

// failingSyncIndex answers queries from the wrapped index but rejects every Sync.
type failingSyncIndex struct {
	geoindex.Index
	err error
}

func (f *failingSyncIndex) Sync(context.Context, *models.User) error {
	return f.err
}

// fixedIndex returns the same matches for every query.
type fixedIndex struct {
	matches []geoindex.Match
}

func (f *fixedIndex) Nearby(context.Context, geoindex.Query) ([]geoindex.Match, error) {
	return f.matches, nil
}

func (f *fixedIndex) Sync(context.Context, *models.User) error {
	return nil
}
