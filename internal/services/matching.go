package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/geoindex"
	"github.com/resqnet/backend/internal/models"
	"gorm.io/gorm"
)

type Candidate struct {
	Volunteer      *models.User `json:"volunteer"`
	DistanceMeters float64      `json:"distanceMeters"`
}

type MatchingService struct {
	DB              *gorm.DB
	Index           geoindex.Index
	DefaultRadiusKm float64
	MaxResults      int
}

func NewMatchingService(db *gorm.DB, index geoindex.Index, defaultRadiusKm float64, maxResults int) *MatchingService {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = 5
	}
	return &MatchingService{
		DB:              db,
		Index:           index,
		DefaultRadiusKm: defaultRadiusKm,
		MaxResults:      maxResults,
	}
}

// FindNearbyVolunteers returns available volunteers within radiusKm of
// location, nearest first.
func (s *MatchingService) FindNearbyVolunteers(ctx context.Context, location geo.Point, radiusKm float64) ([]Candidate, error) {
	if err := location.Validate(); err != nil {
		return nil, validationError("%v", err)
	}
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm <= 0 {
		return nil, validationError("radiusKm must be a positive number")
	}

	matches, err := s.Index.Nearby(ctx, geoindex.Query{
		Center:       location,
		RadiusMeters: geo.KilometersToMeters(radiusKm),
		Limit:        s.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("querying geo index: %w", err)
	}
	return s.hydrate(ctx, matches)
}

// CandidatesForReport runs the nearby query around a stored report.
func (s *MatchingService) CandidatesForReport(ctx context.Context, reportID uuid.UUID, radiusKm float64) ([]Candidate, error) {
	var report models.Report
	if err := s.DB.WithContext(ctx).First(&report, "id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("report not found")
		}
		return nil, fmt.Errorf("loading report: %w", err)
	}
	if radiusKm <= 0 {
		radiusKm = s.DefaultRadiusKm
	}
	return s.FindNearbyVolunteers(ctx, report.Location, radiusKm)
}

func (s *MatchingService) hydrate(ctx context.Context, matches []geoindex.Match) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(matches))
	if len(matches) == 0 {
		return candidates, nil
	}

	ids := make([]uuid.UUID, len(matches))
	for i, m := range matches {
		ids[i] = m.VolunteerID
	}

	var users []models.User
	if err := s.DB.WithContext(ctx).
		Preload("VolunteerProfile").
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("loading volunteers: %w", err)
	}

	byID := make(map[uuid.UUID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	for _, m := range matches {
		user, ok := byID[m.VolunteerID]
		// An external index can lag behind the users table, so the filter is
		// applied again on the loaded rows.
		if !ok || !user.IsVolunteer() || !user.VolunteerProfile.Availability {
			continue
		}
		candidates = append(candidates, Candidate{Volunteer: user, DistanceMeters: m.DistanceMeters})
	}
	return candidates, nil
}
