package geoindex

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/models"
	"gorm.io/gorm"
)

// SQLIndex reads volunteer points straight from the users table. A
// bounding-box prefilter runs in SQL and the exact great-circle check runs
// here, so it works the same on Postgres and SQLite.
type SQLIndex struct {
	DB *gorm.DB
}

func NewSQLIndex(db *gorm.DB) *SQLIndex {
	return &SQLIndex{DB: db}
}

type volunteerPointRow struct {
	ID                uuid.UUID
	LocationLongitude float64
	LocationLatitude  float64
}

func (s *SQLIndex) Nearby(ctx context.Context, q Query) ([]Match, error) {
	box := geo.BoundingBoxFor(q.Center, q.RadiusMeters)

	query := s.DB.WithContext(ctx).
		Table("users").
		Select("users.id, users.location_longitude, users.location_latitude").
		Joins("JOIN volunteer_profiles ON volunteer_profiles.user_id = users.id AND volunteer_profiles.deleted_at IS NULL").
		Where("users.deleted_at IS NULL").
		Where("users.role = ?", models.UserRoleVolunteer).
		Where("volunteer_profiles.availability = ?", true).
		Where("users.location_latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if !box.FullLongitude {
		query = query.Where("users.location_longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}

	var rows []volunteerPointRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying volunteer locations: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		distance := geo.DistanceMeters(q.Center, geo.NewPoint(row.LocationLongitude, row.LocationLatitude))
		if distance > q.RadiusMeters {
			continue
		}
		matches = append(matches, Match{VolunteerID: row.ID, DistanceMeters: distance})
	}

	sortMatches(matches)
	if limit := q.EffectiveLimit(); len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Sync is a no-op: the users table is the index.
func (s *SQLIndex) Sync(context.Context, *models.User) error {
	return nil
}

func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].DistanceMeters != matches[j].DistanceMeters {
			return matches[i].DistanceMeters < matches[j].DistanceMeters
		}
		return matches[i].VolunteerID.String() < matches[j].VolunteerID.String()
	})
}
