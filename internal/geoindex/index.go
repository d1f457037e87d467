// Package geoindex answers "which available volunteers are within R of P",
// nearest first.
package geoindex

import (
	"context"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/models"
)

// MaxResults bounds every query so downstream hydration stays small.
const MaxResults = 10

// Query selects volunteers around Center. The volunteer-role and
// availability filter is applied by every Index and cannot be relaxed.
type Query struct {
	Center       geo.Point
	RadiusMeters float64
	Limit        int
}

// EffectiveLimit clamps Limit into [1, MaxResults].
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > MaxResults {
		return MaxResults
	}
	return q.Limit
}

type Match struct {
	VolunteerID    uuid.UUID `json:"volunteerId"`
	DistanceMeters float64   `json:"distanceMeters"`
}

type Index interface {
	// Nearby returns matches in non-decreasing distance order. No matches is
	// an empty slice, not an error.
	Nearby(ctx context.Context, q Query) ([]Match, error)
	// Sync records the user's current location and availability. Users that
	// are not volunteers are removed from the index.
	Sync(ctx context.Context, user *models.User) error
}
