// Package geo holds the spherical geometry used by volunteer matching.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters matches the radius MongoDB uses for spherical $geoNear,
// so the SQL and Mongo indexes agree on distances.
const EarthRadiusMeters = 6378.1 * 1000

var ErrInvalidPoint = errors.New("invalid geographic point")

// Point is a (longitude, latitude) pair in degrees. It is stored as two
// columns and serialised as a GeoJSON Point.
type Point struct {
	Longitude float64 `gorm:"type:double precision;not null;default:0"`
	Latitude  float64 `gorm:"type:double precision;not null;default:0"`
}

func NewPoint(lng, lat float64) Point {
	return Point{Longitude: lng, Latitude: lat}
}

func (p Point) Validate() error {
	if math.IsNaN(p.Longitude) || math.IsNaN(p.Latitude) {
		return ErrInvalidPoint
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidPoint, p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidPoint, p.Latitude)
	}
	return nil
}

// IsOrigin reports whether the point is the unset default (0, 0).
func (p Point) IsOrigin() bool {
	return p.Longitude == 0 && p.Latitude == 0
}

// Coordinates returns the GeoJSON ordering [lng, lat].
func (p Point) Coordinates() [2]float64 {
	return [2]float64{p.Longitude, p.Latitude}
}

type geoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func (p Point) MarshalJSON() ([]byte, error) {
	c := p.Coordinates()
	return json.Marshal(geoJSONPoint{Type: "Point", Coordinates: c[:]})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw geoJSONPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "" && raw.Type != "Point" {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidPoint, raw.Type)
	}
	if len(raw.Coordinates) != 2 {
		return fmt.Errorf("%w: expected [longitude, latitude]", ErrInvalidPoint)
	}
	p.Longitude = raw.Coordinates[0]
	p.Latitude = raw.Coordinates[1]
	return nil
}
