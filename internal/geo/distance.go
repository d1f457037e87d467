package geo

import "math"

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DistanceMeters returns the great-circle distance between a and b using the
// haversine formula.
func DistanceMeters(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// KilometersToMeters converts a search radius in km to meters.
func KilometersToMeters(km float64) float64 {
	return km * 1000
}

// BoundingBox is a lat/lng rectangle that fully contains a spherical cap.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	// FullLongitude is set when the cap touches a pole or crosses the
	// antimeridian; callers must not filter on longitude then.
	FullLongitude bool
}

// boxMarginDegrees widens the box so points exactly on the radius survive
// floating point rounding in the SQL prefilter.
const boxMarginDegrees = 1e-6

// BoundingBoxFor computes the smallest lat/lng box containing every point
// within radiusMeters of center.
func BoundingBoxFor(center Point, radiusMeters float64) BoundingBox {
	angular := radiusMeters / EarthRadiusMeters
	latDelta := toDegrees(angular) + boxMarginDegrees

	box := BoundingBox{
		MinLat: center.Latitude - latDelta,
		MaxLat: center.Latitude + latDelta,
		MinLng: -180,
		MaxLng: 180,
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 || angular >= math.Pi/2 {
		box.MinLat = math.Max(box.MinLat, -90)
		box.MaxLat = math.Min(box.MaxLat, 90)
		box.FullLongitude = true
		return box
	}

	lngDelta := toDegrees(math.Asin(math.Sin(angular)/math.Cos(toRadians(center.Latitude)))) + boxMarginDegrees
	box.MinLng = center.Longitude - lngDelta
	box.MaxLng = center.Longitude + lngDelta
	if box.MinLng < -180 || box.MaxLng > 180 {
		box.MinLng = -180
		box.MaxLng = 180
		box.FullLongitude = true
	}
	return box
}

// Contains reports whether p lies inside the box.
func (b BoundingBox) Contains(p Point) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	if b.FullLongitude {
		return true
	}
	return p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}
