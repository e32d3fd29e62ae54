// Package geo computes distances between coordinates on the WGS-84
// ellipsoid and the coarse bounding boxes used to pre-filter shops.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/tidwall/geodesic"
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies within latitude/longitude range.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// String formats the point the way search queries are recorded.
func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// DistanceKm returns the geodesic distance between a and b in kilometers.
func DistanceKm(a, b Point) float64 {
	var meters float64
	geodesic.WGS84.Inverse(a.Lat, a.Lng, b.Lat, b.Lng, &meters, nil, nil)
	return meters / 1000
}

// RoundKm rounds a distance to one decimal place.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

// Bound is an axis-aligned lat/lng box. When WrapsLng is set the box
// crosses the antimeridian or covers a pole and longitude must not be
// used as a filter.
type Bound struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	WrapsLng       bool
}

// orb builds the box on a sphere of the equatorial radius, where a degree
// of latitude is 111.32 km. On the ellipsoid it is as short as 110.57 km,
// so the radius is widened by boundSlack before the fixed pad is added.
const (
	boundSlack     = 0.01
	boundPadMeters = 1000
)

// BoundAround returns a box containing every point within radiusKm of center.
func BoundAround(center Point, radiusKm float64) Bound {
	meters := math.Max(radiusKm, 0)*1000*(1+boundSlack) + boundPadMeters
	b := orbgeo.NewBoundAroundPoint(orb.Point{center.Lng, center.Lat}, meters)
	wraps := b.Min[0] > b.Max[0] || (b.Min[0] <= -180 && b.Max[0] >= 180) ||
		math.IsNaN(b.Min[0]) || math.IsNaN(b.Max[0])

	return Bound{
		MinLat:   b.Min[1],
		MaxLat:   b.Max[1],
		MinLng:   b.Min[0],
		MaxLng:   b.Max[0],
		WrapsLng: wraps,
	}
}

// Contains reports whether p lies inside the box.
func (b Bound) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.WrapsLng {
		return true
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
