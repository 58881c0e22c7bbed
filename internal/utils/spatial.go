package utils

import (
	"math"

	"tour-service/internal/models"
)

// HaversineDistance calculates the distance in meters between two GPS points.
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0

	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLng := (lng2 - lng1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000
}

// CalculateBoundingBox calculates a rough bounding box for prefiltering radius queries.
func CalculateBoundingBox(lat, lng, radiusMeters float64) (minLat, maxLat, minLng, maxLng float64) {
	latDegreePerMeter := 1.0 / 111320.0
	lngDegreePerMeter := 1.0 / (111320.0 * math.Cos(lat*math.Pi/180.0))

	deltaLat := radiusMeters * latDegreePerMeter
	deltaLng := radiusMeters * lngDegreePerMeter

	return lat - deltaLat, lat + deltaLat, lng - deltaLng, lng + deltaLng
}

// Centroid returns the vertex average of a polygon, the anchor the viewer
// uses for a polygon marker.
func Centroid(points []models.Point) models.Point {
	if len(points) == 0 {
		return models.Point{}
	}
	var c models.Point
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(points))
	return models.Point{X: c.X / n, Y: c.Y / n}
}
