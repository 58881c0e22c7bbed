package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tour-service/internal/models"
)

func TestHaversineDistance(t *testing.T) {
	assert.Zero(t, HaversineDistance(45.4642, 9.19, 45.4642, 9.19))

	// One thousandth of a degree of latitude is about 111 m.
	assert.InDelta(t, 111.2, HaversineDistance(45.0, 9.0, 45.001, 9.0), 0.5)

	// Milan to Rome.
	assert.InDelta(t, 477_000, HaversineDistance(45.4642, 9.19, 41.9028, 12.4964), 3_000)
}

func TestCalculateBoundingBoxContainsRadius(t *testing.T) {
	minLat, maxLat, minLng, maxLng := CalculateBoundingBox(45.0, 9.0, 100)

	assert.Less(t, minLat, 45.0)
	assert.Greater(t, maxLat, 45.0)
	assert.InDelta(t, 100, HaversineDistance(45.0, 9.0, maxLat, 9.0), 1)
	assert.InDelta(t, 100, HaversineDistance(45.0, 9.0, 45.0, maxLng), 1)
	assert.InDelta(t, maxLng-9.0, 9.0-minLng, 1e-12)
}

func TestCentroid(t *testing.T) {
	assert.Equal(t, models.Point{}, Centroid(nil))
	assert.Equal(t, models.Point{X: 1, Y: 1}, Centroid([]models.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}))
	assert.Equal(t, models.Point{X: 2, Y: 1}, Centroid([]models.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 2, Y: 3}}))
}
