package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineNewYorkToSanFrancisco(t *testing.T) {
	// New York (40.71, -74.01) to San Francisco (37.77, -122.42) is roughly
	// 4,130 km.
	d := Haversine(40.71, -74.01, 37.77, -122.42)
	assert.InDelta(t, 4130, d, 30)
}

func TestHaversineZeroDistance(t *testing.T) {
	assert.InDelta(t, 0, Haversine(52.52, 13.40, 52.52, 13.40), 0.001)
}

func TestIsSuspiciousTravelBoundaries(t *testing.T) {
	// Exactly at the first rule's edge: not suspicious.
	assert.False(t, IsSuspiciousTravel(500, 60))
	// Just past both edges: suspicious.
	assert.True(t, IsSuspiciousTravel(501, 59))

	// Second rule.
	assert.False(t, IsSuspiciousTravel(2000, 180))
	assert.True(t, IsSuspiciousTravel(2000, 179))

	// Long-haul with plenty of time is fine.
	assert.False(t, IsSuspiciousTravel(4130, 600))
	// Short hop in no time is fine too.
	assert.False(t, IsSuspiciousTravel(10, 1))
}
