package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axis-aligned rectangle, long side along latitude
var rectCorners = []Corner{
	{Lat: 0, Lng: 0},
	{Lat: 0.004, Lng: 0},
	{Lat: 0.004, Lng: 0.001},
	{Lat: 0, Lng: 0.001},
}

func TestBuildGridValidation(t *testing.T) {
	_, err := BuildGrid(rectCorners[:3], 10, 1)
	assert.Error(t, err)

	_, err = BuildGrid(rectCorners, 0, 1)
	assert.Error(t, err)

	_, err = BuildGrid(rectCorners, 10, 3)
	assert.Error(t, err)
}

func TestBuildGridSingleColumn(t *testing.T) {
	layout, err := BuildGrid(rectCorners, 4, 1)
	require.NoError(t, err)
	require.Len(t, layout.Spots, 4)

	assert.InDelta(t, 0.002, layout.LatCenter, 1e-9)
	assert.InDelta(t, 0.0005, layout.LngCenter, 1e-9)

	// rows march along the long axis; every center sits mid-width
	for i, s := range layout.Spots {
		wantLat := (float64(i) + 0.5) * 0.001
		assert.InDelta(t, wantLat, s.Latitude, 1e-9, "spot %d", i)
		assert.InDelta(t, 0.0005, s.Longitude, 1e-9, "spot %d", i)
	}
	assert.Equal(t, "1", layout.Spots[0].SpotNumber)
	assert.Equal(t, "4", layout.Spots[3].SpotNumber)
}

func TestBuildGridTwoColumns(t *testing.T) {
	layout, err := BuildGrid(rectCorners, 6, 2)
	require.NoError(t, err)
	require.Len(t, layout.Spots, 6)

	// spots 1 and 2 share a row, spot 3 starts the next one
	assert.InDelta(t, layout.Spots[0].Latitude, layout.Spots[1].Latitude, 1e-12)
	assert.Greater(t, layout.Spots[2].Latitude, layout.Spots[0].Latitude)
	assert.NotEqual(t, layout.Spots[0].Longitude, layout.Spots[1].Longitude)
}

func TestBuildGridOddCountLastRowPartial(t *testing.T) {
	layout, err := BuildGrid(rectCorners, 5, 2)
	require.NoError(t, err)
	require.Len(t, layout.Spots, 5)
	// 3 rows of 2, last row holds only spot 5
	assert.Greater(t, layout.Spots[4].Latitude, layout.Spots[3].Latitude)
}

func TestBuildGridPolygonsAreValidGeoJSON(t *testing.T) {
	layout, err := BuildGrid(rectCorners, 2, 1)
	require.NoError(t, err)

	for _, raw := range []string{layout.PolygonGeoJSON, layout.Spots[0].PolygonGeoJSON} {
		var poly struct {
			Type        string         `json:"type"`
			Coordinates [][][2]float64 `json:"coordinates"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &poly))
		assert.Equal(t, "Polygon", poly.Type)
		require.Len(t, poly.Coordinates, 1)
		ring := poly.Coordinates[0]
		require.Len(t, ring, 5)
		assert.Equal(t, ring[0], ring[4], "ring must be closed")
	}
}

func TestBuildGridRotatedLot(t *testing.T) {
	// diamond-oriented lot; grid must follow the lot axes, not the compass
	rot := []Corner{
		{Lat: 0, Lng: 0},
		{Lat: 0.003, Lng: 0.003},
		{Lat: 0.0025, Lng: 0.0035},
		{Lat: -0.0005, Lng: 0.0005},
	}
	layout, err := BuildGrid(rot, 3, 1)
	require.NoError(t, err)
	require.Len(t, layout.Spots, 3)

	// consecutive centers are evenly spaced along the long diagonal
	d1lat := layout.Spots[1].Latitude - layout.Spots[0].Latitude
	d2lat := layout.Spots[2].Latitude - layout.Spots[1].Latitude
	assert.InDelta(t, d1lat, d2lat, 1e-12)
	d1lng := layout.Spots[1].Longitude - layout.Spots[0].Longitude
	d2lng := layout.Spots[2].Longitude - layout.Spots[1].Longitude
	assert.InDelta(t, d1lng, d2lng, 1e-12)
}
