// Package geo lays out parking spots inside a lot drawn as four corners
// on a map.  The grid follows the lot's orientation rather than the
// compass: rows run along the longest side, so slanted lots still get
// straight rows of spots.
package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

// Corner is a lot corner as supplied by the map frontend.
type Corner struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SpotPlacement is the computed position of one generated spot.
type SpotPlacement struct {
	SpotNumber     string
	Latitude       float64
	Longitude      float64
	PolygonGeoJSON string
}

// Layout is the full computed geometry for a lot.
type Layout struct {
	LatCenter      float64
	LngCenter      float64
	PolygonGeoJSON string
	Spots          []SpotPlacement
}

type polygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

func polygonJSON(ring [][2]float64) string {
	// close the ring
	ring = append(ring, ring[0])
	b, _ := json.Marshal(polygon{Type: "Polygon", Coordinates: [][][2]float64{ring}})
	return string(b)
}

// BuildGrid places totalSpots spots in a grid of the given column count
// inside the quadrilateral formed by the first four corners.  Spots are
// numbered "1".."N" walking row by row along the long axis.
func BuildGrid(corners []Corner, totalSpots, columns int) (*Layout, error) {
	if len(corners) < 4 {
		return nil, fmt.Errorf("need 4 corners, got %d", len(corners))
	}
	if totalSpots <= 0 {
		return nil, fmt.Errorf("total spots must be positive, got %d", totalSpots)
	}
	if columns != 1 && columns != 2 {
		return nil, fmt.Errorf("columns must be 1 or 2, got %d", columns)
	}

	p := corners[:4]
	sides := [4]float64{
		dist(p[0], p[1]),
		dist(p[1], p[2]),
		dist(p[2], p[3]),
		dist(p[3], p[0]),
	}

	// Pick the longest side; its start corner becomes the grid origin,
	// the long axis runs along it and the short axis along the adjacent
	// side leading back from the origin.
	longest := 0
	for i := 1; i < 4; i++ {
		if sides[i] > sides[longest] {
			longest = i
		}
	}
	origin := p[longest]
	longEnd := p[(longest+1)%4]
	shortEnd := p[(longest+3)%4]

	longLat, longLng := longEnd.Lat-origin.Lat, longEnd.Lng-origin.Lng
	shortLat, shortLng := shortEnd.Lat-origin.Lat, shortEnd.Lng-origin.Lng
	lenLong := math.Hypot(longLat, longLng)
	lenShort := math.Hypot(shortLat, shortLng)
	if lenLong == 0 || lenShort == 0 {
		return nil, fmt.Errorf("degenerate corners, zero-length side")
	}
	uLongLat, uLongLng := longLat/lenLong, longLng/lenLong
	uShortLat, uShortLng := shortLat/lenShort, shortLng/lenShort

	layout := &Layout{}
	for _, c := range p {
		layout.LatCenter += c.Lat / 4
		layout.LngCenter += c.Lng / 4
	}
	ring := make([][2]float64, 0, 4)
	for _, c := range p {
		ring = append(ring, [2]float64{c.Lng, c.Lat})
	}
	layout.PolygonGeoJSON = polygonJSON(ring)

	rows := (totalSpots + columns - 1) / columns
	spotLength := lenLong / float64(rows)
	spotWidth := lenShort / float64(columns)
	halfLen, halfWid := spotLength/2, spotWidth/2

	layout.Spots = make([]SpotPlacement, 0, totalSpots)
	for idx := 0; idx < totalSpots; idx++ {
		row := idx / columns
		col := idx % columns

		u := (float64(row) + 0.5) / float64(rows)
		v := (float64(col) + 0.5) / float64(columns)

		lat := origin.Lat + uLongLat*u*lenLong + uShortLat*v*lenShort
		lng := origin.Lng + uLongLng*u*lenLong + uShortLng*v*lenShort

		corner := func(dl, dw float64) [2]float64 {
			return [2]float64{
				lng + uLongLng*dl + uShortLng*dw,
				lat + uLongLat*dl + uShortLat*dw,
			}
		}
		layout.Spots = append(layout.Spots, SpotPlacement{
			SpotNumber: fmt.Sprintf("%d", idx+1),
			Latitude:   lat,
			Longitude:  lng,
			PolygonGeoJSON: polygonJSON([][2]float64{
				corner(-halfLen, -halfWid),
				corner(-halfLen, +halfWid),
				corner(+halfLen, +halfWid),
				corner(+halfLen, -halfWid),
			}),
		})
	}
	return layout, nil
}

func dist(a, b Corner) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lng-a.Lng)
}
