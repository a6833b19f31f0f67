package model

import "time"

// ParkingSpot is one physical spot inside a lot.  IsOccupied/OccupiedBy
// track who is physically parked right now; ReservedFrom/ReservedUntil
// cache the window of the reservation currently governing the spot (the
// active one covering now, else the earliest upcoming one) so the map
// can color spots without joining the reservations table.
//
// The cached window is derived state: the engine recomputes it from the
// reservations table on every mutation, and it may be nil when no
// active reservation exists.
type ParkingSpot struct {
	ID             uint64     // parking_spots.id
	LotID          uint64     // parking_spots.lot_id
	SpotNumber     string     // parking_spots.spot_number, unique within the lot
	IsOccupied     bool       // parking_spots.is_occupied
	OccupiedBy     *uint64    // parking_spots.occupied_by, nil when free
	ReservedFrom   *time.Time // parking_spots.reserved_from (UTC), nil when no window
	ReservedUntil  *time.Time // parking_spots.reserved_until (UTC), nil when no window
	Latitude       float64    // parking_spots.latitude, spot center
	Longitude      float64    // parking_spots.longitude, spot center
	PolygonGeoJSON string     // parking_spots.polygon_geojson
}

// ReservedAt reports whether the cached window covers the instant.
func (s ParkingSpot) ReservedAt(t time.Time) bool {
	return s.ReservedFrom != nil && s.ReservedUntil != nil &&
		!s.ReservedFrom.After(t) && s.ReservedUntil.After(t)
}

// FreeAt reports whether the spot is available at the instant: nobody
// parked and no reservation window covering it.
func (s ParkingSpot) FreeAt(t time.Time) bool {
	return !s.IsOccupied && !s.ReservedAt(t)
}
