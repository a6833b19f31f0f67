package model

// ParkingLot is a named parking area on campus.  Its geometry is
// generated once from the four corners drawn by an admin: the center,
// the outline polygon and the spot grid all derive from those corners.
//
// Fields:
//
//	ID             – primary key identifier.
//	Name           – unique display name shown on the map.
//	CampusZone     – free-text campus area label, optional.
//	LatCenter      – latitude of the lot center.
//	LngCenter      – longitude of the lot center.
//	TotalSpots     – number of generated spots.
//	GridColumns    – grid layout, 1 or 2 columns of spots.
//	PolygonGeoJSON – GeoJSON polygon of the lot outline.
type ParkingLot struct {
	ID             uint64  // parking_lots.id
	Name           string  // parking_lots.name
	CampusZone     string  // parking_lots.campus_zone
	LatCenter      float64 // parking_lots.lat_center
	LngCenter      float64 // parking_lots.lng_center
	TotalSpots     int     // parking_lots.total_spots
	GridColumns    int     // parking_lots.grid_columns
	PolygonGeoJSON string  // parking_lots.polygon_geojson
}
