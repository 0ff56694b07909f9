package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MultiPolygon holds GeoJSON MultiPolygon coordinates (SRID 4326):
// polygons, each a list of linear rings, each a list of [lon, lat] points.
// The first ring of a polygon is the outer boundary, the rest are holes.
type MultiPolygon [][][][2]float64

// Contains reports whether the point lies inside any polygon of the multipolygon.
// Points inside a hole are outside.
func (m MultiPolygon) Contains(lon, lat float64) bool {
	for _, polygon := range m {
		if len(polygon) == 0 || !ringContains(polygon[0], lon, lat) {
			continue
		}
		inHole := false
		for _, hole := range polygon[1:] {
			if ringContains(hole, lon, lat) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// ringContains runs the even-odd ray casting test against one ring.
func ringContains(ring [][2]float64, lon, lat float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Value implements driver.Valuer, storing the coordinates as JSON.
func (m MultiPolygon) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	data, err := json.Marshal([][][][2]float64(m))
	if err != nil {
		return nil, fmt.Errorf("marshal multipolygon: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON encoded coordinates.
func (m *MultiPolygon) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MultiPolygon", src)
	}

	var coords [][][][2]float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return fmt.Errorf("unmarshal multipolygon: %w", err)
	}
	*m = coords
	return nil
}

// FindRegion returns the first region whose borders contain the point, or nil.
func FindRegion(regions []Region, lon, lat float64) *Region {
	for i := range regions {
		if regions[i].MPoly.Contains(lon, lat) {
			return &regions[i]
		}
	}
	return nil
}
