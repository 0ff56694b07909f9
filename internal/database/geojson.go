package database

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// worldBorderProperties are the attribute names of the TM_WORLD_BORDERS dataset
type worldBorderProperties struct {
	Name      string  `json:"NAME"`
	Area      int     `json:"AREA"`
	Pop2005   int     `json:"POP2005"`
	FIPS      string  `json:"FIPS"`
	ISO2      string  `json:"ISO2"`
	ISO3      string  `json:"ISO3"`
	UN        int     `json:"UN"`
	Region    int     `json:"REGION"`
	Subregion int     `json:"SUBREGION"`
	Lon       float64 `json:"LON"`
	Lat       float64 `json:"LAT"`
}

type geoJSONFeature struct {
	Properties worldBorderProperties `json:"properties"`
	Geometry   struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

// ParseWorldBorders reads a GeoJSON FeatureCollection of world borders.
// Polygon geometries are promoted to single-polygon multipolygons.
func ParseWorldBorders(r io.Reader) ([]Region, error) {
	var fc struct {
		Type     string           `json:"type"`
		Features []geoJSONFeature `json:"features"`
	}
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}

	regions := make([]Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		var mpoly MultiPolygon
		switch f.Geometry.Type {
		case "MultiPolygon":
			if err := json.Unmarshal(f.Geometry.Coordinates, &mpoly); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
		case "Polygon":
			var poly [][][2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &poly); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			mpoly = MultiPolygon{poly}
		default:
			return nil, fmt.Errorf("feature %d: unsupported geometry %q", i, f.Geometry.Type)
		}

		p := f.Properties
		regions = append(regions, Region{
			Name:       p.Name,
			Area:       p.Area,
			Pop2005:    p.Pop2005,
			FIPS:       p.FIPS,
			ISO2:       p.ISO2,
			ISO3:       p.ISO3,
			UN:         p.UN,
			RegionCode: p.Region,
			Subregion:  p.Subregion,
			Lon:        p.Lon,
			Lat:        p.Lat,
			MPoly:      mpoly,
		})
	}
	return regions, nil
}

// CityRecord is a city as listed in an import file; the country is named by
// its ISO2 code and resolved against stored regions.
type CityRecord struct {
	Name       string  `json:"name"`
	Timezone   string  `json:"timezone"`
	Lon        float64 `json:"lon"`
	Lat        float64 `json:"lat"`
	Population *int    `json:"population"`
	Country    string  `json:"country"`
}

// ParseCities reads a JSON array of city records and resolves each country
// code to a region ID. Cities of unknown countries are returned in skipped.
func ParseCities(r io.Reader, regions []Region) (cities []City, skipped []string, err error) {
	var records []CityRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, nil, fmt.Errorf("decode cities: %w", err)
	}

	byISO2 := make(map[string]int, len(regions))
	for _, reg := range regions {
		byISO2[strings.ToUpper(reg.ISO2)] = reg.ID
	}

	for _, rec := range records {
		id, ok := byISO2[strings.ToUpper(rec.Country)]
		if !ok {
			skipped = append(skipped, rec.Name)
			continue
		}
		cities = append(cities, City{
			Name:       rec.Name,
			Timezone:   rec.Timezone,
			Lon:        rec.Lon,
			Lat:        rec.Lat,
			Population: rec.Population,
			CountryID:  id,
		})
	}
	return cities, skipped, nil
}
