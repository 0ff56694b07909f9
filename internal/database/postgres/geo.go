package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/phototag/internal/database"
)

// GeoRepository provides PostgreSQL-backed world borders and cities.
type GeoRepository struct {
	pool *Pool
}

// NewGeoRepository creates a new PostgreSQL geo repository.
func NewGeoRepository(pool *Pool) *GeoRepository {
	return &GeoRepository{pool: pool}
}

// SaveRegion inserts or updates a world border, assigning ID when zero.
func (r *GeoRepository) SaveRegion(ctx context.Context, region *database.Region) error {
	args := []any{
		region.Name, region.Area, region.Pop2005, region.FIPS, region.ISO2, region.ISO3,
		region.UN, region.RegionCode, region.Subregion, region.Lon, region.Lat, region.MPoly,
	}
	if region.ID == 0 {
		err := r.pool.QueryRow(ctx, `
			INSERT INTO world_borders (name, area, pop2005, fips, iso2, iso3, un, region, subregion, lon, lat, mpoly)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`, args...).Scan(&region.ID)
		if err != nil {
			return fmt.Errorf("insert region: %w", err)
		}
		return nil
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO world_borders (id, name, area, pop2005, fips, iso2, iso3, un, region, subregion, lon, lat, mpoly)
		VALUES ($13, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, area = EXCLUDED.area, pop2005 = EXCLUDED.pop2005,
			fips = EXCLUDED.fips, iso2 = EXCLUDED.iso2, iso3 = EXCLUDED.iso3, un = EXCLUDED.un,
			region = EXCLUDED.region, subregion = EXCLUDED.subregion,
			lon = EXCLUDED.lon, lat = EXCLUDED.lat, mpoly = EXCLUDED.mpoly
	`, append(args, region.ID)...)
	if err != nil {
		return fmt.Errorf("save region: %w", err)
	}
	return nil
}

// SaveCity inserts or updates a city, assigning ID when zero.
func (r *GeoRepository) SaveCity(ctx context.Context, city *database.City) error {
	if city.ID == 0 {
		err := r.pool.QueryRow(ctx, `
			INSERT INTO cities (name, timezone, lon, lat, population, country_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, city.Name, city.Timezone, city.Lon, city.Lat, city.Population, city.CountryID).Scan(&city.ID)
		if err != nil {
			return fmt.Errorf("insert city: %w", err)
		}
		return nil
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO cities (id, name, timezone, lon, lat, population, country_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, timezone = EXCLUDED.timezone, lon = EXCLUDED.lon, lat = EXCLUDED.lat,
			population = EXCLUDED.population, country_id = EXCLUDED.country_id
	`, city.ID, city.Name, city.Timezone, city.Lon, city.Lat, city.Population, city.CountryID)
	if err != nil {
		return fmt.Errorf("save city: %w", err)
	}
	return nil
}

// ListRegions returns all world borders ordered by name.
func (r *GeoRepository) ListRegions(ctx context.Context) ([]database.Region, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, area, pop2005, fips, iso2, iso3, un, region, subregion, lon, lat, mpoly
		FROM world_borders
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	var regions []database.Region
	for rows.Next() {
		var reg database.Region
		if err := rows.Scan(&reg.ID, &reg.Name, &reg.Area, &reg.Pop2005, &reg.FIPS, &reg.ISO2, &reg.ISO3,
			&reg.UN, &reg.RegionCode, &reg.Subregion, &reg.Lon, &reg.Lat, &reg.MPoly); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return regions, nil
}

// GetCities returns the cities of a region ordered by population, largest first.
func (r *GeoRepository) GetCities(ctx context.Context, regionID int) ([]database.City, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, timezone, lon, lat, population, country_id
		FROM cities
		WHERE country_id = $1
		ORDER BY population DESC NULLS LAST, name
	`, regionID)
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()

	var cities []database.City
	for rows.Next() {
		var c database.City
		var population sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &c.Timezone, &c.Lon, &c.Lat, &population, &c.CountryID); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		if population.Valid {
			p := int(population.Int64)
			c.Population = &p
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cities: %w", err)
	}
	return cities, nil
}
