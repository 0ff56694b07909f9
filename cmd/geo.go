package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/phototag/internal/config"
	"github.com/kozaktomas/phototag/internal/database"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "World borders and cities",
}

var geoRegionAtCmd = &cobra.Command{
	Use:   "region-at <lon> <lat>",
	Short: "Find the region containing a point and its largest city",
	Args:  cobra.ExactArgs(2),
	RunE:  runGeoRegionAt,
}

var geoImportRegionsCmd = &cobra.Command{
	Use:   "import-regions <world-borders.geojson>",
	Short: "Import world borders from a GeoJSON FeatureCollection",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeoImportRegions,
}

var geoImportCitiesCmd = &cobra.Command{
	Use:   "import-cities <cities.json>",
	Short: "Import cities from a JSON array, resolving countries by ISO2 code",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeoImportCities,
}

func init() {
	rootCmd.AddCommand(geoCmd)
	geoCmd.AddCommand(geoRegionAtCmd)
	geoCmd.AddCommand(geoImportRegionsCmd)
	geoCmd.AddCommand(geoImportCitiesCmd)
}

func runGeoRegionAt(cmd *cobra.Command, args []string) error {
	lon, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q: %w", args[0], err)
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q: %w", args[1], err)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return errors.New("coordinates out of range")
	}

	ctx := context.Background()
	a, err := connectDatabase(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	regions, err := a.geo.ListRegions(ctx)
	if err != nil {
		return fmt.Errorf("list regions: %w", err)
	}
	region := database.FindRegion(regions, lon, lat)
	if region == nil {
		fmt.Println("No region contains this point")
		return nil
	}

	fmt.Printf("Region: %s (%s)\n", region.Name, region.ISO2)
	cities, err := a.geo.GetCities(ctx, region.ID)
	if err != nil {
		return fmt.Errorf("get cities: %w", err)
	}
	if len(cities) > 0 {
		fmt.Printf("Largest city: %s\n", cities[0].Name)
	}
	return nil
}

func runGeoImportRegions(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	regions, err := database.ParseWorldBorders(f)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := connectDatabase(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	for i := range regions {
		if err := a.geo.SaveRegion(ctx, &regions[i]); err != nil {
			return fmt.Errorf("save region %s: %w", regions[i].Name, err)
		}
	}
	fmt.Printf("Imported %d regions\n", len(regions))
	return nil
}

func runGeoImportCities(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := connectDatabase(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	regions, err := a.geo.ListRegions(ctx)
	if err != nil {
		return fmt.Errorf("list regions: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	cities, skipped, err := database.ParseCities(f, regions)
	if err != nil {
		return err
	}
	for i := range cities {
		if err := a.geo.SaveCity(ctx, &cities[i]); err != nil {
			return fmt.Errorf("save city %s: %w", cities[i].Name, err)
		}
	}
	fmt.Printf("Imported %d cities", len(cities))
	if len(skipped) > 0 {
		fmt.Printf(" (%d skipped, unknown country)", len(skipped))
	}
	fmt.Println()
	return nil
}
