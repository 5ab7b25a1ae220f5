package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
)

var geofenceCmd = &cobra.Command{
	Use:   "geofence",
	Short: "Check coordinates against a location's geofence",
	Long: `Computes the distance from the location's fence center and whether a
check-in at those coordinates would be allowed. Nothing is recorded.

Examples:
  pontoctl geofence --location 0e4e8a1c-3b55-4c3b-9c1f-2f0d5b7a9e11 --lat 52.5218 --lon 13.405`,
	Args: cobra.NoArgs,
	RunE: runGeofence,
}

func init() {
	rootCmd.AddCommand(geofenceCmd)

	geofenceCmd.Flags().String("location", "", "Location UUID")
	geofenceCmd.Flags().Float64("lat", 0, "Latitude")
	geofenceCmd.Flags().Float64("lon", 0, "Longitude")
}

func runGeofence(cmd *cobra.Command, _ []string) error {
	locationID, err := uuidFlag(cmd, "location")
	if err != nil {
		return err
	}
	pos := domain.Coordinates{
		Latitude:  mustGetFloat64(cmd, "lat"),
		Longitude: mustGetFloat64(cmd, "lon"),
	}
	if !pos.Valid() {
		return domain.ErrInvalidCoordinates
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	loc, err := repository.NewLocationRepository(e.pool).GetByID(cmd.Context(), locationID)
	if err != nil {
		return err
	}

	decision := geo.NewValidator(e.cfg.PositionTimeout, e.logger).Check(cmd.Context(), loc.Geofence(), geo.Fixed(pos))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		Location string          `json:"location"`
		Fence    domain.Geofence `json:"fence"`
		geo.Decision
	}{loc.Name, loc.Geofence(), decision}); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
