package cli

import (
	"context"
	"fmt"

	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/services"
	"github.com/spf13/cobra"
)

func newReindexCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every volunteer into the configured geo index",
		Long: `Rebuild the geo index from the users table. Run this after
switching GEO_BACKEND to mongo or restoring a database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *runtime) error {
				count, err := services.NewVolunteerService(rt.db, rt.index).Reindex(ctx)
				if err != nil {
					return fmt.Errorf("reindexing: %w", err)
				}
				if opts.json {
					printJSON(rt.out, map[string]any{"indexed": count, "backend": rt.cfg.Geo.Backend})
					return nil
				}
				fmt.Fprintf(rt.out, "Indexed %d volunteer(s) into the %s backend.\n", count, rt.cfg.Geo.Backend)
				return nil
			})
		},
	}
}

func newNearbyCommand(opts *options) *cobra.Command {
	var lng, lat, radiusKm float64

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List available volunteers near a point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *runtime) error {
				radius := radiusKm
				if radius == 0 {
					radius = rt.cfg.Geo.DefaultRadiusKm
				}

				matching := services.NewMatchingService(rt.db, rt.index, rt.cfg.Geo.DefaultRadiusKm, rt.cfg.Geo.MaxResults)
				candidates, err := matching.FindNearbyVolunteers(ctx, geo.NewPoint(lng, lat), radius)
				if err != nil {
					return err
				}

				if opts.json {
					printJSON(rt.out, candidates)
					return nil
				}
				candidateTable(rt.out, candidates)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude of the point")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the point")
	cmd.Flags().Float64Var(&radiusKm, "radius-km", 0, "Search radius in kilometres (default: GEO_DEFAULT_RADIUS_KM)")
	_ = cmd.MarkFlagRequired("lng")
	_ = cmd.MarkFlagRequired("lat")
	return cmd
}
