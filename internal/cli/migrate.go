package cli

import (
	"context"
	"fmt"

	"github.com/resqnet/backend/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				if err := database.Migrate(rt.db.WithContext(ctx)); err != nil {
					return fmt.Errorf("migrating: %w", err)
				}
				if opts.json {
					printJSON(rt.out, map[string]any{"migrated": true, "driver": rt.cfg.DB.Driver})
					return nil
				}
				fmt.Fprintf(rt.out, "Schema up to date (%s).\n", rt.cfg.DB.Driver)
				return nil
			})
		},
	}
}
