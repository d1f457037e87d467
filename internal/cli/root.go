// Package cli implements resqctl, the operator tool that talks to the
// database and geo index directly.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/resqnet/backend/internal/config"
	"github.com/resqnet/backend/internal/database"
	"github.com/resqnet/backend/internal/geoindex"
	"github.com/resqnet/backend/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type options struct {
	json    bool
	envFile string
}

// runtime holds the connections a command works against.
type runtime struct {
	cfg   *config.Config
	db    *gorm.DB
	index geoindex.Index
	out   io.Writer
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "resqctl",
		Short: "ResQNet operator CLI",
		Long: `resqctl runs maintenance tasks against the ResQNet database.

  resqctl migrate                              Apply the schema
  resqctl seed-admin --email a@b.c             Create the first admin
  resqctl promote --email a@b.c --role admin   Change a user's role
  resqctl reindex                              Rebuild the geo index
  resqctl nearby --lng 77.59 --lat 12.97       Query nearby volunteers`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				return config.LoadDotEnv(opts.envFile)
			}
			return config.LoadDotEnv()
		},
	}

	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment from this file (default: .env)")

	root.AddCommand(
		newMigrateCommand(opts),
		newSeedAdminCommand(opts),
		newPromoteCommand(opts),
		newReindexCommand(opts),
		newNearbyCommand(opts),
	)
	return root
}

// Execute runs resqctl with os.Args.
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// withRuntime opens the database (and the geo index when needed), runs fn and
// releases everything afterwards.
func withRuntime(cmd *cobra.Command, needIndex bool, fn func(ctx context.Context, rt *runtime) error) error {
	cfg := config.Load()
	logger.SetOutput(cmd.ErrOrStderr(), cfg.Log.Level)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close(db)

	rt := &runtime{cfg: cfg, db: db, out: cmd.OutOrStdout()}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if needIndex {
		index, closeIndex, err := geoindex.Open(ctx, cfg.Geo, cfg.Mongo, db)
		if err != nil {
			return fmt.Errorf("opening geo index: %w", err)
		}
		defer closeIndex(context.Background())
		rt.index = index
	}

	return fn(ctx, rt)
}
