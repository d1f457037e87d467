package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resqnet/backend/internal/config"
	"github.com/resqnet/backend/internal/database"
	"github.com/resqnet/backend/internal/models"
	"github.com/resqnet/backend/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newSeedAdminCommand(opts *options) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first admin account if none exists",
		Long: `Create an admin account when the database has none.

Flags override ADMIN_NAME, ADMIN_EMAIL and ADMIN_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *runtime) error {
				admin := rt.cfg.Admin
				if name != "" {
					admin.Name = name
				}
				if email != "" {
					admin.Email = email
				}
				if password != "" {
					admin.Password = password
				}
				if strings.TrimSpace(admin.Email) == "" || admin.Password == "" {
					return errors.New("admin email and password are required")
				}
				if len(admin.Password) < 8 {
					return errors.New("admin password must be at least 8 characters")
				}

				db := rt.db.WithContext(ctx)
				if err := database.Migrate(db); err != nil {
					return fmt.Errorf("migrating: %w", err)
				}
				created, err := database.SeedAdmin(db, config.AdminConfig{
					Name:     admin.Name,
					Email:    admin.Email,
					Password: admin.Password,
				})
				if err != nil {
					return fmt.Errorf("seeding admin: %w", err)
				}

				if opts.json {
					printJSON(rt.out, map[string]any{"created": created})
					return nil
				}
				if created {
					fmt.Fprintf(rt.out, "Admin %s created.\n", strings.ToLower(strings.TrimSpace(admin.Email)))
				} else {
					fmt.Fprintln(rt.out, "An admin already exists; nothing to do.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Admin display name")
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password")
	return cmd
}

func newPromoteCommand(opts *options) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Change a user's role to admin or user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *runtime) error {
				var user models.User
				err := rt.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("no user with email %q", email)
				}
				if err != nil {
					return fmt.Errorf("loading user: %w", err)
				}

				updated, err := services.NewVolunteerService(rt.db, rt.index).ChangeRole(ctx, user.ID, models.UserRole(role))
				if err != nil {
					return err
				}

				if opts.json {
					printJSON(rt.out, updated)
					return nil
				}
				fmt.Fprintf(rt.out, "%s is now %s.\n", updated.Email, updated.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email of the user to change")
	cmd.Flags().StringVar(&role, "role", string(models.UserRoleAdmin), "New role: admin or user")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
