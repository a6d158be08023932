package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tvmmachans/Customo/internal/audit"
	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/infrastructure/config"
	"github.com/tvmmachans/Customo/internal/infrastructure/database"
	"github.com/tvmmachans/Customo/internal/infrastructure/logging"
	"github.com/tvmmachans/Customo/internal/validation"
)

var (
	migrateDown   bool
	migrateStatus bool

	adminEmail    string
	adminPassword string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  "Apply pending database migrations, roll back the latest one with --down, or list them with --status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		path, optional := getConfigPath(configFlag)
		return runMigrate(ctx, cmd.OutOrStdout(), path, optional, migrateDown, migrateStatus)
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account or promote an existing user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		path, optional := getConfigPath(configFlag)
		user, err := runCreateAdmin(ctx, path, optional, adminEmail, adminPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "administrator ready: %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back the most recent migration")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "list applied and pending migrations")

	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "administrator email (default security.admin.email)")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "administrator password (default security.admin.password)")
}

// loadCommandConfig loads configuration for one-shot commands, which log
// through the configured logger but never start the server.
func loadCommandConfig(path string, optional bool) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, logging.New(cfg.Logging, version), nil
}

func runMigrate(ctx context.Context, out io.Writer, path string, optional, down, status bool) error {
	if down && status {
		return errors.New("--down and --status are mutually exclusive")
	}

	cfg, log, err := loadCommandConfig(path, optional)
	if err != nil {
		return err
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	switch {
	case status:
		applied, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT")
		for _, m := range applied {
			fmt.Fprintf(tw, "%s\tapplied\t%s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		for _, m := range pending {
			fmt.Fprintf(tw, "%s\tpending\t-\n", m.Version)
		}
		return tw.Flush()

	case down:
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		log.Info("rolled back latest migration")

	default:
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations complete", "path", cfg.Database.Path)
	}
	return nil
}

// runCreateAdmin registers email as an administrator. An existing account
// is promoted and reactivated; its password is left unchanged.
func runCreateAdmin(ctx context.Context, path string, optional bool, email, password string) (*auth.User, error) {
	cfg, log, err := loadCommandConfig(path, optional)
	if err != nil {
		return nil, err
	}
	if email == "" {
		email = cfg.Security.Admin.Email
	}
	if password == "" {
		password = cfg.Security.Admin.Password
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	users := auth.NewUserRepository(db.DB)
	svc := auth.NewService(users, tokenConfig(cfg), cfg.Security.Password.BcryptCost)
	svc.SetLogger(log.Component("auth"))

	normalized, ok := validation.NormalizeEmail(email)
	if !ok {
		return nil, fmt.Errorf("administrator email: %w", auth.ErrInvalidEmail)
	}

	var id string
	action := audit.ActionRole
	existing, err := users.GetByEmail(ctx, normalized)
	switch {
	case err == nil:
		id = existing.ID
	case errors.Is(err, auth.ErrUserNotFound):
		if password == "" {
			return nil, errors.New("a password is required to create a new administrator")
		}
		session, regErr := svc.Register(ctx, normalized, password, auth.Profile{FirstName: "System", LastName: "Administrator"})
		if regErr != nil {
			return nil, fmt.Errorf("registering administrator: %w", regErr)
		}
		id = session.User.ID
		action = audit.ActionCreate
	default:
		return nil, fmt.Errorf("looking up %s: %w", normalized, err)
	}

	if err := users.SetRole(ctx, id, auth.RoleAdmin); err != nil {
		return nil, fmt.Errorf("promoting administrator: %w", err)
	}
	if err := users.SetActive(ctx, id, true); err != nil {
		return nil, fmt.Errorf("activating administrator: %w", err)
	}

	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading administrator: %w", err)
	}

	trail := audit.NewTrail(audit.NewSQLiteRepository(db.DB))
	trail.SetLogger(log.Component("audit"))
	trail.Record(ctx, audit.Entry{
		Action:     action,
		EntityType: audit.EntityUser,
		EntityID:   user.ID,
		Source:     audit.SourceCLI,
		Details:    map[string]any{"role": string(auth.RoleAdmin)},
	})

	log.Info("administrator ready", "email", user.Email, "id", user.ID)
	return user, nil
}
