// dryersync runs one sync cycle for a single farmer from the command line.
//
// Exit codes: 0 success, 1 partial-application/local failure, 2 command
// error, 3 authentication failure, 4 transport failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"palay-drying-backend/config"
	"palay-drying-backend/internal/auth"
	"palay-drying-backend/internal/db"
	"palay-drying-backend/internal/model"
	"palay-drying-backend/internal/remote"
	"palay-drying-backend/internal/store"
	appsync "palay-drying-backend/internal/sync"
)

const (
	exitSuccess      = 0
	exitFailure      = 1
	exitCommandError = 2
	exitAuthFailure  = 3
	exitTransport    = 4
)

// exitError carries a process exit code with the error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	ConfigPath string
	Farmer     string
	Password   string
	Verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dryersync",
		Short: "Run one sync cycle for a farmer",
		Long: `dryersync performs a single authenticate-upload-download-reconcile-commit
cycle against the remote server for one farmer's drying records.

The farmer must already exist locally (log in through the device first).
The password is read from the DRYERSYNC_PASSWORD environment variable when
the --password flag is not given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "./config/config.yaml", "path to configuration file")
	cmd.Flags().StringVar(&opts.Farmer, "farmer", "", "farmer username to sync (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "farmer password (defaults to $DRYERSYNC_PASSWORD)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	_ = cmd.MarkFlagRequired("farmer")

	cmd.AddCommand(newAddStaffCommand())

	return cmd
}

func newAddStaffCommand() *cobra.Command {
	var (
		configPath string
		email      string
		password   string
		barangay   string
	)

	cmd := &cobra.Command{
		Use:   "add-staff",
		Short: "Provision a barangay operator account on this device",
		Long: `add-staff creates or updates the operator account used to unlock the
device before a farmer signs in. Operator accounts exist only on the
device and are never synchronized.

The password is read from the DRYERSYNC_PASSWORD environment variable
when the --password flag is not given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("DRYERSYNC_PASSWORD")
			}
			if password == "" {
				return &exitError{code: exitCommandError, err: errors.New("no password given: use --password or DRYERSYNC_PASSWORD")}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return &exitError{code: exitCommandError, err: fmt.Errorf("failed to load configuration: %w", err)}
			}
			gormDB, err := db.Init(&cfg.Database)
			if err != nil {
				return &exitError{code: exitCommandError, err: fmt.Errorf("failed to open database: %w", err)}
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			ctx := cmd.Context()
			st := store.NewGormStore(gormDB)
			staff, err := st.StaffByEmail(ctx, email)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			if staff == nil {
				staff = &model.StaffUser{Email: email}
			}
			staff.PasswordHash = hash
			staff.BarangayName = barangay
			if err := st.SaveStaff(ctx, staff); err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			slog.Info("operator account saved", "email", email, "barangay", barangay)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "./config/config.yaml", "path to configuration file")
	cmd.Flags().StringVar(&email, "email", "", "operator email (required)")
	cmd.Flags().StringVar(&password, "password", "", "operator password (defaults to $DRYERSYNC_PASSWORD)")
	cmd.Flags().StringVar(&barangay, "barangay", "", "barangay the operator manages (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("barangay")

	return cmd
}

func runSync(ctx context.Context, opts *options) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	password := opts.Password
	if password == "" {
		password = os.Getenv("DRYERSYNC_PASSWORD")
	}
	if password == "" {
		return &exitError{code: exitCommandError, err: errors.New("no password given: use --password or DRYERSYNC_PASSWORD")}
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return &exitError{code: exitCommandError, err: fmt.Errorf("failed to load configuration: %w", err)}
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return &exitError{code: exitCommandError, err: fmt.Errorf("failed to open database: %w", err)}
	}

	st := store.NewGormStore(gormDB)
	farmer, err := st.FarmerByUsername(ctx, opts.Farmer)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	if farmer == nil {
		return &exitError{code: exitCommandError, err: fmt.Errorf("farmer %q not found locally", opts.Farmer)}
	}

	engine := appsync.NewEngine(st, remote.NewClient(&cfg.Remote), appsync.StrategyFromName(cfg.Sync.Strategy))
	slog.Info("starting sync cycle", "farmer", farmer.Username, "strategy", cfg.Sync.Strategy)

	result, err := engine.RunCycle(ctx, *farmer, appsync.Credentials{Username: opts.Farmer, Password: password})
	if err != nil {
		return &exitError{code: syncExitCode(err), err: err}
	}

	slog.Info("sync cycle committed",
		"uploaded", result.Uploaded,
		"downloaded", result.Downloaded,
		"applied", result.Applied,
		"skipped", len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		slog.Warn("record skipped", "uuid", d.RecordUUID, "farmer_uuid", d.FarmerUUID, "reason", d.Reason)
	}
	return nil
}

func syncExitCode(err error) int {
	var transport *remote.TransportError
	switch {
	case errors.As(err, &transport):
		return exitTransport
	case errors.Is(err, remote.ErrAuthFailed):
		return exitAuthFailure
	default:
		return exitFailure
	}
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(exitFailure)
	}
}
