// Command server runs the asset console.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assetconsole/internal/config"
	_ "github.com/JonMunkholm/assetconsole/internal/core/tables" // Register all tables
	"github.com/JonMunkholm/assetconsole/internal/logging"
	"github.com/JonMunkholm/assetconsole/internal/session"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cfg is loaded before every command except version.
var cfg *config.Config

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "assetconsole",
	Short: "Asset and employee management console",
	Long: `assetconsole serves the asset and employee console: table views with
bulk update and dispose/resign flows, registration forms with spreadsheet
import, and the change history, all backed by the asset REST API.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("assetconsole", version)
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge-sessions",
	Short: "Delete expired console sessions and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := session.NewManager(store, cfg.Session.TTL).PurgeExpired(ctx)
		if err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		fmt.Printf("purged %d expired sessions\n", n)
		return nil
	},
}

// loadConfig reads .env and the environment and sets up logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	// Overload overwrites existing env vars
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	cfg = c
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

// openStore opens the configured session store.
func openStore(ctx context.Context) (session.Store, error) {
	store, err := session.Open(ctx, session.StoreConfig{
		Driver:      cfg.Session.Store,
		SQLitePath:  cfg.Session.SQLitePath,
		PostgresURL: cfg.Session.DatabaseURL,
		Pool: session.PoolConfig{
			MaxConns:        cfg.Session.MaxConns,
			MinConns:        cfg.Session.MinConns,
			MaxConnLifetime: cfg.Session.MaxConnLifetime,
			MaxConnIdleTime: cfg.Session.MaxConnIdleTime,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	slog.Info("session store opened", "driver", cfg.Session.Store)
	return store, nil
}
