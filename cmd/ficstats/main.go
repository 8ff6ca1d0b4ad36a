package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ficstats/internal/chart"
	"github.com/TobiSchelling/ficstats/internal/config"
	"github.com/TobiSchelling/ficstats/internal/database"
	"github.com/TobiSchelling/ficstats/internal/history"
	"github.com/TobiSchelling/ficstats/internal/layout"
	"github.com/TobiSchelling/ficstats/internal/registry"
	"github.com/TobiSchelling/ficstats/internal/server"
	"github.com/TobiSchelling/ficstats/internal/source"
	"github.com/TobiSchelling/ficstats/internal/storage"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ficstats",
	Short:   "Track daily AO3 work statistics",
	Long:    "ficstats records hits, kudos, comments and chapters for a list of AO3 works once a day and draws a chart per work.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetOutput(os.Stderr)
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		switch strings.ToUpper(cfg.Logging.Level) {
		case "DEBUG":
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		case "WARN", "ERROR":
			if !verbose {
				log.SetOutput(io.Discard)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "ficstats", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/ficstats/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created config: %s\n", target)
		fmt.Fprintln(cmd.OutOrStdout(), "Edit it to change where the registry, history and charts are kept.")
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web view",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The web view only reads. The ledger is shown when a previous run
		// created it.
		var ledger *database.DB
		if ok, err := storage.Exists(cfg.GetDatabasePath()); err != nil {
			return err
		} else if ok {
			if ledger, err = openDB(); err != nil {
				return err
			}
			defer ledger.Close()
		}

		renderer, err := chart.NewHTMLRenderer()
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Starting server at http://localhost:%d\n", port)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
		return server.Serve(loadWorks, history.NewStore(fileLayout()), renderer, ledger, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func fileLayout() layout.Layout {
	return layout.Layout{HistoryDir: cfg.GetHistoryDir()}
}

func openRegistry() (*registry.Registry, error) {
	return registry.Open(cfg.GetRegistryPath(), fileLayout())
}

// loadWorks reads the current registry rows without creating anything.
func loadWorks() ([]registry.TrackedWork, error) {
	reg, err := registry.Load(cfg.GetRegistryPath(), fileLayout())
	if err != nil {
		return nil, err
	}
	return reg.List(), nil
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.GetDatabasePath())
}

func newClient() *source.Client {
	return source.NewClient(cfg.Source.BaseURL, cfg.Source.UserAgent, cfg.FetchTimeout())
}

// withLock runs fn while holding the exclusive data-directory lock.
func withLock(fn func() error) error {
	lock, err := storage.AcquireLock(cfg.GetLockPath())
	if err != nil {
		if errors.Is(err, storage.ErrLocked) {
			return fmt.Errorf("%w (lock %s)", err, cfg.GetLockPath())
		}
		return err
	}
	defer lock.Release()
	return fn()
}
