package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/devmind/internal/api"
	"github.com/HendryAvila/devmind/internal/config"
	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/dbexec"
	"github.com/HendryAvila/devmind/internal/logging"
	"github.com/HendryAvila/devmind/internal/server"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	logLevel  string
	logFormat string

	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "devmind",
	Short:         "Jira-driven development assistant",
	Long:          "DevMind connects Jira, SVN, a SQLite dashboard and an editor's AI assistant.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		log = logging.New(cfg.Log.Level, cfg.Log.Format)
		slog.SetDefault(log)
		return nil
	},
}

func init() {
	api.Version = version
	server.Version = version

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json")

	rootCmd.AddCommand(serveCmd, monitorCmd, mcpCmd, launchCmd, initdbCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "devmind v%s\n", version)
		return nil
	},
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func executorOptions() dbexec.Options {
	return dbexec.Options{
		MaxRetries:  cfg.Database.MaxRetries,
		BaseDelay:   cfg.Database.BaseDelay,
		BusyTimeout: cfg.Database.BusyTimeout,
		CacheSize:   cfg.Database.CacheSize,
		Logger:      log,
	}
}

func openDashboard() (*dashboard.Store, *dbexec.Executor) {
	exec := dbexec.New(cfg.Database.Path, executorOptions())
	return dashboard.New(exec, log), exec
}

// openStandards returns nil when the standards database does not exist.
func openStandards() (*dashboard.Standards, *dbexec.Executor) {
	if _, err := os.Stat(cfg.Database.StandardsPath); err != nil {
		log.Warn("oracle standards database not found", "path", cfg.Database.StandardsPath)
		return nil, nil
	}
	exec := dbexec.New(cfg.Database.StandardsPath, executorOptions())
	return dashboard.NewStandards(exec), exec
}

// localURL turns a listen address like ":5002" into http://localhost:5002.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + strings.TrimPrefix(addr, "http://")
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
