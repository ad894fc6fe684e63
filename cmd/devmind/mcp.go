package main

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/devmind/internal/config"
	"github.com/HendryAvila/devmind/internal/jira"
	"github.com/HendryAvila/devmind/internal/monitor"
	"github.com/HendryAvila/devmind/internal/server"
	"github.com/HendryAvila/devmind/internal/svn"
	"github.com/HendryAvila/devmind/internal/tools"
)

var noNotify bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, exec := openDashboard()
		d := server.Deps{
			Store:       store,
			DashboardDB: exec,
			Jira: tools.LazyJira(func() (*jira.Client, error) {
				creds, err := config.FindCredentials()
				if err != nil {
					return nil, err
				}
				return jira.New(creds.Jira, log)
			}),
			Logger: log,
		}
		if standards, sexec := openStandards(); standards != nil {
			d.Standards = standards
			d.StandardsDB = sexec
		}
		if creds, err := config.FindCredentials(); err != nil {
			log.Warn("credentials not found, svn tools disabled", "err", err)
		} else if creds.SVN.BaseURL != "" {
			d.SVN = svn.New(creds.SVN, svn.WithLogger(log))
			d.SVNBaseURL = creds.SVN.BaseURL
		}
		if !noNotify {
			d.Notifier = monitor.NewNotifier(localURL(cfg.Monitor.Addr), log)
		}

		if err := mcpserver.ServeStdio(server.New(d)); err != nil {
			return fmt.Errorf("serving mcp: %w", err)
		}
		return nil
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&noNotify, "no-notify", false, "do not post task updates to the monitoring service")
}
