package main

import (
	"github.com/spf13/cobra"

	"github.com/HendryAvila/devmind/internal/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the monitoring service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		store, exec := openDashboard()
		svc := monitor.New(store, exec, monitor.Options{
			PollInterval: cfg.Monitor.PollInterval,
			KeepAlive:    cfg.Monitor.KeepAlive,
		}, log)
		return svc.Run(ctx, cfg.Monitor.Addr)
	},
}
