package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/devmind/internal/launcher"
)

var allowBusy bool

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Start the monitor, the API and the dashboard, and stop them on exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		l := launcher.New(cfg.Launcher.Services, launcher.Options{
			StartupTimeout: cfg.Launcher.StartupTimeout,
			AllowBusyPorts: allowBusy,
			Logger:         log,
		})
		if err := l.Start(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "All services started:")
		for _, r := range l.Running() {
			if r.Service.Port > 0 {
				fmt.Fprintf(out, "  %-20s http://localhost:%d (pid %d)\n", r.Service.Name, r.Service.Port, r.PID())
			}
		}
		fmt.Fprintln(out, "The editor extension must be started separately (bridge on port 8765).")
		fmt.Fprintln(out, "Press Ctrl+C to stop.")

		l.Wait(ctx)
		return nil
	},
}

func init() {
	launchCmd.Flags().BoolVar(&allowBusy, "allow-busy-ports", false, "start services even if their port is already taken")
}
