package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/dbexec"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the dashboard and Oracle standards databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		for _, path := range []string{cfg.Database.Path, cfg.Database.StandardsPath} {
			if err := dbexec.EnsureFile(path); err != nil {
				return err
			}
		}

		dash := dbexec.New(cfg.Database.Path, executorOptions())
		if err := dashboard.Init(ctx, dash); err != nil {
			return fmt.Errorf("initializing %s: %w", dash.Path(), err)
		}
		std := dbexec.New(cfg.Database.StandardsPath, executorOptions())
		if err := dashboard.InitStandards(ctx, std); err != nil {
			return fmt.Errorf("initializing %s: %w", std.Path(), err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s and %s\n", dash.Path(), std.Path())
		return nil
	},
}
