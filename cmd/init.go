// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the state table used to track applied versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sm, closeConn, err := newStateManager(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			sp, _ := pterm.DefaultSpinner.WithText("Creating state table...").Start()

			if err := sm.Prepare(ctx); err != nil {
				sp.Fail(fmt.Sprintf("Failed to create state table: %s", err))
				return err
			}

			sp.Success("State table ready")
			return nil
		},
	}
}
