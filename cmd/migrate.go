// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply outstanding changelog files to the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			r, closeConn, err := newRunner(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			sp, _ := pterm.DefaultSpinner.WithText("Applying changelog files...").Start()

			version, err := r.Migrate(ctx)
			if err != nil {
				sp.Fail(fmt.Sprintf("Migration failed: %s", err))
				return err
			}

			if version == nil {
				sp.Success("Database is up to date; no changelog files to apply")
				return nil
			}

			sp.Success(fmt.Sprintf("Database is now at version %d", *version))
			return nil
		},
	}
}
