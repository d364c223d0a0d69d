// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the deployment status of tracked versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sm, closeConn, err := newStateManager(ctx)
			if err != nil {
				return err
			}
			defer closeConn()

			if err := sm.Prepare(ctx); err != nil {
				return err
			}

			versions, err := sm.ListVersions(ctx)
			if err != nil {
				return err
			}

			if len(versions) == 0 {
				pterm.Info.Println("No versions tracked yet")
				return nil
			}

			rows := pterm.TableData{{"VERSION", "STATUS"}}
			for _, v := range versions {
				rows = append(rows, []string{strconv.FormatUint(uint64(v.Version), 10), string(v.Status)})
			}

			if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
				return fmt.Errorf("rendering status table: %w", err)
			}
			return nil
		},
	}
}
