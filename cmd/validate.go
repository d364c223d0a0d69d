// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dbup-go/dbup/cmd/flags"
	"github.com/dbup-go/dbup/pkg/changelog"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Scan the changelog directory and check every file yields at least one statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := flags.Dir()

			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Validating changelogs in %s...", dir)).Start()

			cat, err := changelog.DirCatalog(os.DirFS(dir), ".")
			if err != nil {
				sp.Fail(fmt.Sprintf("Reading changelog directory failed: %s", err))
				return err
			}

			files, err := cat.Files()
			if err != nil {
				sp.Fail(fmt.Sprintf("Listing changelog files failed: %s", err))
				return err
			}

			for _, file := range files {
				it := file.Statements()
				count := 0
				for {
					if _, ok := it.Next(); !ok {
						break
					}
					count++
				}
				if count == 0 {
					sp.Fail(fmt.Sprintf("Changelog V%d (%s) contains no statements", file.Version(), file.Name()))
					return fmt.Errorf("changelog V%d (%s) contains no statements", file.Version(), file.Name())
				}
			}

			sp.Success(fmt.Sprintf("%d changelog file(s) validated", len(files)))
			return nil
		},
	}
}
