// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dbup-go/dbup/cmd/flags"
	"github.com/dbup-go/dbup/internal/connstr"
	"github.com/dbup-go/dbup/pkg/changelog"
	"github.com/dbup-go/dbup/pkg/db"
	"github.com/dbup-go/dbup/pkg/executor"
	"github.com/dbup-go/dbup/pkg/runner"
	"github.com/dbup-go/dbup/pkg/state"
)

// Version is the dbup version.
var Version = "development"

func init() {
	viper.SetEnvPrefix("DBUP")
	viper.AutomaticEnv()

	flags.ConnectionFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "dbup",
	Short:        "Apply versioned SQL changelogs to a database",
	SilenceUsage: true,
	Version:      Version,
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(validateCmd())

	return rootCmd.Execute()
}

// newRunner opens a connection using the configured URL and driver, and
// assembles a Runner over the configured changelog directory.
func newRunner(ctx context.Context) (*runner.Runner, func() error, error) {
	url, err := connstr.AppendSearchPathOption(flags.URL(), flags.Schema())
	if err != nil {
		return nil, nil, fmt.Errorf("applying schema option: %w", err)
	}
	conn, err := sql.Open(flags.Driver(), url)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	rdb := &db.RDB{DB: conn}

	cat, err := changelog.DirCatalog(os.DirFS(flags.Dir()), ".")
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("reading changelog directory %q: %w", flags.Dir(), err)
	}

	sm := state.New(rdb, flags.Driver(), state.WithTableName(flags.Table()))
	ex := executor.New(rdb)

	return runner.New(cat, sm, ex), conn.Close, nil
}

// newStateManager opens a connection and returns a state manager over it,
// for subcommands that only need to inspect or prepare tracking state
// without running the changelog directory through the executor.
func newStateManager(ctx context.Context) (*state.SQLStateManager, func() error, error) {
	url, err := connstr.AppendSearchPathOption(flags.URL(), flags.Schema())
	if err != nil {
		return nil, nil, fmt.Errorf("applying schema option: %w", err)
	}
	conn, err := sql.Open(flags.Driver(), url)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	rdb := &db.RDB{DB: conn}
	sm := state.New(rdb, flags.Driver(), state.WithTableName(flags.Table()))

	return sm, conn.Close, nil
}
