package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tidalframe/tidal/internal/source"
)

// NewTablesCommand creates the tables command, which lists the tables
// in a SQLite database.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:           "tables",
		Short:         "List the tables in a SQLite database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := source.OpenDatabase(database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			names, err := db.Tables(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list tables", err)
			}

			w := cmd.OutOrStdout()
			switch rootOpts.Format {
			case "json":
				return json.NewEncoder(w).Encode(names)
			case "yaml":
				return yaml.NewEncoder(w).Encode(names)
			default:
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}
