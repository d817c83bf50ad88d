package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tidalframe/tidal/internal/schema"
)

// SchemaSummary is the reportable shape of one compiled table schema.
type SchemaSummary struct {
	Table   string            `json:"table" yaml:"table"`
	Columns map[string]string `json:"columns" yaml:"columns"`
}

// NewSchemaCommand creates the schema command, which compiles a CUE
// schema file and reports the tables it declares.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "schema <file>",
		Short:         "Compile a CUE schema file and list its tables",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := schema.LoadFile(args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "schema compilation failed", err)
			}

			summaries := make([]SchemaSummary, len(tables))
			for i, t := range tables {
				cols := make(map[string]string, len(t.Columns))
				for _, c := range t.Columns {
					cols[c.Name] = string(c.Type)
				}
				summaries[i] = SchemaSummary{Table: t.Name, Columns: cols}
			}

			w := cmd.OutOrStdout()
			switch rootOpts.Format {
			case "json":
				return json.NewEncoder(w).Encode(summaries)
			case "yaml":
				return yaml.NewEncoder(w).Encode(summaries)
			default:
				for _, t := range tables {
					fmt.Fprintf(w, "%s:\n", t.Name)
					for _, c := range t.Columns {
						fmt.Fprintf(w, "  %s: %s\n", c.Name, c.Type)
					}
				}
			}
			return nil
		},
	}
	return cmd
}
