package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/schema"
	"github.com/tidalframe/tidal/internal/source"
	"github.com/tidalframe/tidal/internal/tidy"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	CSV      string
	Database string
	Table    string
	Schema   string
	Lets     []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a pipeline script against a CSV file or SQLite table",
		Long: `Run a tidy pipeline script against tabular data.

The script is a sequence of verb calls, one per line or chained with
the |> operator. Input comes from a CSV file (--csv, optionally typed
by a CUE schema via --schema) or from a SQLite table (--db with
--table). Pass "-" as the script path to read it from stdin.

Example:
  tidal run --csv flights.csv pipeline.tidy
  tidal run --db stats.db --table flights --format json - <<'EOF'
  group_by(carrier)
  summarize(delay = mean(dep_delay))
  EOF`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CSV, "csv", "", "path to a CSV input file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to a SQLite database")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table to read from the database")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema file typing the CSV columns")
	cmd.Flags().StringArrayVar(&opts.Lets, "let", nil, "bind name=value in the interpolation environment (repeatable)")

	return cmd
}

func runPipeline(opts *RunOptions, scriptPath string, cmd *cobra.Command) error {
	script, err := readScript(scriptPath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read script", err)
	}

	ds, err := loadInput(cmd.Context(), opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load input", err)
	}

	sopts := []tidy.Option{}
	if opts.Explain {
		sopts = append(sopts, tidy.WithExplain(cmd.ErrOrStderr()))
	}
	env, err := parseLets(opts.Lets)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --let binding", err)
	}
	if len(env) > 0 {
		sopts = append(sopts, tidy.WithEnv(env))
	}
	session := tidy.New(sopts...)

	res, err := RunPipeline(session, ds, script)
	if err != nil {
		return WrapExitError(ExitFailure, "pipeline failed", err)
	}

	if res.Pulled {
		return RenderValues(cmd.OutOrStdout(), opts.Format, res.Values)
	}
	return RenderDataset(cmd.OutOrStdout(), opts.Format, res.Dataset)
}

func readScript(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// loadInput reads the dataset named by the input flags. Exactly one of
// --csv and --db/--table must be given.
func loadInput(ctx context.Context, opts *RunOptions) (engine.Dataset, error) {
	switch {
	case opts.CSV != "" && opts.Database != "":
		return nil, fmt.Errorf("--csv and --db are mutually exclusive")

	case opts.CSV != "":
		var sch *schema.Table
		if opts.Schema != "" {
			tables, err := schema.LoadFile(opts.Schema)
			if err != nil {
				return nil, err
			}
			sch = matchSchema(tables, opts.CSV)
		}
		return source.ReadCSV(opts.CSV, sch)

	case opts.Database != "":
		if opts.Table == "" {
			return nil, fmt.Errorf("--db requires --table")
		}
		db, err := source.OpenDatabase(opts.Database)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		if ctx == nil {
			ctx = context.Background()
		}
		return db.ReadTable(ctx, opts.Table)
	}
	return nil, fmt.Errorf("one of --csv or --db is required")
}

// matchSchema picks the declared table whose name matches the CSV file
// base name; a single-table schema file applies unconditionally.
func matchSchema(tables []schema.Table, csvPath string) *schema.Table {
	if len(tables) == 1 {
		return &tables[0]
	}
	base := strings.TrimSuffix(filepath.Base(csvPath), ".csv")
	for i := range tables {
		if tables[i].Name == base {
			return &tables[i]
		}
	}
	return nil
}

// parseLets parses repeated name=value flags into an interpolation
// environment. Values parse as JSON when they can, so numbers, bools
// and lists come through typed; everything else binds as a string.
func parseLets(lets []string) (map[string]any, error) {
	if len(lets) == 0 {
		return nil, nil
	}
	env := make(map[string]any, len(lets))
	for _, l := range lets {
		name, value, ok := strings.Cut(l, "=")
		if !ok {
			return nil, fmt.Errorf("%q is not of the form name=value", l)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			return nil, fmt.Errorf("%q is not of the form name=value", l)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err == nil {
			env[name] = v
		} else {
			env[name] = value
		}
	}
	return env, nil
}
