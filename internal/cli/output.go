package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/tidalframe/tidal/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Pipeline failure (bad expression, unknown column, etc.)
	ExitCommandError = 2 // Command error (invalid paths, bad flags, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// RenderDataset writes a dataset in the requested format. Grouped
// datasets render flattened, in group order; the text format prints the
// grouping keys first.
func RenderDataset(w io.Writer, format string, ds engine.Dataset) error {
	var (
		t    *engine.Table
		keys []string
	)
	switch d := ds.(type) {
	case *engine.Table:
		t = d
	case *engine.Grouped:
		t = d.Flatten()
		keys = d.Keys()
	default:
		return fmt.Errorf("unsupported dataset type %T", ds)
	}

	switch format {
	case "text":
		return renderText(w, t, keys)
	case "csv":
		return renderCSV(w, t)
	case "json":
		return json.NewEncoder(w).Encode(tableRows(t))
	case "yaml":
		return yaml.NewEncoder(w).Encode(tableRows(t))
	}
	return fmt.Errorf("invalid format %q: must be one of %v", format, ValidFormats)
}

// RenderValues writes a pulled column in the requested format.
func RenderValues(w io.Writer, format string, values []engine.Value) error {
	switch format {
	case "text", "csv":
		for _, v := range values {
			if _, err := fmt.Fprintln(w, displayCell(v)); err != nil {
				return err
			}
		}
		return nil
	case "json":
		return json.NewEncoder(w).Encode(nativeCells(values))
	case "yaml":
		return yaml.NewEncoder(w).Encode(nativeCells(values))
	}
	return fmt.Errorf("invalid format %q: must be one of %v", format, ValidFormats)
}

func renderText(w io.Writer, t *engine.Table, keys []string) error {
	if len(keys) > 0 {
		if _, err := fmt.Fprintf(w, "# groups: %s\n", strings.Join(keys, ", ")); err != nil {
			return err
		}
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	names := t.Names()
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	for r := 0; r < t.NRows(); r++ {
		row := make([]string, len(names))
		for i, n := range names {
			c, _ := t.Column(n)
			row[i] = displayCell(c.Cells[r])
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func renderCSV(w io.Writer, t *engine.Table) error {
	cw := csv.NewWriter(w)
	names := t.Names()
	if err := cw.Write(names); err != nil {
		return err
	}
	for r := 0; r < t.NRows(); r++ {
		row := make([]string, len(names))
		for i, n := range names {
			c, _ := t.Column(n)
			row[i] = csvCell(c.Cells[r])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// tableRows converts a table to ordered row maps for JSON and YAML
// encoding.
func tableRows(t *engine.Table) []map[string]any {
	names := t.Names()
	rows := make([]map[string]any, t.NRows())
	for r := range rows {
		row := make(map[string]any, len(names))
		for _, n := range names {
			c, _ := t.Column(n)
			row[n] = engine.Native(c.Cells[r])
		}
		rows[r] = row
	}
	return rows
}

func nativeCells(values []engine.Value) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = engine.Native(v)
	}
	return out
}

// displayCell renders a cell for the text format. Strings print bare,
// unlike the quoted canonical form used in compiled expressions.
func displayCell(v engine.Value) string {
	if s, ok := v.(engine.Str); ok {
		return string(s)
	}
	return engine.Format(v)
}

// csvCell renders a cell for CSV output. Missing values write as empty
// cells, matching what the CSV reader accepts back.
func csvCell(v engine.Value) string {
	if engine.IsNull(v) {
		return ""
	}
	return displayCell(v)
}
