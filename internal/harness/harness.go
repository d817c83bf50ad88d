// Package harness runs YAML conformance scenarios: each scenario
// declares an inline input table and a pipeline script, and the
// compiled plans plus rendered output snapshot against a golden file.
package harness

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidalframe/tidal/internal/cli"
	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/tidy"
)

// Result captures everything a scenario run produced: the compiled
// plans, the rendered output, and the pipeline error, if any.
type Result struct {
	Plans  string
	Output string
	Err    error
}

// Run executes a scenario's pipeline against its inline input and
// collects the plans and the rendered result.
func Run(scenario *Scenario) (*Result, error) {
	input, err := buildInput(&scenario.Input)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	var plans bytes.Buffer
	opts := []tidy.Option{tidy.WithExplain(&plans)}
	if len(scenario.Env) > 0 {
		opts = append(opts, tidy.WithEnv(scenario.Env))
	}
	session := tidy.New(opts...)

	res := &Result{}
	out, err := cli.RunPipeline(session, input, scenario.Pipeline)
	res.Plans = plans.String()
	if err != nil {
		res.Err = err
		return res, nil
	}

	var rendered bytes.Buffer
	if out.Pulled {
		err = cli.RenderValues(&rendered, "text", out.Values)
	} else {
		err = cli.RenderDataset(&rendered, "text", out.Dataset)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: render: %w", scenario.Name, err)
	}
	res.Output = rendered.String()
	return res, nil
}

func buildInput(in *InputTable) (*engine.Table, error) {
	cols := make([]engine.Column, len(in.Columns))
	for i, c := range in.Columns {
		cells := make([]engine.Value, len(c.Cells))
		for j, raw := range c.Cells {
			v, err := engine.FromNative(raw)
			if err != nil {
				return nil, fmt.Errorf("column %q cell %d: %w", c.Name, j+1, err)
			}
			cells[j] = v
		}
		cols[i] = engine.Column{Name: c.Name, Cells: cells}
	}
	return engine.NewTable(cols...)
}

// pseudoPattern matches the per-invocation random suffix of pseudo
// column names, which would otherwise make snapshots nondeterministic.
var pseudoPattern = regexp.MustCompile(regexp.QuoteMeta(tidy.PseudoPrefix) + `(n|row)_[0-9a-f]{8}`)

// Snapshot renders a result in the canonical golden-file layout.
// Pseudo-column suffixes are normalized so repeated runs compare equal.
func Snapshot(scenario *Scenario, res *Result) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scenario: %s\n", scenario.Name)
	sb.WriteString("== plans ==\n")
	sb.WriteString(res.Plans)
	if res.Err != nil {
		sb.WriteString("== error ==\n")
		sb.WriteString(res.Err.Error())
		sb.WriteByte('\n')
	} else {
		sb.WriteString("== output ==\n")
		sb.WriteString(res.Output)
	}
	return pseudoPattern.ReplaceAll([]byte(sb.String()), []byte(tidy.PseudoPrefix+"${1}_xxxxxxxx"))
}
