package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tidalframe/tidal/internal/parse"
)

// CheckResult reports the outcome of checking one script.
type CheckResult struct {
	Stanzas int          `json:"stanzas" yaml:"stanzas"`
	Errors  []CheckError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// CheckError locates one bad stanza.
type CheckError struct {
	Stanza  int    `json:"stanza" yaml:"stanza"`
	Source  string `json:"source" yaml:"source"`
	Message string `json:"message" yaml:"message"`
}

// NewCheckCommand creates the check command, which parses a script
// without running it.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <script>",
		Short: "Parse a pipeline script without running it",
		Long: `Parse every stanza of a pipeline script and report syntax errors.

No data is loaded and no verbs execute; interpolations are checked for
balanced syntax only, since their values depend on the environment.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkScript(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func checkScript(opts *RootOptions, scriptPath string, cmd *cobra.Command) error {
	script, err := readScript(scriptPath, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read script", err)
	}

	stanzas := SplitPipeline(script)
	res := CheckResult{Stanzas: len(stanzas)}
	for i, stanza := range stanzas {
		if msg := checkStanza(stanza); msg != "" {
			res.Errors = append(res.Errors, CheckError{
				Stanza:  i + 1,
				Source:  stanza,
				Message: msg,
			})
		}
	}

	w := cmd.OutOrStdout()
	switch opts.Format {
	case "json":
		if err := json.NewEncoder(w).Encode(res); err != nil {
			return err
		}
	case "yaml":
		if err := yaml.NewEncoder(w).Encode(res); err != nil {
			return err
		}
	default:
		for _, e := range res.Errors {
			fmt.Fprintf(w, "stanza %d: %s\n  %s\n", e.Stanza, e.Message, e.Source)
		}
		if len(res.Errors) == 0 {
			fmt.Fprintf(w, "OK: %d stanza(s)\n", res.Stanzas)
		}
	}

	if len(res.Errors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d stanza(s) failed to parse", len(res.Errors)))
	}
	return nil
}

// checkStanza parses one stanza and each of its arguments, returning
// an error message or "".
func checkStanza(stanza string) string {
	verb, args, err := parse.VerbCall(stanza)
	if err != nil {
		return err.Error()
	}
	if verb != "ungroup" && len(args) == 0 && verbNeedsArgs(verb) {
		return fmt.Sprintf("%s wants at least one argument", verb)
	}
	for _, a := range args {
		if _, err := parse.Fragment(a); err != nil {
			return err.Error()
		}
	}
	return ""
}

func verbNeedsArgs(verb string) bool {
	switch verb {
	case "select", "rename", "mutate", "filter", "summarize", "summarise",
		"group_by", "arrange", "slice", "pull":
		return true
	}
	return false
}
