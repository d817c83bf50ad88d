package cli

import (
	"fmt"
	"strings"

	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/parse"
	"github.com/tidalframe/tidal/internal/tidy"
)

// PipelineResult is the outcome of running a script: a dataset, or a
// plain value column when the script ends with pull.
type PipelineResult struct {
	Dataset engine.Dataset
	Values  []engine.Value
	Pulled  bool
}

// SplitPipeline splits a script into verb-call stanzas. Stanzas are
// separated by newlines or the |> pipe operator; blank stanzas and
// lines starting with # are skipped. Separators inside string literals
// are left alone.
func SplitPipeline(script string) []string {
	var (
		stanzas []string
		start   int
		quote   rune
	)
	runes := []rune(script)
	emit := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" && !strings.HasPrefix(s, "#") {
			stanzas = append(stanzas, s)
		}
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == '\\' {
				i++
			} else if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '\n':
			emit(i)
			start = i + 1
		case r == '|' && i+1 < len(runes) && runes[i+1] == '>':
			emit(i)
			i++
			start = i + 1
		}
	}
	emit(len(runes))
	return stanzas
}

// ApplyStanza parses one verb-call stanza and dispatches it against the
// session. A pull stanza returns values instead of a dataset.
func ApplyStanza(s *tidy.Session, ds engine.Dataset, stanza string) (*PipelineResult, error) {
	verb, args, err := parse.VerbCall(stanza)
	if err != nil {
		return nil, err
	}

	switch verb {
	case "pull":
		if len(args) != 1 {
			return nil, fmt.Errorf("pull wants exactly one argument, got %d", len(args))
		}
		values, err := s.Pull(ds, args[0])
		if err != nil {
			return nil, err
		}
		return &PipelineResult{Values: values, Pulled: true}, nil
	case "ungroup":
		if len(args) != 0 {
			return nil, fmt.Errorf("ungroup takes no arguments")
		}
		out, err := s.Ungroup(ds)
		if err != nil {
			return nil, err
		}
		return &PipelineResult{Dataset: out}, nil
	}

	fn, ok := verbTable[verb]
	if !ok {
		return nil, fmt.Errorf("unknown verb %q", verb)
	}
	out, err := fn(s, ds, args)
	if err != nil {
		return nil, err
	}
	return &PipelineResult{Dataset: out}, nil
}

// verbTable maps verb names to session methods with the common
// variadic shape. pull and ungroup have different shapes and dispatch
// directly in ApplyStanza.
var verbTable = map[string]func(*tidy.Session, engine.Dataset, []string) (engine.Dataset, error){
	"select":    func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Select(ds, a...) },
	"rename":    func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Rename(ds, a...) },
	"mutate":    func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Mutate(ds, a...) },
	"filter":    func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Filter(ds, a...) },
	"summarize": func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Summarize(ds, a...) },
	"summarise": func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Summarise(ds, a...) },
	"group_by":  func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.GroupBy(ds, a...) },
	"arrange":   func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Arrange(ds, a...) },
	"distinct":  func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Distinct(ds, a...) },
	"slice":     func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.Slice(ds, a...) },
	"drop_na":   func(s *tidy.Session, ds engine.Dataset, a []string) (engine.Dataset, error) { return s.DropNA(ds, a...) },
}

// RunPipeline splits a script and applies every stanza in order. A
// pull stanza must be the last one.
func RunPipeline(s *tidy.Session, ds engine.Dataset, script string) (*PipelineResult, error) {
	stanzas := SplitPipeline(script)
	if len(stanzas) == 0 {
		return nil, fmt.Errorf("empty pipeline")
	}
	res := &PipelineResult{Dataset: ds}
	for i, stanza := range stanzas {
		if res.Pulled {
			return nil, fmt.Errorf("stanza %d: pull must be the last stanza", i+1)
		}
		out, err := ApplyStanza(s, res.Dataset, stanza)
		if err != nil {
			return nil, fmt.Errorf("stanza %d (%s): %w", i+1, stanza, err)
		}
		res = out
	}
	return res, nil
}
