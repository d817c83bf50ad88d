// Package tidy exposes the verb surface: each verb compiles its
// argument fragments through interpolation resolution and the
// mode-appropriate rewriter into a canonical engine call sequence, then
// executes it. Verbs are all-or-nothing: a failing fragment aborts the
// invocation and leaves the input dataset unmodified.
package tidy

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/tidalframe/tidal/internal/ast"
	"github.com/tidalframe/tidal/internal/interp"
	"github.com/tidalframe/tidal/internal/parse"
	"github.com/tidalframe/tidal/internal/plan"
	"github.com/tidalframe/tidal/internal/rewrite"
)

// PseudoPrefix marks the ephemeral pseudo-columns materialized for n()
// and row_number(). Columns carrying the prefix are stripped before any
// verb returns; user columns must not use it.
const PseudoPrefix = ".__tidal_"

// Session owns the compiler state shared across verb invocations: the
// injectable vectorization registry, the caller environment visible to
// !! interpolation, and the explain toggle. A Session is not safe for
// concurrent use; each invocation runs synchronously to completion.
type Session struct {
	registry *rewrite.Registry
	env      interp.Env
	explain  bool
	explainW io.Writer
}

// Option configures a Session.
type Option func(*Session)

// WithEnv sets the caller environment for !! interpolation.
func WithEnv(env map[string]any) Option {
	return func(s *Session) { s.env = interp.Env(env) }
}

// WithRegistry replaces the default vectorization registry.
func WithRegistry(r *rewrite.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithExplain enables plan emission to w before every execution.
func WithExplain(w io.Writer) Option {
	return func(s *Session) {
		s.explain = true
		s.explainW = w
	}
}

// New creates a Session with the default registry and an empty
// environment.
func New(opts ...Option) *Session {
	s := &Session{
		registry: rewrite.NewRegistry(),
		env:      interp.Env{},
		explainW: os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the session's vectorization registry for
// caller-side additions and removals.
func (s *Session) Registry() *rewrite.Registry {
	return s.registry
}

// Let binds a name in the interpolation environment.
func (s *Session) Let(name string, value any) {
	s.env[name] = value
}

// SetOption adjusts a named session option. Recognized options:
//
//	explain (bool) - emit the generated engine call sequence before
//	                 every execution
//
// Unknown names or mistyped values signal InvalidOption.
func (s *Session) SetOption(name string, value any) error {
	switch name {
	case "explain":
		b, ok := value.(bool)
		if !ok {
			return rewrite.Errorf(rewrite.ErrCodeInvalidOption, name,
				"explain wants a bool, got %T", value)
		}
		s.explain = b
		return nil
	default:
		return rewrite.Errorf(rewrite.ErrCodeInvalidOption, name,
			"unknown option")
	}
}

// invocation carries the per-verb compile state: the resolved
// fragments, the OR-reduced pseudo-column flags, and the generated
// pseudo-column names.
type invocation struct {
	frags   []ast.Fragment
	usesN   bool
	usesRow bool
	nCol    string
	rowCol  string
	ctx     *rewrite.Context
	plan    *plan.Plan
}

// begin parses and interpolation-resolves all argument fragments for a
// verb, OR-reducing the pseudo-column flags across them. Pseudo-column
// names take a fresh uuid suffix per invocation so they cannot collide
// with user columns.
func (s *Session) begin(verb string, args []string) (*invocation, error) {
	inv := &invocation{plan: &plan.Plan{Verb: verb}}
	uid := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	inv.nCol = fmt.Sprintf("%sn_%s", PseudoPrefix, uid)
	inv.rowCol = fmt.Sprintf("%srow_%s", PseudoPrefix, uid)
	inv.ctx = &rewrite.Context{
		Registry:    s.registry,
		RowCountCol: inv.nCol,
		RowIndexCol: inv.rowCol,
	}

	for _, arg := range args {
		frag, err := parse.Fragment(arg)
		if err != nil {
			return nil, err
		}
		res, err := interp.Resolve(frag, s.env)
		if err != nil {
			return nil, err
		}
		inv.usesN = inv.usesN || res.UsesRowCount
		inv.usesRow = inv.usesRow || res.UsesRowIndex
		inv.frags = append(inv.frags, res.Fragments...)
	}
	return inv, nil
}

// materialize adds the pseudo-column steps the invocation needs.
func (inv *invocation) materialize() {
	if inv.usesN {
		inv.plan.Add(plan.MaterializeRowCount{Col: inv.nCol})
	}
	if inv.usesRow {
		inv.plan.Add(plan.MaterializeRowIndex{Col: inv.rowCol})
	}
}

// strip removes the pseudo-columns again, if any were materialized.
func (inv *invocation) strip() {
	if inv.usesN || inv.usesRow {
		inv.plan.Add(plan.Strip{Prefix: PseudoPrefix})
	}
}

// emit writes the compiled plan to the explain writer when enabled.
func (s *Session) emit(p *plan.Plan) {
	if s.explain && s.explainW != nil {
		fmt.Fprint(s.explainW, p.String())
	}
}
