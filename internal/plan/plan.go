// Package plan models the canonical engine call sequence a verb
// invocation compiles to, and renders it as readable code for the
// explain toggle. A Plan is built in full before anything executes, so
// a failing fragment aborts the verb with the input dataset untouched.
package plan

import (
	"fmt"
	"strings"

	"github.com/tidalframe/tidal/internal/engine"
	"github.com/tidalframe/tidal/internal/rewrite"
)

// Step is one engine call in a compiled verb.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern keeps the executor's type switch
// exhaustive.
type Step interface {
	stepNode() // Marker method - seals interface to this package
	// Render returns the step as readable engine-call code.
	Render() string
}

// NamedExpr pairs a destination column with its engine expression.
type NamedExpr struct {
	Name string
	Expr engine.Expr
}

// MaterializeRowCount appends the ephemeral row-count pseudo-column,
// per group on grouped input.
type MaterializeRowCount struct {
	Col string
}

func (MaterializeRowCount) stepNode() {}

func (s MaterializeRowCount) Render() string {
	return fmt.Sprintf("with_columns(%s = row_count())", s.Col)
}

// MaterializeRowIndex appends the ephemeral row-position pseudo-column,
// per group on grouped input.
type MaterializeRowIndex struct {
	Col string
}

func (MaterializeRowIndex) stepNode() {}

func (s MaterializeRowIndex) Render() string {
	return fmt.Sprintf("with_columns(%s = row_index())", s.Col)
}

// Project keeps exactly the named columns, in order.
type Project struct {
	Cols []string
}

func (Project) stepNode() {}

func (s Project) Render() string {
	return fmt.Sprintf("project(%s)", strings.Join(s.Cols, ", "))
}

// Rename renames columns via (old, new) pairs.
type Rename struct {
	Pairs [][2]string
}

func (Rename) stepNode() {}

func (s Rename) Render() string {
	parts := make([]string, len(s.Pairs))
	for i, p := range s.Pairs {
		parts[i] = fmt.Sprintf("%s = %s", p[1], p[0])
	}
	return fmt.Sprintf("rename(%s)", strings.Join(parts, ", "))
}

// WithColumns evaluates expressions and adds (or replaces) the
// resulting columns.
type WithColumns struct {
	Exprs []NamedExpr
}

func (WithColumns) stepNode() {}

func (s WithColumns) Render() string {
	return fmt.Sprintf("with_columns(%s)", renderExprs(s.Exprs))
}

// Filter keeps the rows where the predicate holds; a missing predicate
// value excludes the row.
type Filter struct {
	Pred engine.Expr
}

func (Filter) stepNode() {}

func (s Filter) Render() string {
	return fmt.Sprintf("filter(%s)", s.Pred)
}

// Aggregate reduces each group (or the whole flat dataset) to one row
// holding the named reductions.
type Aggregate struct {
	Exprs []NamedExpr
}

func (Aggregate) stepNode() {}

func (s Aggregate) Render() string {
	return fmt.Sprintf("aggregate(%s)", renderExprs(s.Exprs))
}

// Sort stably sorts rows by the given keys.
type Sort struct {
	Keys []rewrite.SortKey
}

func (Sort) stepNode() {}

func (s Sort) Render() string {
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		if k.Desc {
			parts[i] = fmt.Sprintf("desc(%s)", k.Expr)
		} else {
			parts[i] = k.Expr.String()
		}
	}
	return fmt.Sprintf("sort(%s)", strings.Join(parts, ", "))
}

// Distinct removes duplicate rows, keeping the first occurrence. An
// empty column list compares whole rows.
type Distinct struct {
	Cols []string
}

func (Distinct) stepNode() {}

func (s Distinct) Render() string {
	return fmt.Sprintf("distinct(%s)", strings.Join(s.Cols, ", "))
}

// DropMissing removes rows with a missing value in any of the named
// columns (all columns when empty).
type DropMissing struct {
	Cols []string
}

func (DropMissing) stepNode() {}

func (s DropMissing) Render() string {
	return fmt.Sprintf("drop_missing(%s)", strings.Join(s.Cols, ", "))
}

// Slice keeps the rows selected by the index spec, resolved per group.
type Slice struct {
	Spec rewrite.SliceSpec
}

func (Slice) stepNode() {}

func (s Slice) Render() string {
	parts := make([]string, len(s.Spec.Indices))
	for i, idx := range s.Spec.Indices {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("slice(%s)", strings.Join(parts, ", "))
}

// Group re-derives a fresh grouping from key columns, replacing any
// prior grouping. Groups order ascending by key.
type Group struct {
	Keys []string
}

func (Group) stepNode() {}

func (s Group) Render() string {
	return fmt.Sprintf("group_by(%s)", strings.Join(s.Keys, ", "))
}

// Ungroup discards grouping structure.
type Ungroup struct{}

func (Ungroup) stepNode() {}

func (Ungroup) Render() string { return "ungroup()" }

// Strip removes every column whose name carries the ephemeral
// pseudo-column prefix.
type Strip struct {
	Prefix string
}

func (Strip) stepNode() {}

func (s Strip) Render() string {
	return fmt.Sprintf("drop_matching(%q)", s.Prefix+"*")
}

// Plan is the full engine call sequence for one verb invocation.
type Plan struct {
	Verb  string
	Steps []Step
}

// Add appends a step and returns the plan for chaining.
func (p *Plan) Add(s Step) *Plan {
	p.Steps = append(p.Steps, s)
	return p
}

// String renders the plan as readable code, one engine call per line.
func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", p.Verb)
	for _, s := range p.Steps {
		sb.WriteString("  ")
		sb.WriteString(s.Render())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func renderExprs(exprs []NamedExpr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = fmt.Sprintf("%s = %s", e.Name, e.Expr)
	}
	return strings.Join(parts, ", ")
}
