package engine

import (
	"fmt"
	"strings"
)

// Expr is the engine's column-transform vocabulary: the canonical form
// the expression compiler lowers surface fragments into.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and keeps
// the evaluator's type switch exhaustive.
//
// Expr types:
//   - ColRef: column access
//   - Lit: constant, broadcast on demand
//   - MapCall: element-wise (vectorized) application of a scalar function
//   - AggCall: whole-column application of a column function
//   - IfElse: vectorized two-way conditional selection
//   - CaseWhen: vectorized first-match-wins conditional selection
type Expr interface {
	exprNode() // Marker method - seals interface to this package
	String() string
}

// ColRef accesses a column by name.
type ColRef struct {
	Name string
}

func (ColRef) exprNode() {}

func (e ColRef) String() string { return fmt.Sprintf("col(%s)", e.Name) }

// Lit is a constant value, broadcast across rows where needed.
type Lit struct {
	Value Value
}

func (Lit) exprNode() {}

func (e Lit) String() string { return fmt.Sprintf("lit(%s)", Format(e.Value)) }

// MapCall applies a scalar function element-wise across its arguments.
// Length-1 arguments broadcast against full-length arguments.
type MapCall struct {
	Fn   string
	Args []Expr
}

func (MapCall) exprNode() {}

func (e MapCall) String() string {
	return fmt.Sprintf("map(%s%s)", e.Fn, renderArgs(e.Args))
}

// AggCall applies a column function to whole columns. The result is
// either a single reduced value or a full-length derived column,
// depending on the function.
type AggCall struct {
	Fn   string
	Args []Expr
}

func (AggCall) exprNode() {}

func (e AggCall) String() string {
	return fmt.Sprintf("%s(%s)", e.Fn, strings.TrimPrefix(renderArgs(e.Args), ", "))
}

// IfElse selects between two branches per row. A missing condition
// yields a missing result.
type IfElse struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (IfElse) exprNode() {}

func (e IfElse) String() string {
	return fmt.Sprintf("if_else(%s, %s, %s)", e.Cond, e.Then, e.Else)
}

// CaseClause is one predicate/result arm of a CaseWhen.
type CaseClause struct {
	Cond Expr
	Then Expr
}

// CaseWhen evaluates clauses per row in order; the first clause whose
// condition holds supplies the value. Rows matching no clause take the
// Default, or missing when Default is nil.
type CaseWhen struct {
	Clauses []CaseClause
	Default Expr
}

func (CaseWhen) exprNode() {}

func (e CaseWhen) String() string {
	var sb strings.Builder
	sb.WriteString("case_when(")
	for i, c := range e.Clauses {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "when(%s, %s)", c.Cond, c.Then)
	}
	if e.Default != nil {
		if len(e.Clauses) > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "default(%s)", e.Default)
	}
	sb.WriteString(")")
	return sb.String()
}

func renderArgs(args []Expr) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(", ")
		sb.WriteString(a.String())
	}
	return sb.String()
}
