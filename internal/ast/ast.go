package ast

import (
	"fmt"
	"strings"

	"github.com/tidalframe/tidal/internal/engine"
)

// Fragment is one uninterpreted syntax argument passed to a verb.
//
// This is a sealed interface - only types in this package implement it.
// Fragments are immutable: rewriting always produces a new tree, never
// mutates one in place.
//
// Fragment types:
//   - Ident: bare identifier (usually a column reference)
//   - Literal: constant value
//   - Call: function application with an identifier head
//   - Assign: top-level "name = expr" naming form
//   - Unary: prefix operator application (- or !)
//   - Binary: infix operator application
//   - Interp: a !!-marked sub-fragment for caller-side interpolation
type Fragment interface {
	fragmentNode() // Marker method - seals interface to this package
	// String returns the canonical surface form of the fragment. It is
	// used for destination-column naming and error diagnostics.
	String() string
}

// Ident is a bare identifier.
type Ident struct {
	Name string
}

func (Ident) fragmentNode() {}

func (f Ident) String() string { return f.Name }

// Literal is a constant value appearing in source.
type Literal struct {
	Value engine.Value
}

func (Literal) fragmentNode() {}

func (f Literal) String() string {
	if s, ok := f.Value.(engine.Str); ok {
		return fmt.Sprintf("%q", string(s))
	}
	return engine.Format(f.Value)
}

// Call is a function application. Heads are restricted to plain
// identifiers; there are no computed callees in the surface language.
type Call struct {
	Fn   string
	Args []Fragment
}

func (Call) fragmentNode() {}

func (f Call) String() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Fn, strings.Join(parts, ", "))
}

// Assign is the top-level "name = expr" form naming a destination
// column. It never nests.
type Assign struct {
	Name string
	Expr Fragment
}

func (Assign) fragmentNode() {}

func (f Assign) String() string { return fmt.Sprintf("%s = %s", f.Name, f.Expr) }

// Unary is a prefix operator application.
type Unary struct {
	Op string // "-" or "!"
	X  Fragment
}

func (Unary) fragmentNode() {}

func (f Unary) String() string { return f.Op + f.X.String() }

// Binary is an infix operator application. The ":" operator builds
// integer ranges (slice arguments) and "=>" builds case_when clause
// arms; both are rejected outside their special positions.
type Binary struct {
	Op string
	X  Fragment
	Y  Fragment
}

func (Binary) fragmentNode() {}

func (f Binary) String() string {
	if f.Op == ":" {
		return fmt.Sprintf("%s:%s", f.X, f.Y)
	}
	return fmt.Sprintf("%s %s %s", f.X, f.Op, f.Y)
}

// Interp is a sub-fragment marked with the !! escape sigil. Src holds
// the marked sub-expression's original source text, which the resolver
// evaluates in the caller's environment before any column-level
// rewriting. The sub-expression's own grammar belongs to the resolver,
// not to the surface parser.
type Interp struct {
	Src string
}

func (Interp) fragmentNode() {}

func (f Interp) String() string { return "!!" + f.Src }
