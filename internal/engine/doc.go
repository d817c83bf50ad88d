// Package engine implements the columnar data-processing engine the
// expression compiler targets: flat and grouped tabular datasets, a
// sealed column-transform expression vocabulary, and the primitives the
// verbs are orchestrated from (projection, transform, filtering, stable
// sorting, grouping, deduplication, missing-value handling).
//
// The engine is deliberately dumb about surface syntax. It evaluates
// fully-qualified expressions in which column references, literals, and
// element-wise versus whole-column application are already explicit;
// all rewriting happens upstream in the compiler packages.
//
// Determinism rules:
//   - Sorts are stable; ties preserve original row order.
//   - Group partitions are ordered ascending by key tuple.
//   - Missing values sort last in both directions and collapse to
//     "exclude the row" when a predicate evaluates to missing.
//
// The evaluation loop is strictly single-threaded and synchronous; an
// expression either evaluates to completion or returns an error.
package engine
