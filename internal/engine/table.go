package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Column is a named vector of cells.
type Column struct {
	Name  string
	Cells []Value
}

// Table is a flat columnar dataset: an ordered list of equal-length
// columns with unique names. Tables are immutable; every operation
// returns a new Table and may share cell slices with its input.
type Table struct {
	cols []Column
}

// NewTable builds a table from columns, validating shape.
func NewTable(cols ...Column) (*Table, error) {
	seen := make(map[string]bool, len(cols))
	n := -1
	for _, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column with empty name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if n == -1 {
			n = len(c.Cells)
		} else if len(c.Cells) != n {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, len(c.Cells), n)
		}
	}
	return &Table{cols: append([]Column(nil), cols...)}, nil
}

// NRows returns the row count. An empty table has zero rows.
func (t *Table) NRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0].Cells)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Columns returns the columns in order.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.cols...)
}

// Project keeps exactly the named columns, in the given order.
func (t *Table) Project(names []string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		cols = append(cols, c)
	}
	return NewTable(cols...)
}

// DropMatching removes every column whose name satisfies match,
// preserving order of the rest.
func (t *Table) DropMatching(match func(string) bool) *Table {
	cols := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !match(c.Name) {
			cols = append(cols, c)
		}
	}
	return &Table{cols: cols}
}

// Rename renames columns. Pairs are (old, new); order of application is
// the order given, and renaming to an existing live name is an error.
func (t *Table) Rename(pairs [][2]string) (*Table, error) {
	cols := append([]Column(nil), t.cols...)
	for _, p := range pairs {
		old, next := p[0], p[1]
		idx := -1
		for i, c := range cols {
			if c.Name == old {
				idx = i
			}
		}
		if idx == -1 {
			return nil, fmt.Errorf("unknown column %q", old)
		}
		for i, c := range cols {
			if i != idx && c.Name == next {
				return nil, fmt.Errorf("rename %q -> %q: target column exists", old, next)
			}
		}
		cols[idx].Name = next
	}
	return &Table{cols: cols}, nil
}

// WithColumn adds a column, replacing an existing column of the same
// name in place (mutate semantics: replaced columns keep their
// position, new columns append on the right).
func (t *Table) WithColumn(name string, cells []Value) (*Table, error) {
	if len(cells) != t.NRows() && len(t.cols) > 0 {
		return nil, fmt.Errorf("column %q has %d rows, want %d", name, len(cells), t.NRows())
	}
	cols := append([]Column(nil), t.cols...)
	for i, c := range cols {
		if c.Name == name {
			cols[i] = Column{Name: name, Cells: cells}
			return &Table{cols: cols}, nil
		}
	}
	cols = append(cols, Column{Name: name, Cells: cells})
	return &Table{cols: cols}, nil
}

// TakeRows builds a new table from the given 0-based row indices, in
// order. Indices may repeat.
func (t *Table) TakeRows(idx []int) *Table {
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		cells := make([]Value, len(idx))
		for j, r := range idx {
			cells[j] = c.Cells[r]
		}
		cols[i] = Column{Name: c.Name, Cells: cells}
	}
	return &Table{cols: cols}
}

// FilterMask keeps the rows whose mask entry is true.
func (t *Table) FilterMask(keep []bool) *Table {
	idx := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			idx = append(idx, i)
		}
	}
	return t.TakeRows(idx)
}

// SortKeyCells is one evaluated sort key: a full-length cell vector plus
// its direction.
type SortKeyCells struct {
	Cells []Value
	Desc  bool
}

// SortRows stably sorts rows by the given keys in order. Ties between
// rows fall through to later keys and finally to original row order
// (guaranteed by the stable sort). Missing values order last in both
// directions.
func (t *Table) SortRows(keys []SortKeyCells) *Table {
	idx := make([]int, t.NRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := idx[a], idx[b]
		for _, k := range keys {
			va, vb := k.Cells[ra], k.Cells[rb]
			// Missing stays last even under desc, so compare
			// null-ness before applying direction.
			na, nb := IsNull(va), IsNull(vb)
			if na != nb {
				return nb
			}
			c := Compare(va, vb)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return t.TakeRows(idx)
}

// DistinctRows removes duplicate rows, keeping the first occurrence in
// row order. With an empty column list, whole rows are compared;
// otherwise only the named columns decide duplication but all columns
// of the surviving rows are retained.
func (t *Table) DistinctRows(cols []string) (*Table, error) {
	names := cols
	if len(names) == 0 {
		names = t.Names()
	}
	keyCols := make([]Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		keyCols = append(keyCols, c)
	}

	seen := make(map[string]bool)
	idx := make([]int, 0, t.NRows())
	for r := 0; r < t.NRows(); r++ {
		var sb strings.Builder
		for _, c := range keyCols {
			sb.WriteString(GroupKey(c.Cells[r]))
			sb.WriteByte('\x1f')
		}
		key := sb.String()
		if !seen[key] {
			seen[key] = true
			idx = append(idx, r)
		}
	}
	return t.TakeRows(idx), nil
}

// DropMissing removes rows holding a missing value in any of the named
// columns. With an empty column list, every column is checked.
func (t *Table) DropMissing(cols []string) (*Table, error) {
	names := cols
	if len(names) == 0 {
		names = t.Names()
	}
	check := make([]Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		check = append(check, c)
	}

	keep := make([]bool, t.NRows())
	for r := range keep {
		keep[r] = true
		for _, c := range check {
			if IsNull(c.Cells[r]) {
				keep[r] = false
				break
			}
		}
	}
	return t.FilterMask(keep), nil
}

// RowIndexCells returns the 1-based row position vector.
func (t *Table) RowIndexCells() []Value {
	cells := make([]Value, t.NRows())
	for i := range cells {
		cells[i] = Int(i + 1)
	}
	return cells
}

// RowCountCells returns the row count broadcast to every row.
func (t *Table) RowCountCells() []Value {
	n := t.NRows()
	cells := make([]Value, n)
	for i := range cells {
		cells[i] = Int(n)
	}
	return cells
}
