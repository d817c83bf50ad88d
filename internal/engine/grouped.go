package engine

import (
	"fmt"
	"sort"
)

// Dataset is the sealed two-variant dataset interface: a flat *Table or
// a *Grouped. Verbs are written once against Dataset; the variants
// differ only in how grouping metadata threads through.
type Dataset interface {
	dataset() // Marker method - seals interface to this package
}

func (*Table) dataset() {}

// Grouped associates group key columns with row partitions. Partitions
// are ordered ascending by key tuple, and rows inside a partition keep
// their original relative order.
type Grouped struct {
	keys  []string
	parts []*Table
}

func (*Grouped) dataset() {}

// Keys returns the grouping key column names in grouping order.
func (g *Grouped) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Partitions returns the group partitions in key order. Each partition
// retains all columns, including the key columns.
func (g *Grouped) Partitions() []*Table {
	return append([]*Table(nil), g.parts...)
}

// GroupBy partitions a table by the named key columns. Group order is
// ascending by key tuple; row order within a group is the original row
// order (the partitioning is stable).
func GroupBy(t *Table, keys []string) (*Grouped, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("group_by requires at least one key")
	}
	keyCols := make([]Column, len(keys))
	for i, k := range keys {
		c, ok := t.Column(k)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", k)
		}
		keyCols[i] = c
	}

	type bucket struct {
		firstRow int
		rows     []int
		keyVals  []Value
	}
	byKey := make(map[string]*bucket)
	var order []string
	for r := 0; r < t.NRows(); r++ {
		key := ""
		for _, c := range keyCols {
			key += GroupKey(c.Cells[r]) + "\x1f"
		}
		b, ok := byKey[key]
		if !ok {
			vals := make([]Value, len(keyCols))
			for i, c := range keyCols {
				vals[i] = c.Cells[r]
			}
			b = &bucket{firstRow: r, keyVals: vals}
			byKey[key] = b
			order = append(order, key)
		}
		b.rows = append(b.rows, r)
	}

	// Deterministic group ordering: ascending by key tuple.
	sort.SliceStable(order, func(a, b int) bool {
		ba, bb := byKey[order[a]], byKey[order[b]]
		for i := range ba.keyVals {
			c := Compare(ba.keyVals[i], bb.keyVals[i])
			if c != 0 {
				return c < 0
			}
		}
		return false
	})

	parts := make([]*Table, len(order))
	for i, key := range order {
		parts[i] = t.TakeRows(byKey[key].rows)
	}
	return &Grouped{keys: append([]string(nil), keys...), parts: parts}, nil
}

// Flatten concatenates the partitions back into a flat table in group
// order.
func (g *Grouped) Flatten() *Table {
	return Concat(g.parts)
}

// MapPartitions applies op to every partition and rebuilds the grouped
// dataset with the same keys. Partitions that come back empty are kept,
// so group identity survives row-dropping operations.
func (g *Grouped) MapPartitions(op func(*Table) (*Table, error)) (*Grouped, error) {
	parts := make([]*Table, len(g.parts))
	for i, p := range g.parts {
		out, err := op(p)
		if err != nil {
			return nil, err
		}
		parts[i] = out
	}
	return &Grouped{keys: append([]string(nil), g.keys...), parts: parts}, nil
}

// Rename renames columns across every partition, updating grouping
// keys that are themselves renamed.
func (g *Grouped) Rename(pairs [][2]string) (*Grouped, error) {
	out, err := g.MapPartitions(func(t *Table) (*Table, error) {
		return t.Rename(pairs)
	})
	if err != nil {
		return nil, err
	}
	for i, k := range out.keys {
		for _, p := range pairs {
			if p[0] == k {
				out.keys[i] = p[1]
			}
		}
	}
	return out, nil
}

// Concat concatenates tables with identical column sets, in order.
// An empty input yields an empty table.
func Concat(parts []*Table) *Table {
	if len(parts) == 0 {
		return &Table{}
	}
	names := parts[0].Names()
	cols := make([]Column, len(names))
	for i, name := range names {
		var cells []Value
		for _, p := range parts {
			c, _ := p.Column(name)
			cells = append(cells, c.Cells...)
		}
		cols[i] = Column{Name: name, Cells: cells}
	}
	return &Table{cols: cols}
}
