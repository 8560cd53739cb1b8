package tabstego

import (
	"fmt"
	"slices"

	stegerrors "github.com/tamirms/tabstego/errors"
)

// Table is the tabular data provider Encode and Decode work on. Rows are
// addressed by position and are never modified.
type Table interface {
	// RowCount returns the number of rows.
	RowCount() int

	// RowFields returns the cells of row i in column order. The caller
	// must not modify the returned slice.
	RowFields(i int) []string

	// Reorder returns a new table whose row j is row indices[j] of the
	// receiver. indices must be a permutation of [0, RowCount()).
	Reorder(indices []int) (Table, error)
}

// MemTable is an in-memory Table with an optional header row.
type MemTable struct {
	header []string
	rows   [][]string
}

// NewMemTable builds a table. header may be nil. Every row must have the
// same width as the header, or as the first row when there is no header.
// The slices are retained, not copied.
func NewMemTable(header []string, rows [][]string) (*MemTable, error) {
	width := len(header)
	if header == nil && len(rows) > 0 {
		width = len(rows[0])
	}
	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", stegerrors.ErrRaggedRow, i, len(r), width)
		}
	}
	return &MemTable{header: header, rows: rows}, nil
}

// Header returns the column names, or nil.
func (t *MemTable) Header() []string { return t.header }

// RowCount returns the number of rows.
func (t *MemTable) RowCount() int { return len(t.rows) }

// RowFields returns the cells of row i.
func (t *MemTable) RowFields(i int) []string { return t.rows[i] }

// Rows returns all rows in order.
func (t *MemTable) Rows() [][]string { return t.rows }

// Reorder returns a reordered copy. Row slices are shared.
func (t *MemTable) Reorder(indices []int) (Table, error) {
	if err := checkPermutation(indices, len(t.rows)); err != nil {
		return nil, err
	}
	rows := make([][]string, len(indices))
	for j, i := range indices {
		rows[j] = t.rows[i]
	}
	return &MemTable{header: t.header, rows: rows}, nil
}

// Delete returns a copy without the given row positions.
func (t *MemTable) Delete(positions ...int) *MemTable {
	drop := make(map[int]bool, len(positions))
	for _, p := range positions {
		drop[p] = true
	}
	rows := make([][]string, 0, len(t.rows))
	for i, r := range t.rows {
		if !drop[i] {
			rows = append(rows, r)
		}
	}
	return &MemTable{header: t.header, rows: rows}
}

// Reversed returns a copy with the row order flipped.
func (t *MemTable) Reversed() *MemTable {
	rows := slices.Clone(t.rows)
	slices.Reverse(rows)
	return &MemTable{header: t.header, rows: rows}
}

func checkPermutation(indices []int, n int) error {
	if len(indices) != n {
		return fmt.Errorf("%w: %d indices for %d rows", stegerrors.ErrInvalidOrder, len(indices), n)
	}
	seen := make([]bool, n)
	for _, i := range indices {
		if i < 0 || i >= n || seen[i] {
			return fmt.Errorf("%w: index %d", stegerrors.ErrInvalidOrder, i)
		}
		seen[i] = true
	}
	return nil
}

// subsetTable is a read-only view of selected rows of another table.
type subsetTable struct {
	base Table
	rows []int
}

func (s *subsetTable) RowCount() int { return len(s.rows) }

func (s *subsetTable) RowFields(i int) []string { return s.base.RowFields(s.rows[i]) }

func (s *subsetTable) Reorder(indices []int) (Table, error) {
	if err := checkPermutation(indices, len(s.rows)); err != nil {
		return nil, err
	}
	rows := make([]int, len(indices))
	for j, i := range indices {
		rows[j] = s.rows[i]
	}
	return &subsetTable{base: s.base, rows: rows}, nil
}
