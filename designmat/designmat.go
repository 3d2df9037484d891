// Package designmat builds named, sparse, batch-varying design
// matrices. A DesignMatrix holds cell assignments keyed by row and
// column name; each cell carries a base parameter, an optional
// inverse-link and any number of additive batch-varying adjustments.
// ForBatch materializes the matrix for a concrete batch shape,
// broadcasting cells with no batch dependence.
package designmat

import (
	"gonum.org/v1/gonum/mat"

	"github.com/go-statespace/statespace"
)

type cell struct {
	base        statespace.Param
	link        Link
	assigned    bool
	adjustments []Adjustment
}

// value is link(base + sum of adjustments); an adjust-only cell has an
// implicit zero base and identity link
func (c *cell) value(b Batch, g, t int) (float64, error) {
	v := 0.0
	if c.base != nil {
		v = c.base.Value()
	}
	for _, adj := range c.adjustments {
		a, err := adj.eval(b, g, t)
		if err != nil {
			return 0, err
		}
		v += a
	}

	return c.link.apply(v), nil
}

func (c *cell) varies() (byGroup, byTime bool) {
	for _, adj := range c.adjustments {
		g, t := adj.varies()
		byGroup = byGroup || g
		byTime = byTime || t
	}

	return byGroup, byTime
}

// DesignMatrix is a named sparse matrix template. Rows and columns are
// addressed by name; unassigned cells are zero. The template is never
// mutated by a batch build.
type DesignMatrix struct {
	name   string
	rows   []string
	cols   []string
	rowIdx map[string]int
	colIdx map[string]int
	cells  map[[2]int]*cell
}

// New creates new DesignMatrix with the given row and column names.
// The name identifies the matrix in error messages. Rows may be empty:
// a measurement matrix starts with no rows and grows via AddRow as
// measures are registered.
// It returns error if the row or column names contain duplicates.
func New(name string, rows, cols []string) (*DesignMatrix, error) {
	m := &DesignMatrix{
		name:   name,
		rowIdx: make(map[string]int, len(rows)),
		colIdx: make(map[string]int, len(cols)),
		cells:  make(map[[2]int]*cell),
	}

	for _, r := range rows {
		if _, ok := m.rowIdx[r]; ok {
			return nil, statespace.Structuralf("%s matrix: duplicate row %q", name, r)
		}
		m.rowIdx[r] = len(m.rows)
		m.rows = append(m.rows, r)
	}
	for _, c := range cols {
		if _, ok := m.colIdx[c]; ok {
			return nil, statespace.Structuralf("%s matrix: duplicate column %q", name, c)
		}
		m.colIdx[c] = len(m.cols)
		m.cols = append(m.cols, c)
	}

	return m, nil
}

// AddRow appends a named row.
// It returns error if the row already exists.
func (m *DesignMatrix) AddRow(name string) error {
	if _, ok := m.rowIdx[name]; ok {
		return statespace.Structuralf("%s matrix: duplicate row %q", m.name, name)
	}
	m.rowIdx[name] = len(m.rows)
	m.rows = append(m.rows, name)

	return nil
}

// Rows returns the ordered row names.
func (m *DesignMatrix) Rows() []string {
	out := make([]string, len(m.rows))
	copy(out, m.rows)

	return out
}

// Cols returns the ordered column names.
func (m *DesignMatrix) Cols() []string {
	out := make([]string, len(m.cols))
	copy(out, m.cols)

	return out
}

// Empty returns true if no cell has been assigned or adjusted.
func (m *DesignMatrix) Empty() bool {
	return len(m.cells) == 0
}

func (m *DesignMatrix) key(row, col string) ([2]int, error) {
	r, ok := m.rowIdx[row]
	if !ok {
		return [2]int{}, statespace.Structuralf("%s matrix: unknown row %q", m.name, row)
	}
	c, ok := m.colIdx[col]
	if !ok {
		return [2]int{}, statespace.Structuralf("%s matrix: unknown column %q", m.name, col)
	}

	return [2]int{r, c}, nil
}

// Assign sets the base value and link of the cell (row, col).
// It returns DuplicateAssignmentError if the cell has already been
// assigned and overwrite is false; an overwrite replaces the base value
// and link but keeps any adjustments already layered on the cell.
func (m *DesignMatrix) Assign(row, col string, value statespace.Param, link Link, overwrite bool) error {
	if value == nil {
		return statespace.Structuralf("%s matrix: nil value for cell (%q, %q)", m.name, row, col)
	}

	k, err := m.key(row, col)
	if err != nil {
		return err
	}

	c := m.cells[k]
	if c == nil {
		c = &cell{}
		m.cells[k] = c
	}
	if c.assigned && !overwrite {
		return &statespace.DuplicateAssignmentError{Row: row, Col: col}
	}
	c.base = value
	c.link = link
	c.assigned = true

	return nil
}

// Adjust appends an additive batch-varying contribution to the cell
// (row, col). Adjusting an unassigned cell is allowed: the base is an
// implicit zero. With checkSlow true an adjustment that varies in
// neither group nor time is rejected, since it belongs in Assign; pass
// false to layer a plain parameter offset anyway.
func (m *DesignMatrix) Adjust(row, col string, adj Adjustment, checkSlow bool) error {
	if adj == nil {
		return statespace.Structuralf("%s matrix: nil adjustment for cell (%q, %q)", m.name, row, col)
	}

	if checkSlow {
		byGroup, byTime := adj.varies()
		if !byGroup && !byTime {
			return statespace.Structuralf(
				"%s matrix: adjustment to cell (%q, %q) varies in neither group nor time; assign it instead or disable the check",
				m.name, row, col)
		}
	}

	k, err := m.key(row, col)
	if err != nil {
		return err
	}

	c := m.cells[k]
	if c == nil {
		c = &cell{link: Identity}
		m.cells[k] = c
	}
	c.adjustments = append(c.adjustments, adj)

	return nil
}

// Varies reports whether any cell varies across groups and across
// timesteps.
func (m *DesignMatrix) Varies() (byGroup, byTime bool) {
	for _, c := range m.cells {
		g, t := c.varies()
		byGroup = byGroup || g
		byTime = byTime || t
	}

	return byGroup, byTime
}

// ForBatch materializes the matrix for the given batch shape and
// returns it. Cells with no batch dependence are evaluated once and
// broadcast across the batch.
// It returns error if the matrix has no rows or columns, the batch
// shape is invalid, or a cell references batch data the batch does not
// carry.
func (m *DesignMatrix) ForBatch(b Batch) (*BatchMat, error) {
	if len(m.rows) == 0 || len(m.cols) == 0 {
		return nil, statespace.Structuralf("%s matrix: cannot materialize a [%d x %d] matrix", m.name, len(m.rows), len(m.cols))
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	byGroup, byTime := m.Varies()

	build := func(g, t int) (*mat.Dense, error) {
		out := mat.NewDense(len(m.rows), len(m.cols), nil)
		for k, c := range m.cells {
			v, err := c.value(b, g, t)
			if err != nil {
				return nil, err
			}
			out.Set(k[0], k[1], v)
		}

		return out, nil
	}

	return NewBatchMat(len(m.rows), len(m.cols), b, byGroup, byTime, build)
}
