package kv

// CellState classifies a Cell's relationship to the key it was asked to
// locate.
type CellState int

const (
	// CellInvalid means the column has no entry at or after the sought key.
	CellInvalid CellState = iota
	// CellEqual means the column holds exactly the sought key.
	CellEqual
	// CellGreater means the nearest entry is strictly greater than the
	// sought key (the column has no exact match).
	CellGreater
	// CellLessOrEqual is used by reverse lookups: the nearest entry is
	// less than or equal to the sought key.
	CellLessOrEqual
)

// Cell is one column's positioned read within a Row: the value found (if
// any), and whether it was an exact match or the nearest neighbor.
type Cell struct {
	Column string
	State  CellState
	Key    []byte
	Value  []byte
	Err    error
}

// Found reports whether Cell located a usable value.
func (c Cell) Found() bool {
	return c.Err == nil && (c.State == CellEqual || c.State == CellGreater || c.State == CellLessOrEqual)
}
