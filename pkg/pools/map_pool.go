package pools

import (
	"sync"
)

// CellMapPool pools map[string]any used when a row is decoded into its
// named columns for a caller, or when merge-operator state is threaded
// through a single Merge call as a scratch map of partial results.
type CellMapPool struct {
	pool sync.Pool
}

// NewCellMapPool creates a new cell map pool.
func NewCellMapPool() *CellMapPool {
	return &CellMapPool{
		pool: sync.Pool{
			New: func() any {
				return make(map[string]any, 8)
			},
		},
	}
}

// Get returns a cleared map from the pool.
func (p *CellMapPool) Get() map[string]any {
	m, ok := p.pool.Get().(map[string]any)
	if !ok {
		return make(map[string]any, 8)
	}
	clear(m)
	return m
}

// Put returns a map to the pool.
func (p *CellMapPool) Put(m map[string]any) {
	if m == nil || len(m) > 1000 {
		return // don't pool nil or very large maps
	}
	p.pool.Put(m)
}

// defaultCellMapPool backs the package-level GetCellMap/PutCellMap
// helpers for callers that want a shared cell-map pool.
var defaultCellMapPool = NewCellMapPool()

// GetCellMap returns a cell map from the default pool.
func GetCellMap() map[string]any {
	return defaultCellMapPool.Get()
}

// PutCellMap returns a cell map to the default pool.
func PutCellMap(m map[string]any) {
	defaultCellMapPool.Put(m)
}
