package kv

import (
	"context"

	"github.com/cluso/lsmkv/pkg/lsm"
	"github.com/cluso/lsmkv/pkg/reqpool"
)

// ColumnReader is the subset of Engine a Row seek needs, kept narrow so
// callers can pass a *lsm.Engine directly without an adapter.
type ColumnReader interface {
	Get(key []byte) ([]byte, error)
}

// ColumnSeek names one column to read as part of a Row.
type ColumnSeek struct {
	Name   string
	Reader ColumnReader
}

// Row is the result of seeking the same key across several columns at
// once: one Cell per column, populated concurrently via the shared
// background request pool rather than sequentially.
type Row struct {
	Key   []byte
	Cells map[string]Cell
}

// SeekRow issues a Get(key) against every column in seeks concurrently
// through pool, joining once all columns have answered (or one hard
// error occurs for a reason other than key-not-found).
func SeekRow(ctx context.Context, pool *reqpool.Pool, key []byte, seeks []ColumnSeek) (Row, error) {
	reqs := make([]reqpool.Request[Cell], len(seeks))
	for i, s := range seeks {
		s := s
		reqs[i] = func(ctx context.Context) (Cell, error) {
			v, err := s.Reader.Get(key)
			if err == lsm.ErrKeyNotFound {
				return Cell{Column: s.Name, State: CellInvalid, Key: key}, nil
			}
			if err != nil {
				return Cell{Column: s.Name, Key: key, Err: err}, err
			}
			return Cell{Column: s.Name, State: CellEqual, Key: key, Value: v}, nil
		}
	}

	results, err := reqpool.Join(ctx, pool, reqs)
	if err != nil {
		return Row{}, err
	}

	row := Row{Key: key, Cells: make(map[string]Cell, len(results))}
	for _, c := range results {
		row.Cells[c.Column] = c
	}
	return row, nil
}
