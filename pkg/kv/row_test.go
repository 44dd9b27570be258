package kv

import (
	"context"
	"testing"

	"github.com/cluso/lsmkv/pkg/lsm"
	"github.com/cluso/lsmkv/pkg/reqpool"
)

type fakeReader struct {
	values map[string][]byte
}

func (f fakeReader) Get(key []byte) ([]byte, error) {
	if v, ok := f.values[string(key)]; ok {
		return v, nil
	}
	return nil, lsm.ErrKeyNotFound
}

func TestSeekRowQueriesEveryColumn(t *testing.T) {
	pool := reqpool.New(4)
	seeks := []ColumnSeek{
		{Name: "profile", Reader: fakeReader{values: map[string][]byte{"u1": []byte("alice")}}},
		{Name: "settings", Reader: fakeReader{values: map[string][]byte{}}},
	}

	row, err := SeekRow(context.Background(), pool, []byte("u1"), seeks)
	if err != nil {
		t.Fatalf("SeekRow: %v", err)
	}
	if !row.Cells["profile"].Found() {
		t.Fatal("expected profile cell to be found")
	}
	if row.Cells["settings"].Found() {
		t.Fatal("expected settings cell to be CellInvalid, not found")
	}
	if string(row.Cells["profile"].Value) != "alice" {
		t.Fatalf("profile value = %q, want alice", row.Cells["profile"].Value)
	}
}
