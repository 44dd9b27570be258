package lsm

import (
	"context"
	"testing"

	"github.com/cluso/lsmkv/pkg/env"
)

func newTestEngine(t *testing.T, opts EngineOptions) (*Engine, *env.Environment) {
	t.Helper()
	e := env.New(env.Options{})
	t.Cleanup(e.Join)
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	eng, err := Open(e, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return eng, e
}

func TestEnginePutGetDelete(t *testing.T) {
	eng, _ := newTestEngine(t, EngineOptions{})

	if err := eng.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := eng.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("Get = %q, want v1", v)
	}

	if err := eng.Delete([]byte("k")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := eng.Get([]byte("k")); err != ErrKeyNotFound {
		t.Fatalf("Get after delete = %v, want ErrKeyNotFound", err)
	}
}

func TestEngineFlushMovesMemtableToSSTable(t *testing.T) {
	eng, _ := newTestEngine(t, EngineOptions{})
	for i := 0; i < 10; i++ {
		if err := eng.Put([]byte{byte('a' + i)}, []byte("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	eng.mu.Lock()
	eng.immutable = append(eng.immutable, eng.active)
	eng.active = NewMemTable(eng.cmp)
	eng.mu.Unlock()

	if err := eng.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stats := eng.Stats()
	if stats.TablesPerLvl[0] == 0 {
		t.Fatal("expected at least one L0 table after flush")
	}

	v, err := eng.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Get after flush: %v", err)
	}
	if string(v) != "v" {
		t.Fatalf("Get after flush = %q, want v", v)
	}
}

func TestEngineReopenDiscoversExistingTables(t *testing.T) {
	dir := t.TempDir()
	e := env.New(env.Options{})
	defer e.Join()

	eng1, err := Open(e, EngineOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := eng1.Put([]byte("persisted"), []byte("value")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := eng1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	eng2, err := Open(e, EngineOptions{Dir: dir})
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	v, err := eng2.Get([]byte("persisted"))
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(v) != "value" {
		t.Fatalf("Get after reopen = %q, want value", v)
	}
}

func TestEngineScanReturnsKeysInOrder(t *testing.T) {
	eng, _ := newTestEngine(t, EngineOptions{})
	for _, k := range []string{"c", "a", "b"} {
		if err := eng.Put([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	sc, err := eng.NewScanner(nil, nil)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	var got []string
	for sc.Next() {
		got = append(got, string(sc.Entry().Key))
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("scan returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scan[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEngineMergeUsesMergeOperator(t *testing.T) {
	op := NewAssociativeMergeOperator("append", func(existing, operand []byte) ([]byte, error) {
		return append(append([]byte(nil), existing...), operand...), nil
	})
	eng, _ := newTestEngine(t, EngineOptions{MergeOperator: op})

	if err := eng.Merge([]byte("k"), []byte("a")); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	v, err := eng.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "a" {
		t.Fatalf("Get = %q, want a (verbatim store on first merge with no existing value)", v)
	}
}

func TestEngineClosedRejectsWrites(t *testing.T) {
	eng, _ := newTestEngine(t, EngineOptions{})
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := eng.Put([]byte("k"), []byte("v")); err != ErrEngineClosed {
		t.Fatalf("Put after Close = %v, want ErrEngineClosed", err)
	}
}

func TestEngineCompactRunsWithoutError(t *testing.T) {
	eng, e := newTestEngine(t, EngineOptions{BaseTableBytes: 1})
	for i := 0; i < 3; i++ {
		if err := eng.Put([]byte{byte('a' + i)}, []byte("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := eng.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
	}
	if err := eng.Compact(context.Background()); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	e.Join()
}
