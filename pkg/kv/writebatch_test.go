package kv

import "testing"

func TestWriteBatchQueuesOpsInOrder(t *testing.T) {
	b := NewWriteBatch()
	b.Set("col", []byte("a"), []byte("1"))
	b.Delete("col", []byte("b"))

	ops := b.Ops()
	if len(ops) != 2 {
		t.Fatalf("Ops() = %d entries, want 2", len(ops))
	}
	if ops[0].Kind != OpSet || ops[1].Kind != OpDelete {
		t.Fatalf("unexpected op kinds: %v, %v", ops[0].Kind, ops[1].Kind)
	}
}

func TestWriteBatchSavepointRollback(t *testing.T) {
	b := NewWriteBatch()
	b.Set("col", []byte("a"), []byte("1"))
	b.Savepoint()
	b.Set("col", []byte("b"), []byte("2"))
	b.Set("col", []byte("c"), []byte("3"))

	if err := b.RollbackToSavepoint(); err != nil {
		t.Fatalf("RollbackToSavepoint: %v", err)
	}
	if got := b.Len(); got != 1 {
		t.Fatalf("Len after rollback = %d, want 1", got)
	}
}

func TestWriteBatchNestedSavepoints(t *testing.T) {
	b := NewWriteBatch()
	b.Set("col", []byte("a"), nil)
	b.Savepoint()
	b.Set("col", []byte("b"), nil)
	b.Savepoint()
	b.Set("col", []byte("c"), nil)

	if err := b.RollbackToSavepoint(); err != nil {
		t.Fatalf("inner rollback: %v", err)
	}
	if got := b.Len(); got != 2 {
		t.Fatalf("Len after inner rollback = %d, want 2", got)
	}
	if err := b.RollbackToSavepoint(); err != nil {
		t.Fatalf("outer rollback: %v", err)
	}
	if got := b.Len(); got != 1 {
		t.Fatalf("Len after outer rollback = %d, want 1", got)
	}
}

func TestWriteBatchRollbackWithoutSavepointErrors(t *testing.T) {
	b := NewWriteBatch()
	if err := b.RollbackToSavepoint(); err == nil {
		t.Fatal("expected an error rolling back with no savepoint pushed")
	}
}
