package kv

import "context"

// Committer is implemented by the Database: a Transaction wraps a
// WriteBatch and defers to the Database for atomic application, keeping
// pkg/kv free of a dependency on pkg/db.
type Committer interface {
	CommitBatch(ctx context.Context, b *WriteBatch) error
}

// Transaction groups a sequence of writes and savepoints for one
// logical unit of work, committed atomically via a Database at the end.
type Transaction struct {
	db    Committer
	batch *WriteBatch
}

// Begin starts a Transaction against db.
func Begin(db Committer) *Transaction {
	return &Transaction{db: db, batch: NewWriteBatch()}
}

func (t *Transaction) Set(column string, key, value []byte) { t.batch.Set(column, key, value) }
func (t *Transaction) Merge(column string, key, operand []byte) { t.batch.Merge(column, key, operand) }
func (t *Transaction) Delete(column string, key []byte) { t.batch.Delete(column, key) }
func (t *Transaction) DeleteRange(column string, begin, end []byte) {
	t.batch.DeleteRange(column, begin, end)
}

// Savepoint and RollbackToSavepoint delegate to the underlying batch, so
// a caller can undo a partially-completed step without abandoning the
// whole transaction.
func (t *Transaction) Savepoint()                    { t.batch.Savepoint() }
func (t *Transaction) RollbackToSavepoint() error     { return t.batch.RollbackToSavepoint() }

// Commit applies every queued write atomically through the Database.
func (t *Transaction) Commit(ctx context.Context) error {
	return t.db.CommitBatch(ctx, t.batch)
}

// Rollback discards the transaction's queued writes without committing
// anything.
func (t *Transaction) Rollback() {
	t.batch.Clear()
}
