package kv

import "github.com/cluso/lsmkv/pkg/lsm"

// MergeOperator is re-exported from pkg/lsm so callers configuring a
// column never need to import the engine package directly.
type MergeOperator = lsm.MergeOperator

// NewAssociativeMergeOperator is re-exported from pkg/lsm.
var NewAssociativeMergeOperator = lsm.NewAssociativeMergeOperator
