package kv

import "errors"

var errNoSavepoint = errors.New("kv: no savepoint to pop or roll back to")
