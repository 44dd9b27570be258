package lsm

import "errors"

var (
	errShortBloom     = errors.New("lsm: truncated bloom filter")
	errShortSSTable   = errors.New("lsm: truncated sstable")
	errBadChecksum    = errors.New("lsm: block checksum mismatch")
	errKeyNotFound    = errors.New("lsm: key not found")
	errEngineClosed   = errors.New("lsm: engine is closed")
	errEmptyMemtable  = errors.New("lsm: memtable has no entries to flush")
)

// ErrKeyNotFound is returned by Engine.Get when the key is absent.
var ErrKeyNotFound = errKeyNotFound

// ErrEngineClosed is returned by any Engine operation after Close.
var ErrEngineClosed = errEngineClosed
