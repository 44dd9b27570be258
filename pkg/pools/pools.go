// Package pools provides object pooling for reducing GC pressure on the
// hot write and recovery paths: per-record checksum scratch space, WAL
// record encoding, and SSTable block assembly all go through short-lived
// byte slices that would otherwise churn the allocator on every call.
//
//   - BytePool: size-class based byte slice pooling
//   - BufferBuilder: buffer construction with big-endian helpers, backed by BytePool
//   - Uint64Pool: size-class based []uint64 pooling for sequence-number/offset batches
//   - CellMapPool: pooled map[string]any scratch space for row decoding and merge state
package pools
