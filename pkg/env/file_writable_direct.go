package env

import (
	"os"

	"github.com/cluso/lsmkv/pkg/status"
)

// directWritable implements WritableFile for direct I/O: every physical
// write must land at an aligned offset with an aligned, aligned-sized
// buffer. Since callers append arbitrary-length byte slices, the file
// keeps a block-sized scratch buffer holding the final partially-filled
// block; appends are sliced across at most two physical writes (the
// aligned prefix, direct to disk; the new tail, buffered) plus whatever
// was already buffered.
//
// Close/Truncate always issue a final physical truncate back to the
// logical length: otherwise a reopen would see the zero-padding the last
// aligned block write introduced and misread it as a corrupt tail.
type directWritable struct {
	f            *os.File
	path         string
	align        Alignment
	logicalSize  int64 // bytes the caller believes it has written
	allocated    int64
	preallocStep int64
	keepSize     bool
	scratch      []byte // holds the current unflushed, partially-filled block
	scratchBase  int64  // file offset the scratch buffer starts at
}

// NewDirectWritableFile opens path for append-only writes aligned to
// blockSize-byte boundaries.
func NewDirectWritableFile(path string, blockSize int64, keepSize bool) (WritableFile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, translateOpenErr("NewDirectWritableFile", err)
	}
	a := Alignment(blockSize)
	return &directWritable{
		f:            f,
		path:         path,
		align:        a,
		preallocStep: a.RoundUp(defaultPreallocBlock),
		keepSize:     keepSize,
		scratch:      make([]byte, 0, blockSize),
	}, nil
}

func (w *directWritable) Append(p []byte) error {
	return w.PositionedAppend(p, w.logicalSize)
}

// PositionedAppend implements the four cases direct-I/O append must
// handle: (1) the incoming bytes fit entirely within the
// still-open scratch block; (2) they fill the scratch block and spill
// into one or more full aligned blocks written straight through, with a
// new (possibly empty) tail buffered; (3) there is no open scratch block
// and the whole write is block-aligned, issued directly; (4) there is no
// open scratch block and the write has an unaligned remainder, which is
// buffered as the new scratch block. All four converge on: every byte
// physically written lands at an aligned offset in an aligned-size
// buffer, and any unaligned remainder ends up in w.scratch.
func (w *directWritable) PositionedAppend(p []byte, off int64) error {
	if off != w.logicalSize {
		return status.New("directWritable.PositionedAppend", status.InvalidArgument, nil,
		)
	}
	blockSize := int64(w.align)

	// Case 1/2: there is an open scratch block to top up first.
	if len(w.scratch) > 0 {
		room := int(blockSize) - len(w.scratch)
		if room > len(p) {
			room = len(p)
		}
		w.scratch = append(w.scratch, p[:room]...)
		p = p[room:]
		w.logicalSize += int64(room)

		if len(w.scratch) < int(blockSize) {
			// Case 1: still not full; nothing physical to write yet.
			return nil
		}
		// Scratch block is now full: flush it as one aligned write.
		if err := w.writeAligned(w.scratchBase, w.scratch); err != nil {
			return err
		}
		w.scratch = w.scratch[:0]
		w.scratchBase += blockSize
	}

	if len(p) == 0 {
		return nil
	}

	// Case 3/4: no open scratch block. Write every full aligned block
	// directly, buffer whatever unaligned remainder is left.
	fullBlocks := int64(len(p)) / blockSize
	if fullBlocks > 0 {
		n := fullBlocks * blockSize
		if err := w.writeAligned(w.scratchBase, p[:n]); err != nil {
			return err
		}
		w.scratchBase += n
		w.logicalSize += n
		p = p[n:]
	}

	if len(p) > 0 {
		w.scratch = append(w.scratch[:0], p...)
		w.logicalSize += int64(len(p))
	}

	return nil
}

// writeAligned issues one physical write at an aligned offset. A buf
// whose length is not a multiple of the block size is zero-padded in a
// fresh buffer rounded up to the block size so the physical write always satisfies the
// offset/size/alignment invariant even for the final partial block.
func (w *directWritable) writeAligned(off int64, buf []byte) error {
	blockSize := int64(w.align)
	size := int64(len(buf))
	padded := buf
	if !w.align.AlignedSize(size) {
		rounded := w.align.RoundUp(size)
		padded = make([]byte, rounded)
		copy(padded, buf)
	}
	if !w.align.AlignedOffset(off) {
		return status.Newf("directWritable.writeAligned", status.InvalidArgument, nil,
			"offset %d not aligned to %d", off, blockSize)
	}
	if _, err := w.f.WriteAt(padded, off); err != nil {
		return status.New("directWritable.writeAligned", status.IOError, err)
	}
	if end := off + int64(len(padded)); end > w.allocated {
		w.allocated = end
	}
	return nil
}

func (w *directWritable) flushScratch() error {
	if len(w.scratch) == 0 {
		return nil
	}
	return w.writeAligned(w.scratchBase, w.scratch)
}

// Truncate physically truncates the file back to size and resets the
// writer's notion of where the logical end lies. It is the mechanism
// invariant 5 (file_size_on_disk == logical_offset) depends on.
func (w *directWritable) Truncate(size int64) error {
	if err := w.flushScratch(); err != nil {
		return err
	}
	if err := w.f.Truncate(size); err != nil {
		return status.New("directWritable.Truncate", status.IOError, err)
	}
	w.logicalSize = size
	w.scratchBase = size
	w.scratch = w.scratch[:0]
	if size > w.allocated {
		w.allocated = size
	}
	return nil
}

func (w *directWritable) Sync() error {
	if err := w.flushScratch(); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return status.New("directWritable.Sync", status.IOError, err)
	}
	return nil
}

func (w *directWritable) Flush() error { return w.flushScratch() }

func (w *directWritable) RangeSync(off, n int64) error { return w.Sync() }

func (w *directWritable) InvalidateCache(off, n int64) error {
	// Direct I/O bypasses the page cache already; the advisory is moot.
	return nil
}

func (w *directWritable) PrepareWrite(off, n int64) error { return w.Allocate(off, n) }

func (w *directWritable) Allocate(off, n int64) error {
	end := w.align.RoundUp(off + n)
	if end <= w.allocated {
		return nil
	}
	newAllocated := w.allocated
	for newAllocated < end {
		newAllocated += w.preallocStep
	}
	w.allocated = newAllocated
	return nil
}

func (w *directWritable) GetFileSize() int64 { return w.logicalSize }

// Close flushes the scratch block and always issues the physical
// truncate-to-logical-length required by invariant 5, regardless of
// keepSize: keepSize only affects the buffered variant's cosmetic file
// size, never the direct-I/O tail-padding invariant.
func (w *directWritable) Close() error {
	if err := w.flushScratch(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Truncate(w.logicalSize); err != nil {
		w.f.Close()
		return status.New("directWritable.Close", status.IOError, err)
	}
	if err := w.f.Close(); err != nil {
		return status.New("directWritable.Close", status.IOError, err)
	}
	return nil
}
