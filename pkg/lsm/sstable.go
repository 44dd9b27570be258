package lsm

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/golang/snappy"
	"golang.org/x/exp/mmap"

	"github.com/cluso/lsmkv/pkg/env"
)

// sstableMagic closes every table file so a truncated write is detectable
// on open rather than silently read as a corrupt but plausible table.
const sstableMagic uint64 = 0x6c736d6b765f7373 // "lsmkv_ss"

// indexEntry locates one data block inside the table file.
type indexEntry struct {
	firstKey []byte
	offset   int64
	length   int64
}

// SSTable is an immutable, sorted, optionally-compressed run of entries
// with a block index and bloom filter loaded once at open and consulted
// on every read.
type SSTable struct {
	path      string
	cmp       Comparator
	index     []indexEntry
	bloom     *BloomFilter
	smallest  []byte
	largest   []byte
	numBlocks int
	fileSize  int64
	level     int
	mapped    *mmap.ReaderAt
}

const sstableBlockSize = 64 * 1024

// WriteSSTable serializes entries (already sorted by cmp) to path as a
// sequence of compressed blocks, followed by a block index, bloom filter
// and fixed-size footer. It is the engine's sole producer of on-disk
// table files, used by both MemTable flush and compaction.
func WriteSSTable(e *env.Environment, path string, cmp Comparator, entries []Entry, level int) (*SSTable, error) {
	wf, err := e.OpenWritable(path, false, true)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(&writableFileWriter{wf}, 1<<20)

	bloom := NewBloomFilter(len(entries), 0.01)
	var index []indexEntry
	var offset int64
	var blockBuf []byte
	var blockFirstKey []byte

	flushBlock := func() error {
		if len(blockBuf) == 0 {
			return nil
		}
		compressed := snappy.Encode(nil, blockBuf)
		crc := crc32.ChecksumIEEE(compressed)
		hdr := make([]byte, 12)
		binary.BigEndian.PutUint32(hdr[0:4], uint32(len(compressed)))
		binary.BigEndian.PutUint32(hdr[4:8], uint32(len(blockBuf)))
		binary.BigEndian.PutUint32(hdr[8:12], crc)
		if _, err := bw.Write(hdr); err != nil {
			return err
		}
		if _, err := bw.Write(compressed); err != nil {
			return err
		}
		index = append(index, indexEntry{firstKey: blockFirstKey, offset: offset, length: int64(len(hdr) + len(compressed))})
		offset += int64(len(hdr) + len(compressed))
		blockBuf = blockBuf[:0]
		blockFirstKey = nil
		return nil
	}

	var smallest, largest []byte
	for _, ent := range entries {
		bloom.Add(ent.Key)
		if smallest == nil || cmp.Compare(ent.Key, smallest) < 0 {
			smallest = append([]byte(nil), ent.Key...)
		}
		if largest == nil || cmp.Compare(ent.Key, largest) > 0 {
			largest = append([]byte(nil), ent.Key...)
		}
		if blockFirstKey == nil {
			blockFirstKey = append([]byte(nil), ent.Key...)
		}
		blockBuf = appendEntry(blockBuf, ent)
		if len(blockBuf) >= sstableBlockSize {
			if err := flushBlock(); err != nil {
				wf.Close()
				return nil, err
			}
		}
	}
	if err := flushBlock(); err != nil {
		wf.Close()
		return nil, err
	}

	indexOffset := offset
	idxBuf := encodeIndex(index)
	if _, err := bw.Write(idxBuf); err != nil {
		wf.Close()
		return nil, err
	}
	bloomOffset := indexOffset + int64(len(idxBuf))
	bloomBuf := bloom.Marshal()
	if _, err := bw.Write(bloomBuf); err != nil {
		wf.Close()
		return nil, err
	}

	footer := make([]byte, 40)
	binary.BigEndian.PutUint64(footer[0:8], uint64(indexOffset))
	binary.BigEndian.PutUint64(footer[8:16], uint64(len(idxBuf)))
	binary.BigEndian.PutUint64(footer[16:24], uint64(bloomOffset))
	binary.BigEndian.PutUint64(footer[24:32], uint64(len(bloomBuf)))
	binary.BigEndian.PutUint64(footer[32:40], sstableMagic)
	if _, err := bw.Write(footer); err != nil {
		wf.Close()
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		wf.Close()
		return nil, err
	}
	if err := wf.Sync(); err != nil {
		wf.Close()
		return nil, err
	}
	if err := wf.Close(); err != nil {
		return nil, err
	}

	return &SSTable{
		path: path, cmp: cmp, index: index, bloom: bloom,
		smallest: smallest, largest: largest, numBlocks: len(index),
		fileSize: bloomOffset + int64(len(bloomBuf)) + int64(len(footer)),
		level:    level,
	}, nil
}

// OpenSSTable reads the footer, index and bloom filter of an existing
// table file without loading its data blocks. When useMmap is true, data
// blocks are later served from a memory-mapped view of the file instead
// of a fresh os.Open per read, which matters once a level holds enough
// tables that block reads dominate lookup latency.
func OpenSSTable(path string, cmp Comparator, level int, useMmap bool) (*SSTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < 40 {
		return nil, errShortSSTable
	}
	footer := make([]byte, 40)
	if _, err := f.ReadAt(footer, info.Size()-40); err != nil {
		return nil, err
	}
	if binary.BigEndian.Uint64(footer[32:40]) != sstableMagic {
		return nil, errShortSSTable
	}
	indexOffset := int64(binary.BigEndian.Uint64(footer[0:8]))
	indexLen := int64(binary.BigEndian.Uint64(footer[8:16]))
	bloomOffset := int64(binary.BigEndian.Uint64(footer[16:24]))
	bloomLen := int64(binary.BigEndian.Uint64(footer[24:32]))

	idxBuf := make([]byte, indexLen)
	if _, err := f.ReadAt(idxBuf, indexOffset); err != nil {
		return nil, err
	}
	index := decodeIndex(idxBuf)

	bloomBuf := make([]byte, bloomLen)
	if _, err := f.ReadAt(bloomBuf, bloomOffset); err != nil {
		return nil, err
	}
	bloom, err := UnmarshalBloomFilter(bloomBuf)
	if err != nil {
		return nil, err
	}

	var smallest []byte
	if len(index) > 0 {
		smallest = index[0].firstKey
	}

	t := &SSTable{
		path: path, cmp: cmp, index: index, bloom: bloom,
		smallest: smallest, numBlocks: len(index),
		fileSize: info.Size(), level: level,
	}
	if useMmap {
		if mapped, err := mmap.Open(path); err == nil {
			t.mapped = mapped
		}
	}
	if len(index) > 0 {
		last, err := t.readBlock(len(index) - 1)
		if err != nil {
			t.Close()
			return nil, err
		}
		if len(last) > 0 {
			t.largest = last[len(last)-1].Key
		}
	}
	return t, nil
}

// Close releases the table's memory-mapped view, if it has one. Tables
// opened without mmap have nothing to release.
func (t *SSTable) Close() error {
	if t.mapped != nil {
		return t.mapped.Close()
	}
	return nil
}

// MayContain is a cheap pre-check Engine.Get uses to skip tables whose
// bloom filter proves the key absent without touching the file.
func (t *SSTable) MayContain(key []byte) bool {
	if t.smallest != nil && t.cmp.Compare(key, t.smallest) < 0 {
		return false
	}
	if t.largest != nil && t.cmp.Compare(key, t.largest) > 0 {
		return false
	}
	return t.bloom.MayContain(key)
}

// Get scans the block that could hold key and returns its entry.
func (t *SSTable) Get(key []byte) (Entry, bool, error) {
	if !t.MayContain(key) {
		return Entry{}, false, nil
	}
	bi := sort.Search(len(t.index), func(i int) bool {
		return t.cmp.Compare(t.index[i].firstKey, key) > 0
	}) - 1
	if bi < 0 {
		return Entry{}, false, nil
	}
	entries, err := t.readBlock(bi)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if t.cmp.Compare(e.Key, key) == 0 {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// AllEntries reads every block in order, used by compaction to merge
// this table's contents into a new one.
func (t *SSTable) AllEntries() ([]Entry, error) {
	var out []Entry
	for i := range t.index {
		es, err := t.readBlock(i)
		if err != nil {
			return nil, err
		}
		out = append(out, es...)
	}
	return out, nil
}

func (t *SSTable) readBlock(i int) ([]Entry, error) {
	var r io.ReaderAt
	if t.mapped != nil {
		r = t.mapped
	} else {
		f, err := os.Open(t.path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	hdr := make([]byte, 12)
	if _, err := r.ReadAt(hdr, t.index[i].offset); err != nil {
		return nil, err
	}
	clen := binary.BigEndian.Uint32(hdr[0:4])
	ulen := binary.BigEndian.Uint32(hdr[4:8])
	wantCRC := binary.BigEndian.Uint32(hdr[8:12])
	compressed := make([]byte, clen)
	if _, err := r.ReadAt(compressed, t.index[i].offset+12); err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(compressed) != wantCRC {
		return nil, errBadChecksum
	}
	raw := make([]byte, ulen)
	if _, err := snappy.Decode(raw, compressed); err != nil {
		return nil, err
	}
	return decodeBlock(raw)
}

func (t *SSTable) Path() string    { return t.path }
func (t *SSTable) Level() int      { return t.level }
func (t *SSTable) FileSize() int64 { return t.fileSize }
func (t *SSTable) Smallest() []byte { return t.smallest }
func (t *SSTable) Largest() []byte  { return t.largest }

// Overlaps reports whether [lo, hi] intersects this table's key range.
func (t *SSTable) Overlaps(lo, hi []byte) bool {
	if lo != nil && t.largest != nil && t.cmp.Compare(lo, t.largest) > 0 {
		return false
	}
	if hi != nil && t.smallest != nil && t.cmp.Compare(hi, t.smallest) < 0 {
		return false
	}
	return true
}

func appendEntry(buf []byte, e Entry) []byte {
	tmp := make([]byte, 8)
	binary.BigEndian.PutUint32(tmp[0:4], uint32(len(e.Key)))
	buf = append(buf, tmp[0:4]...)
	buf = append(buf, e.Key...)
	binary.BigEndian.PutUint32(tmp[0:4], uint32(len(e.Value)))
	buf = append(buf, tmp[0:4]...)
	buf = append(buf, e.Value...)
	buf = append(buf, byte(e.Kind))
	binary.BigEndian.PutUint64(tmp, e.Seq)
	buf = append(buf, tmp...)
	return buf
}

func decodeBlock(raw []byte) ([]Entry, error) {
	var out []Entry
	pos := 0
	for pos < len(raw) {
		if pos+4 > len(raw) {
			return nil, errShortSSTable
		}
		klen := int(binary.BigEndian.Uint32(raw[pos : pos+4]))
		pos += 4
		key := raw[pos : pos+klen]
		pos += klen
		vlen := int(binary.BigEndian.Uint32(raw[pos : pos+4]))
		pos += 4
		val := raw[pos : pos+vlen]
		pos += vlen
		kind := OpKind(raw[pos])
		pos++
		seq := binary.BigEndian.Uint64(raw[pos : pos+8])
		pos += 8
		out = append(out, Entry{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), val...),
			Kind:  kind,
			Seq:   seq,
		})
	}
	return out, nil
}

func encodeIndex(idx []indexEntry) []byte {
	var buf []byte
	tmp := make([]byte, 8)
	binary.BigEndian.PutUint32(tmp[0:4], uint32(len(idx)))
	buf = append(buf, tmp[0:4]...)
	for _, e := range idx {
		binary.BigEndian.PutUint32(tmp[0:4], uint32(len(e.firstKey)))
		buf = append(buf, tmp[0:4]...)
		buf = append(buf, e.firstKey...)
		binary.BigEndian.PutUint64(tmp, uint64(e.offset))
		buf = append(buf, tmp...)
		binary.BigEndian.PutUint64(tmp, uint64(e.length))
		buf = append(buf, tmp...)
	}
	return buf
}

func decodeIndex(buf []byte) []indexEntry {
	if len(buf) < 4 {
		return nil
	}
	n := int(binary.BigEndian.Uint32(buf[0:4]))
	pos := 4
	out := make([]indexEntry, 0, n)
	for i := 0; i < n; i++ {
		klen := int(binary.BigEndian.Uint32(buf[pos : pos+4]))
		pos += 4
		key := append([]byte(nil), buf[pos:pos+klen]...)
		pos += klen
		off := int64(binary.BigEndian.Uint64(buf[pos : pos+8]))
		pos += 8
		length := int64(binary.BigEndian.Uint64(buf[pos : pos+8]))
		pos += 8
		out = append(out, indexEntry{firstKey: key, offset: off, length: length})
	}
	return out
}

// writableFileWriter adapts env.WritableFile's Append method to io.Writer
// so bufio.Writer can buffer writes into it.
type writableFileWriter struct {
	wf env.WritableFile
}

func (w *writableFileWriter) Write(p []byte) (int, error) {
	if err := w.wf.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

var _ io.Writer = (*writableFileWriter)(nil)
