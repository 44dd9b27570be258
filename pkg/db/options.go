// Package db implements the Database: the top-level handle applications
// open, owning the column registry, the write path, and the
// checkpoint/statistics machinery built on top of pkg/column, pkg/kv,
// pkg/cache, pkg/reqpool and pkg/env. Options are validated with
// pkg/validation's ConfigValidator; column descriptors are validated with
// go-playground/validator struct tags and can be loaded from yaml.v3
// documents.
package db

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cluso/lsmkv/pkg/column"
	"github.com/cluso/lsmkv/pkg/validation"
)

// Options configures Database.Open.
type Options struct {
	Dir             string
	ReadOnly        bool
	RunFsck         bool
	LowThreads      int
	HighThreads     int
	RateBytesPerSec int64
	DirectIO        bool
	BlockSize       int64
	CacheBytes      int64
	UseCacheArena   bool
	SuppressErrors  bool
}

// Validate range-checks Options with a fluent ConfigValidator: the
// thread and rate-limit knobs are cooperative (zero means "let the
// Environment pick a default"), so only genuinely out-of-range values
// are rejected here.
func (o Options) Validate() error {
	cv := validation.NewConfigValidator("Options")
	cv.NonNegative("LowThreads", o.LowThreads).
		NonNegative("HighThreads", o.HighThreads).
		NonNegative("BlockSize", int(o.BlockSize)).
		NonNegative("CacheBytes", int(o.CacheBytes)).
		Custom("RateBytesPerSec", func() error {
			if o.RateBytesPerSec < 0 {
				return fmt.Errorf("must be non-negative, got %d", o.RateBytesPerSec)
			}
			return nil
		})
	return cv.Validate()
}

// ParseOptionsString parses a semicolon-separated "key=value;..." options
// string, the same compact format the embedded engine's OPTIONS file and
// connection strings use, into an Options value. Unknown keys are
// ignored rather than rejected, so a forward-compatible options string
// from a newer version of this module still opens.
func ParseOptionsString(s string) (Options, error) {
	var opts Options
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Options{}, fmt.Errorf("db: malformed options fragment %q", part)
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "read_only":
			opts.ReadOnly = val == "true"
		case "fsck":
			opts.RunFsck = val == "true"
		case "direct_io":
			opts.DirectIO = val == "true"
		case "low_threads":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Options{}, fmt.Errorf("db: low_threads: %w", err)
			}
			opts.LowThreads = n
		case "high_threads":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Options{}, fmt.Errorf("db: high_threads: %w", err)
			}
			opts.HighThreads = n
		case "block_size":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return Options{}, fmt.Errorf("db: block_size: %w", err)
			}
			opts.BlockSize = n
		case "cache_bytes":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return Options{}, fmt.Errorf("db: cache_bytes: %w", err)
			}
			opts.CacheBytes = n
		}
	}
	return opts, nil
}

// descriptorFile is the on-disk shape of a YAML column descriptor set,
// one entry per column, as parsed by LoadDescriptors. Open does not read
// such a file itself; callers pass the parsed descriptors to Open.
type descriptorFile struct {
	Columns []yamlDescriptor `yaml:"columns"`
}

type yamlDescriptor struct {
	Name              string `yaml:"name"`
	KeyType           string `yaml:"key_type"`
	WriteBufferSize   int64  `yaml:"write_buffer_size"`
	ArenaBlockSize    int64  `yaml:"arena_block_size"`
	BaseTableBytes    int64  `yaml:"base_table_bytes"`
	MaxWriteBufferNum int    `yaml:"max_write_buffer_num"`
}

// LoadDescriptors parses a columns.yaml document into column.Descriptor
// values, deducing each Comparator from its declared key_type.
func LoadDescriptors(raw []byte) ([]column.Descriptor, error) {
	var doc descriptorFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("db: parse column descriptors: %w", err)
	}
	out := make([]column.Descriptor, 0, len(doc.Columns))
	for _, d := range doc.Columns {
		kt, err := parseKeyType(d.KeyType)
		if err != nil {
			return nil, fmt.Errorf("db: column %q: %w", d.Name, err)
		}
		out = append(out, column.Descriptor{
			Name:              d.Name,
			KeyType:           kt,
			WriteBufferSize:   d.WriteBufferSize,
			ArenaBlockSize:    d.ArenaBlockSize,
			BaseTableBytes:    d.BaseTableBytes,
			MaxWriteBufferNum: d.MaxWriteBufferNum,
		})
	}
	return out, nil
}

func parseKeyType(s string) (column.KeyType, error) {
	switch s {
	case "", "bytes":
		return column.KeyTypeBytes, nil
	case "int64":
		return column.KeyTypeInt64, nil
	case "uint64":
		return column.KeyTypeUint64, nil
	case "reverse_bytes":
		return column.KeyTypeReverseBytes, nil
	default:
		return 0, fmt.Errorf("unknown key_type %q", s)
	}
}
