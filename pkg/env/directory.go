package env

import (
	"os"

	"github.com/cluso/lsmkv/pkg/status"
)

// Directory wraps a directory handle so the engine can fsync directory
// entries after creating or renaming files, without reaching for os
// calls outside this package.
type Directory struct {
	f *os.File
}

// OpenDirectory opens path as a directory handle.
func OpenDirectory(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, translateOpenErr("OpenDirectory", err)
	}
	return &Directory{f: f}, nil
}

// Fsync flushes the directory's metadata (new/renamed/removed entries) to
// disk. It delegates to the default environment handle in the sense that
// there is nothing column- or database-specific about syncing a
// directory: every Directory does exactly this.
func (d *Directory) Fsync() error {
	if err := d.f.Sync(); err != nil {
		return status.New("Directory.Fsync", status.IOError, err)
	}
	return nil
}

func (d *Directory) Close() error {
	if err := d.f.Close(); err != nil {
		return status.New("Directory.Close", status.IOError, err)
	}
	return nil
}
