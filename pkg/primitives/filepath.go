package primitives

import (
	"hash/fnv"
	"os"
	"path/filepath"
)

// Filepath is a file system path for a table file.
type Filepath string

// Hash derives a TableID from the path with FNV-1a. The same path always
// yields the same id. A hash of zero is remapped to one so the result is
// always valid.
func (f Filepath) Hash() TableID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(f))
	id := TableID(h.Sum64())
	if id == InvalidTableID {
		return 1
	}
	return id
}

func (f Filepath) String() string {
	return string(f)
}

// Join appends path elements.
func (f Filepath) Join(elem ...string) Filepath {
	return Filepath(filepath.Join(append([]string{string(f)}, elem...)...))
}

// Base returns the last element of the path.
func (f Filepath) Base() string {
	return filepath.Base(string(f))
}

// Exists reports whether the path exists.
func (f Filepath) Exists() bool {
	_, err := os.Stat(string(f))
	return err == nil
}
