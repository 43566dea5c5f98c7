package ingest

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ousttrue/pycpptool/internal/decl"
	"github.com/ousttrue/pycpptool/internal/source"
)

// cacheSchema invalidates every stored batch when the cursor encoding
// changes.
const cacheSchema uint16 = 2

// Cache stores parsed cursor batches on disk, keyed by the header's
// content digest. A nil Cache is valid and never hits; default runs
// carry no persisted state. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// cursorBatch is the on-disk form of one parsed header.
type cursorBatch struct {
	Schema  uint16
	Path    string
	Cursors []decl.Cursor
	Skipped int
}

// OpenCache initializes the cache at the standard user location:
// $XDG_CACHE_HOME/<app>, falling back to ~/.cache/<app>.
func OpenCache(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathFor(key [32]byte) string {
	return filepath.Join(c.dir, "headers", hex.EncodeToString(key[:])+".mp")
}

// Get restores the cursor batch for a content digest. Cursors come
// back with their file fields rebound to file, since FileIDs are
// assigned per run. Unreadable or stale entries are plain misses; the
// caller reparses and overwrites them.
func (c *Cache) Get(key [32]byte, file source.FileID) ([]decl.Cursor, int, bool) {
	if c == nil {
		return nil, 0, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		return nil, 0, false
	}
	var batch cursorBatch
	if err := msgpack.Unmarshal(data, &batch); err != nil || batch.Schema != cacheSchema {
		return nil, 0, false
	}
	retarget(batch.Cursors, file)
	return batch.Cursors, batch.Skipped, true
}

// Put stores one parsed header, atomically via temp file and rename.
func (c *Cache) Put(key [32]byte, path string, cursors []decl.Cursor, skipped int) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := msgpack.Marshal(&cursorBatch{
		Schema:  cacheSchema,
		Path:    path,
		Cursors: cursors,
		Skipped: skipped,
	})
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), p)
}

// DropAll removes every stored batch; `cpptool cache clear` calls this
// after schema bumps or suspected corruption.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}

// Dir returns the cache directory, for status output.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// retarget rebinds cached cursors to the FileID the current run
// assigned to their header.
func retarget(cursors []decl.Cursor, file source.FileID) {
	for i := range cursors {
		cursors[i].File = file
		cursors[i].Span.File = file
		retarget(cursors[i].Children, file)
	}
}
