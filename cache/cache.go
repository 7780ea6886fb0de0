// Package cache persists computed fingerprints between runs, keyed by
// (image path, algorithm) and guarded by a file stamp so a touched or
// replaced image invalidates its entry implicitly. The cache is a pure
// accelerator: correctness never depends on it, only speed does.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"imagedups/hasher"
)

// Stamp captures the file metadata that must match for a cached fingerprint
// to still be valid.
type Stamp struct {
	MTime int64
	Size  int64
}

// StampFile reads the current stamp of the file at path.
func StampFile(path string) (Stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stamp{}, fmt.Errorf("cannot stat file %s: %w", path, err)
	}
	return Stamp{
		MTime: info.ModTime().Unix(),
		Size:  info.Size(),
	}, nil
}

// Cache is a sqlite-backed fingerprint store. Reads may run concurrently;
// writes are serialized through a single mutex since the backing store is a
// single file.
type Cache struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
}

// OpenDefault opens the cache at the platform cache directory
// (e.g. ~/.cache/imagedups/fingerprints.db on Linux).
func OpenDefault() (*Cache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine user cache directory: %w", err)
	}
	return Open(filepath.Join(base, "imagedups", "fingerprints.db"))
}

// Open opens (and if necessary creates) the cache at the given path. Failure
// here is the one hard error the duplicate engine exposes; callers may choose
// to proceed without a cache instead of aborting.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create cache directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache %s: %w", path, err)
	}

	initSQL := `
	PRAGMA journal_mode=WAL;
	PRAGMA synchronous=NORMAL;
	CREATE TABLE IF NOT EXISTS hash_cache (
		path TEXT NOT NULL,
		algo INTEGER NOT NULL,
		mtime INTEGER NOT NULL,
		size INTEGER NOT NULL,
		bits BLOB NOT NULL,
		bits_len INTEGER NOT NULL,
		PRIMARY KEY(path, algo)
	);`

	if _, err := db.Exec(initSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize cache schema in %s: %w", path, err)
	}

	return &Cache{db: db, path: path}, nil
}

// Path returns the location of the backing store.
func (c *Cache) Path() string {
	return c.path
}

// Close releases the backing store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached fingerprint for (path, algo) if a row exists and
// its stored stamp equals stamp. A missing row or a stamp mismatch is a plain
// miss (nil, nil); only storage errors are reported, and callers are expected
// to degrade those to a miss as well.
func (c *Cache) Lookup(path string, algo hasher.Algorithm, stamp Stamp) (*hasher.Fingerprint, error) {
	var (
		mtime   int64
		size    int64
		packed  []byte
		bitsLen int64
	)

	row := c.db.QueryRow(
		"SELECT mtime, size, bits, bits_len FROM hash_cache WHERE path = ? AND algo = ?",
		path, int(algo))
	err := row.Scan(&mtime, &size, &packed, &bitsLen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read failed for %s: %w", path, err)
	}

	if mtime != stamp.MTime || size != stamp.Size {
		// File changed since it was hashed; the row is stale.
		return nil, nil
	}

	return &hasher.Fingerprint{Algo: algo, Bits: UnpackBits(packed, int(bitsLen))}, nil
}

// Store upserts the fingerprint for (path, algo). A later write with the same
// key fully replaces the row.
func (c *Cache) Store(path string, algo hasher.Algorithm, stamp Stamp, fp hasher.Fingerprint) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err := c.db.Exec(`
		INSERT INTO hash_cache (path, algo, mtime, size, bits, bits_len)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, algo) DO UPDATE SET
			mtime = excluded.mtime,
			size = excluded.size,
			bits = excluded.bits,
			bits_len = excluded.bits_len`,
		path, int(algo), stamp.MTime, stamp.Size, PackBits(fp.Bits), len(fp.Bits))
	if err != nil {
		return fmt.Errorf("cache write failed for %s: %w", path, err)
	}
	return nil
}

// PackBits packs a bit vector 8 bits per byte, LSB first, with the final byte
// zero-padded.
func PackBits(bits []bool) []byte {
	packed := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return packed
}

// UnpackBits reconstructs exactly length bits from a packed representation,
// ignoring any padding. Bytes missing from a short blob read as zero bits.
func UnpackBits(packed []byte, length int) []bool {
	bits := make([]bool, length)
	for i := range bits {
		if i/8 < len(packed) {
			bits[i] = packed[i/8]&(1<<(i%8)) != 0
		}
	}
	return bits
}
