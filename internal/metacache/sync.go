package metacache

import (
	"log/slog"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
)

// Sync walks the vault and brings the metadata cache up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the cache
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	infos, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(infos))
	for _, fi := range infos {
		disk[fi.Path] = struct{}{}

		if checksums[fi.Path] == fi.Checksum {
			continue
		}

		data, err := store.Read(fi.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
			continue
		}
		if err := cacheFile(db, fi.Path, data); err != nil {
			logger.Warn("sync: cache failed", slog.String("path", fi.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: cached", slog.String("path", fi.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.Delete(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// SyncFile re-reads, parses, and upserts a single file. Used for targeted
// updates after a write, where a full vault walk would be wasteful.
func SyncFile(db *DB, store storage.Provider, path string) error {
	data, err := store.Read(path)
	if err != nil {
		return err
	}
	return cacheFile(db, path, data)
}

// cacheFile parses data and upserts the resulting metadata.
func cacheFile(db *DB, path string, data []byte) error {
	meta, err := parser.Parse(data)
	if err != nil {
		return err
	}
	meta.Path = path
	return db.Upsert(meta, checksum.Sum(data))
}
