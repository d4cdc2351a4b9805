package metacache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// Upsert inserts or replaces the cached metadata for one file.
func (db *DB) Upsert(meta *models.FileMeta, cs string) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("metacache: marshal meta: %w", err)
	}
	aliasesJSON, _ := json.Marshal(meta.Aliases)

	excluded := 0
	if meta.Excluded {
		excluded = 1
	}

	_, err = db.conn.Exec(`
		INSERT INTO files (path, title, checksum, excluded, aliases, meta, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			excluded   = excluded.excluded,
			aliases    = excluded.aliases,
			meta       = excluded.meta,
			updated_at = excluded.updated_at
	`, meta.Path, meta.Title, cs, excluded, string(aliasesJSON), string(metaJSON), time.Now())
	if err != nil {
		return fmt.Errorf("metacache: upsert: %w", err)
	}
	return nil
}

// Delete removes a file's cached metadata.
func (db *DB) Delete(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("metacache: delete: %w", err)
	}
	return nil
}

// Get returns the cached metadata for one file.
func (db *DB) Get(path string) (*models.FileMeta, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT meta FROM files WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("metacache: get %s: %w", path, err)
	}
	var meta models.FileMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("metacache: unmarshal %s: %w", path, err)
	}
	return &meta, nil
}

// GetChecksum returns the stored checksum for a file, or empty string if not cached.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM files WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not cached is fine
	}
	return cs, nil
}

// AllPaths returns every cached file path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM files`)
	if err != nil {
		return nil, fmt.Errorf("metacache: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every cached file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("metacache: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllMetas returns the cached metadata for every file, in path order.
func (db *DB) AllMetas() ([]*models.FileMeta, error) {
	rows, err := db.conn.Query(`SELECT meta FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("metacache: all metas: %w", err)
	}
	defer rows.Close()
	var out []*models.FileMeta
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var meta models.FileMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("metacache: unmarshal: %w", err)
		}
		out = append(out, &meta)
	}
	return out, rows.Err()
}

// Files returns a lightweight listing of every cached file, in path order.
func (db *DB) Files() ([]models.FileInfo, error) {
	rows, err := db.conn.Query(`SELECT path, checksum, updated_at FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("metacache: files: %w", err)
	}
	defer rows.Close()
	var out []models.FileInfo
	for rows.Next() {
		var fi models.FileInfo
		if err := rows.Scan(&fi.Path, &fi.Checksum, &fi.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	return out, rows.Err()
}

// IsExcluded reports whether a file carries the frontmatter exclusion flag.
// Unknown paths are not excluded.
func (db *DB) IsExcluded(path string) (bool, error) {
	var excluded int
	err := db.conn.QueryRow(`SELECT excluded FROM files WHERE path = ?`, path).Scan(&excluded)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("metacache: is excluded: %w", err)
	}
	return excluded != 0, nil
}
