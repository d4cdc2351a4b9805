// Package refservice coordinates storage, the metadata cache, the vault view,
// the reference index, and the detection manager behind one service facade.
// Every mutation keeps all layers consistent before returning, so readers
// never observe a half-applied change.
package refservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/detect"
	"github.com/starford/othala/internal/metacache"
	"github.com/starford/othala/internal/refs"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// FileDetail is the full representation of a vault file.
type FileDetail struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Checksum  string    `json:"checksum"`
	Aliases   []string  `json:"aliases"`
	Excluded  bool      `json:"excluded"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileListItem is a lightweight item in a list response.
type FileListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyInfo describes one key-equivalence policy.
type PolicyInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Service coordinates vault mutations and reference queries.
type Service struct {
	store    storage.Provider
	db       *metacache.DB
	vlt      *vault.Vault
	index    *refs.Index
	detector *detect.Manager
	logger   *slog.Logger
}

// NewService creates the service facade over the assembled subsystems.
func NewService(store storage.Provider, db *metacache.DB, vlt *vault.Vault, index *refs.Index, detector *detect.Manager, logger *slog.Logger) *Service {
	return &Service{store: store, db: db, vlt: vlt, index: index, detector: detector, logger: logger}
}

// GetFile reads a file from storage and enriches it with cached metadata.
func (s *Service) GetFile(_ context.Context, path string) (*FileDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildFileDetail(path, data)
}

// CreateFile writes a new file and folds it into the cache and index.
func (s *Service) CreateFile(_ context.Context, path string, content []byte) (*FileDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.absorb(path); err != nil {
		return nil, err
	}
	return s.buildFileDetail(path, content)
}

// UpdateFile writes updated content with optimistic concurrency.
func (s *Service) UpdateFile(_ context.Context, path string, content []byte, ifMatch string) (*FileDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.absorb(path); err != nil {
		return nil, err
	}
	return s.buildFileDetail(path, content)
}

// DeleteFile removes a file from storage, cache, and index.
func (s *Service) DeleteFile(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.Delete(path); err != nil {
		return err
	}
	if err := s.vlt.Refresh(); err != nil {
		return err
	}
	s.index.RemoveFile(path)
	return s.detector.Rebuild()
}

// MoveFile renames a file. Links elsewhere that pointed at the old path
// degrade to ghost references until their sources are edited.
func (s *Service) MoveFile(_ context.Context, oldPath, newPath string) (*FileDetail, error) {
	if _, err := s.store.Read(newPath); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Move(oldPath, newPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if err := s.db.Delete(oldPath); err != nil {
		return nil, err
	}
	s.index.RemoveFile(oldPath)
	if err := s.absorb(newPath); err != nil {
		return nil, err
	}
	data, err := s.store.Read(newPath)
	if err != nil {
		return nil, err
	}
	return s.buildFileDetail(newPath, data)
}

// ListFiles returns every known vault file from the cache.
func (s *Service) ListFiles(_ context.Context) ([]FileListItem, error) {
	infos, err := s.db.Files()
	if err != nil {
		return nil, err
	}
	items := make([]FileListItem, len(infos))
	for i, fi := range infos {
		meta, err := s.db.Get(fi.Path)
		title := ""
		if err == nil {
			title = meta.Title
		}
		items[i] = FileListItem{
			Path:      fi.Path,
			Title:     title,
			Checksum:  fi.Checksum,
			UpdatedAt: fi.UpdatedAt,
		}
	}
	return items, nil
}

// References returns the full key-to-links snapshot of the index.
func (s *Service) References(_ context.Context) map[string][]*refs.Link {
	return s.index.References()
}

// Counts returns per-key reference counts at or above min.
func (s *Service) Counts(_ context.Context, min int) map[string]int {
	return s.index.Counts(min)
}

// FileReferences returns the cached reference view for one file.
func (s *Service) FileReferences(_ context.Context, path string) (*refs.FileCache, error) {
	fc, err := s.index.FileCacheFor(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return fc, nil
}

// Detections scans one file's content for implicit links.
func (s *Service) Detections(_ context.Context, path string) ([]detect.Detection, error) {
	text, err := s.vlt.Text(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.detector.Detect(path, text), nil
}

// Policies lists every registered policy, flagging the active one.
func (s *Service) Policies(_ context.Context) []PolicyInfo {
	active := s.index.Policy().ID()
	all := refs.Policies()
	out := make([]PolicyInfo, len(all))
	for i, p := range all {
		out[i] = PolicyInfo{ID: p.ID(), Name: p.Name(), Active: p.ID() == active}
	}
	return out
}

// SetPolicy switches the active policy and rebuilds everything keyed under it:
// the reference index and the dictionary detector, whose trie terminals carry
// policy keys.
func (s *Service) SetPolicy(_ context.Context, id string) error {
	p, err := refs.PolicyByID(id)
	if err != nil {
		return err
	}
	if err := s.index.SetPolicy(p); err != nil {
		return err
	}
	return s.detector.Rebuild()
}

// SetDetection replaces the detection configuration.
func (s *Service) SetDetection(_ context.Context, settings detect.Settings) error {
	return s.detector.UpdateSettings(settings)
}

// DetectionMode returns the active detection mode.
func (s *Service) DetectionMode(_ context.Context) detect.Mode {
	return s.detector.Mode()
}

// FindLinks returns every indexed reference equivalent to the given link text
// as seen from sourcePath.
func (s *Service) FindLinks(_ context.Context, sourcePath, linkText string) []*refs.Link {
	return s.index.FindAllForLink(sourcePath, linkText)
}

// Rebuild re-syncs the cache from disk and rebuilds the index and detector.
// Used after out-of-band vault changes. Each run gets an id so overlapping
// rebuild logs stay distinguishable.
func (s *Service) Rebuild(_ context.Context) error {
	id := uuid.NewString()
	logger := s.logger.With(slog.String("rebuild_id", id))
	logger.Info("rebuild started")
	if err := metacache.Sync(s.db, s.store, logger); err != nil {
		return err
	}
	if err := s.vlt.Refresh(); err != nil {
		return err
	}
	if err := s.index.Build(); err != nil {
		return err
	}
	if err := s.detector.Rebuild(); err != nil {
		return err
	}
	logger.Info("rebuild finished")
	return nil
}

// ApplyChange folds a single external file event into all layers. The watcher
// calls this; API mutations go through the dedicated methods instead.
func (s *Service) ApplyChange(kind, path string) error {
	if kind == "deleted" {
		if err := s.vlt.Refresh(); err != nil {
			return err
		}
		s.index.RemoveFile(path)
		return s.detector.Rebuild()
	}
	return s.absorb(path)
}

// absorb re-caches one file and propagates it through vault, index, and
// detector.
func (s *Service) absorb(path string) error {
	if err := metacache.SyncFile(s.db, s.store, path); err != nil {
		return err
	}
	if err := s.vlt.Refresh(); err != nil {
		return err
	}
	if err := s.index.UpdateFile(path); err != nil {
		return err
	}
	return s.detector.Rebuild()
}

func (s *Service) buildFileDetail(path string, data []byte) (*FileDetail, error) {
	detail := &FileDetail{
		Path:      path,
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		Aliases:   []string{},
		UpdatedAt: time.Now(),
	}
	meta, err := s.db.Get(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return detail, nil
		}
		return nil, err
	}
	detail.Title = meta.Title
	detail.Excluded = meta.Excluded
	if meta.Aliases != nil {
		detail.Aliases = meta.Aliases
	}
	return detail, nil
}
