package metacache

import "github.com/starford/othala/internal/models"

// Store defines the interface for metadata cache operations. Consumers should
// depend on this interface rather than the concrete *DB type to facilitate
// testing with mocks.
type Store interface {
	Upsert(meta *models.FileMeta, checksum string) error
	Delete(path string) error
	Get(path string) (*models.FileMeta, error)
	GetChecksum(path string) (string, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	AllMetas() ([]*models.FileMeta, error)
	Files() ([]models.FileInfo, error)
	IsExcluded(path string) (bool, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
