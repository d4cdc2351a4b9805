// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/othala/internal/models"

// Provider is the interface for vault file operations. All paths are relative
// to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]models.FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
