package proofstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileStore implements Store using one file per proof document under a data
// directory. The returned reference is the path relative to the data dir.
type FileStore struct {
	dataDir string
	mutex   sync.RWMutex
}

// NewFileStore creates a new file-based proof store
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// Save writes the document and returns its reference
func (s *FileStore) Save(ctx context.Context, clientID, procurationID uuid.UUID, document []byte) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	dir := filepath.Join(s.dataDir, clientID.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create client directory: %w", err)
	}

	ref := filepath.Join(clientID.String(), procurationID.String()+".pdf")
	if err := os.WriteFile(filepath.Join(s.dataDir, ref), document, 0644); err != nil {
		return "", fmt.Errorf("failed to write proof document: %w", err)
	}
	return ref, nil
}

// Fetch reads a document back by its reference
func (s *FileStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	// Refuse references that escape the data directory.
	clean := filepath.Clean(ref)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid proof reference: %s", ref)
	}

	document, err := os.ReadFile(filepath.Join(s.dataDir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrProofNotFound
		}
		return nil, fmt.Errorf("failed to read proof document: %w", err)
	}
	return document, nil
}
