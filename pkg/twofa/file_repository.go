package twofa

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const methodsFileName = "twofa_methods.json"

// FileMethodRepository implements MethodRepository using file-based storage
type FileMethodRepository struct {
	dataDir string
	methods map[string][]methodRecord // keyed by user id
	mutex   sync.RWMutex
}

// NewFileMethodRepository creates a new file-based method repository
func NewFileMethodRepository(dataDir string) (*FileMethodRepository, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileMethodRepository{
		dataDir: dataDir,
		methods: make(map[string][]methodRecord),
	}

	// Load existing data
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileMethodRepository) ListMethods(ctx context.Context, userID string) (MethodList, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return recordsToList(r.methods[userID]), nil
}

func (r *FileMethodRepository) AddMethod(ctx context.Context, userID string, method Method) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous := r.methods[userID]
	records, err := appendRecord(previous, method)
	if err != nil {
		return err
	}
	r.methods[userID] = records

	if err := r.save(); err != nil {
		// Rollback
		r.methods[userID] = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileMethodRepository) SetEnabled(ctx context.Context, userID, methodID string, enabled bool) error {
	return r.update(userID, methodID, func(rec *methodRecord) {
		rec.Enabled = enabled
	})
}

func (r *FileMethodRepository) RemoveMethod(ctx context.Context, userID, methodID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous := r.methods[userID]
	records, err := removeRecord(previous, methodID)
	if err != nil {
		return err
	}
	r.methods[userID] = records

	if err := r.save(); err != nil {
		r.methods[userID] = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileMethodRepository) TouchLastUsed(ctx context.Context, userID, methodID string, at time.Time) error {
	return r.update(userID, methodID, func(rec *methodRecord) {
		t := at.UTC()
		rec.LastUsedAt = &t
	})
}

func (r *FileMethodRepository) update(userID, methodID string, fn func(*methodRecord)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous := r.methods[userID]
	records := make([]methodRecord, len(previous))
	copy(records, previous)
	if err := updateRecord(records, methodID, fn); err != nil {
		return err
	}
	r.methods[userID] = records

	if err := r.save(); err != nil {
		r.methods[userID] = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// load reads method data from file
func (r *FileMethodRepository) load() error {
	filePath := filepath.Join(r.dataDir, methodsFileName)

	// If file doesn't exist, start with empty map
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// If file is empty, start with empty map
	if len(data) == 0 {
		return nil
	}

	methods := make(map[string][]methodRecord)
	if err := json.Unmarshal(data, &methods); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	r.methods = methods

	return nil
}

// save writes method data to file atomically
func (r *FileMethodRepository) save() error {
	data, err := json.MarshalIndent(r.methods, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first, secrets are inside so keep it private
	tempFile := filepath.Join(r.dataDir, methodsFileName+".tmp")
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(r.dataDir, methodsFileName)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
