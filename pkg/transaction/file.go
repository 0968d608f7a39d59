package transaction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	DefaultFileName = "transactions.json"
)

// FilePersister keeps every record in a single JSON document
type FilePersister struct {
	filePath string
	mu       sync.Mutex
	records  map[string]*Record
}

type fileDocument struct {
	Transactions map[string]*Record `json:"transactions"`
}

// NewFilePersister creates a JSON file persister at filePath
func NewFilePersister(filePath string) *FilePersister {
	return &FilePersister{
		filePath: filePath,
		records:  make(map[string]*Record),
	}
}

// Load reads all records; a missing file yields none
func (f *FilePersister) Load() ([]*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.filePath, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
	}

	recs := make([]*Record, 0, len(doc.Transactions))
	for id, rec := range doc.Transactions {
		rec.ID = id
		f.records[id] = rec
		recs = append(recs, rec)
	}
	return recs, nil
}

// Save records rec and rewrites the file
func (f *FilePersister) Save(rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records[rec.ID] = rec.Clone()

	data, err := json.MarshalIndent(fileDocument{Transactions: f.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transactions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := f.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write transactions: %w", err)
	}
	if err := os.Rename(tempFile, f.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Close is a no-op; every Save is already durable
func (f *FilePersister) Close() error {
	return nil
}

// Path returns the backing file path
func (f *FilePersister) Path() string {
	return f.filePath
}
