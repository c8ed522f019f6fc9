package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const fileFormatVersion = 1

type fileDocument struct {
	Version int             `json:"version"`
	Records []MessageRecord `json:"records"`
}

// FilePersister keeps the transcript as a JSON document on local disk.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) Save(_ context.Context, records []MessageRecord) error {
	data, err := json.MarshalIndent(fileDocument{Version: fileFormatVersion, Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".transcript-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close transcript: %w", err)
	}
	return os.Rename(tmp.Name(), p.path)
}

func (p *FilePersister) Load(_ context.Context) ([]MessageRecord, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.path, err)
	}
	return DecodeDocument(data)
}

// DecodeDocument parses a persisted transcript document.
func DecodeDocument(data []byte) ([]MessageRecord, error) {
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	if doc.Version != fileFormatVersion {
		return nil, fmt.Errorf("unsupported transcript version %d", doc.Version)
	}
	return doc.Records, nil
}

// EncodeDocument renders records in the persisted document format.
func EncodeDocument(records []MessageRecord) ([]byte, error) {
	return json.Marshal(fileDocument{Version: fileFormatVersion, Records: records})
}
