package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/projector"
)

// FileStorage archives records as JSON files, one file per record under
// a per-device directory.
type FileStorage struct {
	basePath string
}

// fileRecord is the on-disk shape of an archived record
type fileRecord struct {
	DeviceID   string          `json:"device_id"`
	Timestamp  time.Time       `json:"ts"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewFileStorage creates a file archive backend
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dir %s: %v", basePath, err)
	}

	logger.Info("file storage initialized: %s", basePath)
	return &FileStorage{
		basePath: basePath,
	}, nil
}

// Store writes the record to a timestamped JSON file
func (fs *FileStorage) Store(record *projector.Record) error {
	deviceDir := filepath.Join(fs.basePath, record.DeviceID)
	if err := os.MkdirAll(deviceDir, 0755); err != nil {
		return fmt.Errorf("failed to create dir %s: %v", deviceDir, err)
	}

	timestamp := time.Now().Format("20060102-150405.000000")
	filename := filepath.Join(deviceDir, fmt.Sprintf("%s.json", timestamp))

	jsonData, err := json.MarshalIndent(fileRecord{
		DeviceID:   record.DeviceID,
		Timestamp:  record.Timestamp,
		ReceivedAt: record.ReceivedAt,
		Payload:    json.RawMessage(record.Payload),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize record: %v", err)
	}

	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %v", filename, err)
	}

	logger.Debug("archived record for device %s to %s", record.DeviceID, filename)
	return nil
}

// Close implements Backend
func (fs *FileStorage) Close() error {
	return nil
}
