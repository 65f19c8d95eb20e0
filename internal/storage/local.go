package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/types"
)

// Metadata is the sidecar record written next to every final transcript.
type Metadata struct {
	JobID           string      `json:"job_id"`
	Source          string      `json:"source"`
	Output          string      `json:"output"`
	Format          string      `json:"format"`
	Engine          string      `json:"engine,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
	WordCount       int         `json:"word_count"`
	Language        string      `json:"language,omitempty"`
	Chunks          int         `json:"chunks"`
	Diarized        bool        `json:"diarized"`
	Gaps            []types.Gap `json:"gaps,omitempty"`
	GDriveURL       string      `json:"gdrive_url,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// LocalStorage handles transcript sidecar files on the local filesystem
type LocalStorage struct {
	enabled bool
}

// NewLocalStorage creates a local storage handler. When writeMeta is false
// SaveMetadata only encodes the record.
func NewLocalStorage(writeMeta bool) *LocalStorage {
	return &LocalStorage{enabled: writeMeta}
}

// MetaPath returns the sidecar path for a transcript: report.txt -> report_meta.json.
func MetaPath(transcriptPath string) string {
	return strings.TrimSuffix(transcriptPath, filepath.Ext(transcriptPath)) + "_meta.json"
}

// SaveMetadata writes meta next to its transcript and returns the encoded record.
func (ls *LocalStorage) SaveMetadata(meta Metadata) ([]byte, error) {
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if !ls.enabled {
		return metaJSON, nil
	}
	if err := os.WriteFile(MetaPath(meta.Output), metaJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}
	return metaJSON, nil
}

// datedName prefixes a sanitized name with a timestamp: 20250123_143022_podcast_episode.
func datedName(now time.Time, name string) string {
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(name))
}

// sanitizeFilename strips directories and replaces characters that are
// invalid in file names with underscores.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if len(result) > 100 {
		result = result[:100] // Limit length
	}
	return result
}
