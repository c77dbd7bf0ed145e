// Package storage archives render runs: per-run JSON metadata plus a
// CSV holding each channel's final level report, so rendering sessions
// can be compared offline.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/vacoustic/internal/render"
)

// Store is a directory-backed run archive.
type Store struct {
	baseDir string
}

// New binds a store to a base directory.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the base directory.
func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one archived render run.
type RunMetadata struct {
	ID         string    `json:"id"`
	Scene      string    `json:"scene"`
	Timestamp  time.Time `json:"timestamp"`
	SampleRate float64   `json:"sample_rate"`
	Fragment   int       `json:"fragment"`
	Blocks     int       `json:"blocks"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// Save archives a run: metadata plus the final level report per
// channel, one CSV row each.
func (s *Store) Save(sceneName string, sampleRate float64, fragment, blocks int, warnings []string, levels []render.LevelReport) (string, error) {
	runID := fmt.Sprintf("%s_%s", sceneName, uuid.New().String()[:8])
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scene:      sceneName,
		Timestamp:  time.Now(),
		SampleRate: sampleRate,
		Fragment:   fragment,
		Blocks:     blocks,
		Warnings:   warnings,
	}
	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "levels.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()
	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"receiver", "channel", "rms_dbspl", "peak_dbspl", "q30", "q50", "q65", "q95", "q99"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, l := range levels {
		row := []string{
			l.Receiver,
			strconv.Itoa(l.Channel),
			fmtDB(l.RMS),
			fmtDB(l.Peak),
			fmtDB(l.Percentiles[30]),
			fmtDB(l.Percentiles[50]),
			fmtDB(l.Percentiles[65]),
			fmtDB(l.Percentiles[95]),
			fmtDB(l.Percentiles[99]),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func fmtDB(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// List returns the metadata of every archived run.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}
	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

// Load returns the metadata of one run.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
