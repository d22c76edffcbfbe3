package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"

	StatusComplete = "complete"
	StatusPartial  = "partial"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Masses    []float64          `json:"masses"`
	G         float64            `json:"g"`
	T0        float64            `json:"t0"`
	T1        float64            `json:"t1"`
	Reached   float64            `json:"reached"`
	RelTol    float64            `json:"rtol"`
	AbsTol    float64            `json:"atol"`
	Samples   int                `json:"samples"`
	Accepted  int                `json:"accepted"`
	Rejected  int                `json:"rejected"`
	Evals     int                `json:"evaluations"`
	Status    string             `json:"status"`
	Failure   string             `json:"failure,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
}

// NewMetadata describes a finished (or aborted) run.
func NewMetadata(name string, cfg sim.Config, traj *sim.Trajectory, samples int) RunMetadata {
	stats := traj.Stats()
	meta := RunMetadata{
		Name:     name,
		Masses:   append([]float64(nil), cfg.Masses...),
		G:        cfg.G,
		T0:       cfg.T0,
		T1:       cfg.T1,
		Reached:  traj.End(),
		RelTol:   cfg.RelTol,
		AbsTol:   cfg.AbsTol,
		Samples:  samples,
		Accepted: stats.Accepted,
		Rejected: stats.Rejected,
		Evals:    stats.Evaluations,
		Status:   StatusComplete,
		Metrics:  traj.Metrics(),
	}
	if err := traj.Err(); err != nil {
		meta.Status = StatusPartial
		meta.Failure = err.Error()
	}
	return meta
}

// Save writes meta and frames into a new run directory and returns its ID.
func (s *Store) Save(meta RunMetadata, frames dynamo.Frames) (string, error) {
	if meta.Name == "" {
		meta.Name = "run"
	}
	meta.Timestamp = time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Name, meta.Timestamp.UnixNano())
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, frames, len(meta.Masses)); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns the stored runs, oldest first. Directories without readable
// metadata are skipped.
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
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadStates reads a run's sampled states back as frames.
func (s *Store) LoadStates(runID string) (*Recording, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rec, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return rec, nil
}
