// Package stub is a self-contained stand-in for the document conversion
// service. It speaks the same wire protocol (multipart upload, status
// polling, per-file and bundled downloads) against an in-memory job table
// and paces every job through pending -> processing -> completed, so the
// client can be exercised end to end without the real backend.
package stub

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/logger"
)

// Job is the stub's record of one conversion request.
type Job struct {
	ID        string
	Status    domain.JobStatus
	Inputs    []string
	Outputs   []string
	Error     string
	CreatedAt time.Time
}

// UploadedFile is one file received by the upload endpoint.
type UploadedFile struct {
	Name string
	Data []byte
}

// StoreConfig tunes the store.
type StoreConfig struct {
	// WorkDir is where input and output files live, one directory per job.
	WorkDir string
	// StepDelay paces the fake conversion between statuses. Zero converts
	// instantly, which is what tests want.
	StepDelay time.Duration
}

// Store keeps the stub's jobs and drives their fake conversion. A filename
// containing "fail" makes its whole job fail; everything else is "converted"
// by copying the bytes to a .pdf of the same base name.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	workDir   string
	stepDelay time.Duration
	logger    *logger.Logger
}

// NewStore creates a store.
// Parameters:
//   - cfg: tuning; nil keeps the defaults.
//   - log: structured logger; nil uses the default.
//
// Returns:
//   - *Store: initialized store with no jobs.
func NewStore(cfg *StoreConfig, log *logger.Logger) *Store {
	if cfg == nil {
		cfg = &StoreConfig{}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "docmill-stub")
	}
	return &Store{
		jobs:      make(map[string]*Job),
		workDir:   workDir,
		stepDelay: cfg.StepDelay,
		logger:    log.WithField(logger.FieldComponent, "stub-store"),
	}
}

// CreateJob registers an uploaded batch and starts converting it in the
// background. The returned id is immediately pollable.
func (s *Store) CreateJob(files []UploadedFile) (string, error) {
	id := uuid.New().String()

	inDir := filepath.Join(s.workDir, id, "in")
	if err := os.MkdirAll(inDir, 0o755); err != nil {
		return "", err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		name := filepath.Base(f.Name)
		if err := os.WriteFile(filepath.Join(inDir, name), f.Data, 0o644); err != nil {
			return "", err
		}
		names = append(names, name)
	}

	j := &Job{
		ID:        id,
		Status:    domain.StatusPending,
		Inputs:    names,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[id] = j
	s.mu.Unlock()

	s.logger.WithFields(logger.Fields{
		logger.FieldJobID: id,
		logger.FieldCount: len(names),
	}).Info("job accepted")

	go s.process(id)
	return id, nil
}

// Get returns a copy of the job record.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	out := *j
	out.Inputs = append([]string(nil), j.Inputs...)
	out.Outputs = append([]string(nil), j.Outputs...)
	return out, true
}

// OutputPath resolves an output filename to its path on disk. Only names the
// job actually produced resolve; anything else reports false.
func (s *Store) OutputPath(id, filename string) (string, bool) {
	j, ok := s.Get(id)
	if !ok {
		return "", false
	}
	name := filepath.Base(filename)
	for _, out := range j.Outputs {
		if out == name {
			return filepath.Join(s.workDir, id, "out", name), true
		}
	}
	return "", false
}

// process walks one job through the conversion lifecycle.
func (s *Store) process(id string) {
	s.pause()
	if !s.setStatus(id, domain.StatusProcessing) {
		return
	}
	s.pause()

	s.mu.RLock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.RUnlock()
		return
	}
	inputs := append([]string(nil), j.Inputs...)
	s.mu.RUnlock()

	for _, name := range inputs {
		if strings.Contains(strings.ToLower(name), "fail") {
			s.fail(id, "conversion error")
			return
		}
	}

	outDir := filepath.Join(s.workDir, id, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		s.fail(id, "internal storage error")
		return
	}

	outputs := make([]string, 0, len(inputs))
	for _, name := range inputs {
		data, err := os.ReadFile(filepath.Join(s.workDir, id, "in", name))
		if err != nil {
			s.fail(id, "internal storage error")
			return
		}
		out := convertedName(name)
		if err := os.WriteFile(filepath.Join(outDir, out), data, 0o644); err != nil {
			s.fail(id, "internal storage error")
			return
		}
		outputs = append(outputs, out)
	}

	s.mu.Lock()
	if j, ok := s.jobs[id]; ok {
		j.Status = domain.StatusCompleted
		j.Outputs = outputs
	}
	s.mu.Unlock()

	s.logger.WithFields(logger.Fields{
		logger.FieldJobID: id,
		logger.FieldCount: len(outputs),
	}).Info("job completed")
}

func (s *Store) setStatus(id string, status domain.JobStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	j.Status = status
	return true
}

func (s *Store) fail(id, detail string) {
	s.mu.Lock()
	if j, ok := s.jobs[id]; ok {
		j.Status = domain.StatusFailed
		j.Error = detail
	}
	s.mu.Unlock()

	s.logger.WithField(logger.FieldJobID, id).Warn("job failed: " + detail)
}

func (s *Store) pause() {
	if s.stepDelay > 0 {
		time.Sleep(s.stepDelay)
	}
}

// convertedName is the output name for one converted document. Everything
// comes out of the mill as PDF.
func convertedName(in string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".pdf"
}
