package cron

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const storeVersion = 1

type storeFile struct {
	Version int    `json:"version"`
	Jobs    []*Job `json:"jobs"`
}

// Store persists cron jobs to a single JSON file. It is not safe for
// concurrent use; the Service serializes all access.
type Store struct {
	path string
	jobs map[string]*Job
}

func NewStore(path string) *Store {
	return &Store{path: path, jobs: make(map[string]*Job)}
}

func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cron store: %w", err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse cron store: %w", err)
	}
	for _, job := range f.Jobs {
		if job != nil && job.ID != "" {
			s.jobs[job.ID] = job
		}
	}
	return nil
}

func (s *Store) Save() error {
	f := storeFile{Version: storeVersion, Jobs: s.List()}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cron store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cron store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cron store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to save cron store: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (*Job, bool) {
	job, ok := s.jobs[id]
	return job, ok
}

func (s *Store) Put(job *Job) {
	s.jobs[job.ID] = job
}

func (s *Store) Remove(id string) bool {
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// List returns jobs ordered by creation time, then ID for stability.
func (s *Store) List() []*Job {
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAtMs != jobs[j].CreatedAtMs {
			return jobs[i].CreatedAtMs < jobs[j].CreatedAtMs
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}
