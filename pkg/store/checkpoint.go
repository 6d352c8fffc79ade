package store

import (
	"sync"
	"time"
)

// ProjectionCheckpoint records how far a projection has read the global log.
type ProjectionCheckpoint struct {
	ProjectionName string
	Position       int64
	LastEventID    string
	UpdatedAt      time.Time
}

// CheckpointStore persists projection checkpoints.
type CheckpointStore interface {
	// Save stores the checkpoint, replacing any previous one.
	Save(checkpoint *ProjectionCheckpoint) error

	// Load returns the checkpoint for projectionName, or a zero-position
	// checkpoint if none was saved.
	Load(projectionName string) (*ProjectionCheckpoint, error)

	// Delete removes the checkpoint.
	Delete(projectionName string) error
}

// MemoryCheckpointStore keeps checkpoints in process memory.
type MemoryCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string]ProjectionCheckpoint
}

// NewMemoryCheckpointStore creates an empty checkpoint store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: make(map[string]ProjectionCheckpoint)}
}

func (s *MemoryCheckpointStore) Save(checkpoint *ProjectionCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpoint.ProjectionName] = *checkpoint
	return nil
}

func (s *MemoryCheckpointStore) Load(projectionName string) (*ProjectionCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.checkpoints[projectionName]; ok {
		return &c, nil
	}
	return &ProjectionCheckpoint{ProjectionName: projectionName}, nil
}

func (s *MemoryCheckpointStore) Delete(projectionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, projectionName)
	return nil
}
