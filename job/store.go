package job

import (
	"database/sql"
	"sync"

	"github.com/dreamtide/veod/errors"
	"github.com/dreamtide/veod/logger"
)

const (
	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 100
)

// Filter narrows List results. Nil fields match everything.
type Filter struct {
	Status   *Status
	Category *string
}

func (f Filter) matches(j *Job) bool {
	if f.Status != nil && j.Status != *f.Status {
		return false
	}
	if f.Category != nil && j.Category != *f.Category {
		return false
	}
	return true
}

// Store is the single shared record of jobs: an ordered in-memory
// collection (most recent first) written through to SQLite. Mutations
// appear atomic to readers and fan out to subscriber channels.
type Store struct {
	mu          sync.RWMutex
	jobs        []*Job
	index       map[string]int
	persist     *sqliteStore
	subscribers []chan *Job
}

// NewStore creates a store backed by the given database. Call Load to
// restore persisted jobs.
func NewStore(db *sql.DB) *Store {
	return &Store{
		index:       make(map[string]int),
		persist:     &sqliteStore{db: db},
		subscribers: make([]chan *Job, 0),
	}
}

// Load restores the persisted collection. Corrupt or unreadable storage
// degrades to an empty collection rather than failing startup.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.persist.loadAll()
	if err != nil {
		logger.Errorw("Failed to load persisted jobs, starting empty", "error", err)
		s.jobs = nil
		s.index = make(map[string]int)
		return
	}

	s.jobs = jobs
	s.reindex()
}

// Add inserts a job at the head of the collection. A duplicate id is an
// error.
func (s *Store) Add(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[j.ID]; exists {
		return errors.Wrapf(errors.ErrConflict, "job %s already exists", j.ID)
	}

	c := j.Clone()
	if err := s.persist.insert(c); err != nil {
		return err
	}

	s.jobs = append([]*Job{c}, s.jobs...)
	s.reindex()
	s.notifySubscribers(c)

	return nil
}

// Update replaces the record matching the job's id.
func (s *Store) Update(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.index[j.ID]
	if !exists {
		return errors.Wrapf(errors.ErrNotFound, "job %s", j.ID)
	}

	// Defensive serialization: a stale writer (a late progress tick racing
	// a terminal transition) must not resurrect a finished job or walk
	// progress backwards
	cur := s.jobs[i]
	if cur.Status.IsTerminal() && !j.Status.IsTerminal() {
		return nil
	}

	c := j.Clone()
	if !c.Status.IsTerminal() && c.Progress < cur.Progress {
		c.Progress = cur.Progress
	}
	if err := s.persist.update(c); err != nil {
		return err
	}

	s.jobs[i] = c
	s.notifySubscribers(c)

	return nil
}

// Remove deletes a job. Idempotent on unknown ids.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.index[id]
	if !exists {
		return nil
	}

	if err := s.persist.delete(id); err != nil {
		return err
	}

	s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
	s.reindex()

	return nil
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, exists := s.index[id]
	if !exists {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}

	return s.jobs[i].Clone(), nil
}

// GetByOperationID returns the job bound to a remote operation id.
func (s *Store) GetByOperationID(operationID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.jobs {
		if j.OperationID == operationID && j.OperationID != "" {
			return j.Clone(), nil
		}
	}

	return nil, errors.Wrapf(errors.ErrNotFound, "operation %s", operationID)
}

// List returns jobs matching the filter, preserving most-recent-first
// insertion order.
func (s *Store) List(f Filter) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if f.matches(j) {
			out = append(out, j.Clone())
		}
	}

	return out
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Subscribe returns a channel receiving every job mutation. The channel
// is buffered; slow consumers miss updates rather than block writers.
func (s *Store) Subscribe() chan *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *Store) Unsubscribe(ch chan *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// notifySubscribers sends a job update to all subscribers without blocking.
// Caller must hold the lock.
func (s *Store) notifySubscribers(j *Job) {
	for _, ch := range s.subscribers {
		select {
		case ch <- j.Clone():
		default:
			// Subscriber buffer full, skip
		}
	}
}

// reindex rebuilds the id index after an insert or delete. Caller must
// hold the lock.
func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.jobs))
	for i, j := range s.jobs {
		s.index[j.ID] = i
	}
}
