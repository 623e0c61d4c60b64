package importer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-field-ops/internal/db"
)

// State is the lifecycle stage of an import job
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateTruncating State = "TRUNCATING"
	StateInserting  State = "INSERTING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// insertFunc writes rows[start:end] of a job
type insertFunc func(ctx context.Context, start, end int) error

// Job tracks one bulk import. Chunk is the chunk being written while
// Inserting and the chunk that failed while Failed. Uncategorized customers
// were stored without a service category.
type Job struct {
	ID            uuid.UUID `json:"id"`
	Table         db.Table  `json:"table"`
	State         State     `json:"state"`
	Chunk         int       `json:"chunk"`
	Chunks        int       `json:"chunks"`
	ChunkSize     int       `json:"chunk_size"`
	Rows          int       `json:"rows"`
	Skipped       int       `json:"skipped"`
	Uncategorized int       `json:"uncategorized,omitempty"`
	Written       int       `json:"written"`
	Error         string    `json:"error,omitempty"`
	ArchiveKey    string    `json:"archive_key,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	replace   bool
	truncated bool
	insert    insertFunc
}

func newJob(table db.Table, rows, chunkSize int, replace bool, insert insertFunc, now time.Time) *Job {
	chunks := 0
	if rows > 0 {
		chunks = (rows + chunkSize - 1) / chunkSize
	}
	return &Job{
		ID:        uuid.New(),
		Table:     table,
		State:     StateNotStarted,
		Chunks:    chunks,
		ChunkSize: chunkSize,
		Rows:      rows,
		StartedAt: now,
		UpdatedAt: now,
		replace:   replace,
		insert:    insert,
	}
}

// bounds returns the row range of chunk
func (j *Job) bounds(chunk int) (int, int) {
	start := chunk * j.ChunkSize
	end := start + j.ChunkSize
	if end > j.Rows {
		end = j.Rows
	}
	return start, end
}

// Registry keeps the most recent job per table
type Registry struct {
	mu   sync.RWMutex
	jobs map[db.Table]*Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[db.Table]*Job)}
}

func (r *Registry) put(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.Table] = job
}

// update applies fn to a registered job under the registry lock
func (r *Registry) update(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

func (r *Registry) forget(table db.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, table)
}

func (r *Registry) job(table db.Table) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[table]
}

// Last returns a copy of the most recent job for table
func (r *Registry) Last(table db.Table) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[table]
	if !ok {
		return Job{}, false
	}
	return *job, true
}
