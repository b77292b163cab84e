package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CollectionJob is a best-effort, clearly-flagged substitute for a delegated
// operation: when no valid procuration exists, the gateway enqueues one of
// these for the legacy data-collection worker instead of failing hard.
type CollectionJob struct {
	ID           uuid.UUID `json:"id"`
	ClientID     uuid.UUID `json:"client_id"`
	Jurisdiction string    `json:"jurisdiction"`
	TaxID        string    `json:"tax_id"`
	Kind         string    `json:"kind"` // "debt_query" or "guide_issuance"
	RequestedAt  time.Time `json:"requested_at"`
}

// JobQueue accepts collection jobs for asynchronous best-effort processing.
type JobQueue interface {
	Enqueue(ctx context.Context, job CollectionJob) error
}

// InMemJobQueue implements JobQueue using an in-memory slice
type InMemJobQueue struct {
	jobs []CollectionJob
	mu   sync.Mutex
}

// NewInMemJobQueue creates a new in-memory job queue
func NewInMemJobQueue() *InMemJobQueue {
	return &InMemJobQueue{}
}

// Enqueue records a job
func (q *InMemJobQueue) Enqueue(ctx context.Context, job CollectionJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// Jobs returns a copy of everything enqueued so far
func (q *InMemJobQueue) Jobs() []CollectionJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]CollectionJob, len(q.jobs))
	copy(jobs, q.jobs)
	return jobs
}
