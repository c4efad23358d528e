package replay

import (
	"sync"

	"github.com/adverge/pipeline/internal/schema"
)

// DeadLetterBuffer stores replay jobs that failed delivery.
type DeadLetterBuffer struct {
	mu       sync.Mutex
	capacity int
	jobs     []schema.ReplayJob
}

// NewDeadLetterBuffer creates a buffer with the provided capacity. Capacity <=0 implies unbounded.
func NewDeadLetterBuffer(capacity int) *DeadLetterBuffer {
	buffer := new(DeadLetterBuffer)
	buffer.capacity = capacity
	buffer.jobs = make([]schema.ReplayJob, 0)
	return buffer
}

// Offer records a failed replay job in the buffer.
func (b *DeadLetterBuffer) Offer(job schema.ReplayJob) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capacity > 0 && len(b.jobs) >= b.capacity {
		// Drop oldest job to make space for the new record.
		copy(b.jobs[0:], b.jobs[1:])
		b.jobs[len(b.jobs)-1] = job
		return
	}
	b.jobs = append(b.jobs, job)
}

// Drain retrieves and clears all buffered jobs.
func (b *DeadLetterBuffer) Drain() []schema.ReplayJob {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := make([]schema.ReplayJob, len(b.jobs))
	copy(drained, b.jobs)
	b.jobs = b.jobs[:0]
	return drained
}

// Len returns the number of buffered jobs.
func (b *DeadLetterBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}
