package pipeline

import (
	"log"
	"runtime"
	"sync"

	"github.com/md-ryhan-uddin/document-extraction-ai-system/models"
)

// Queue feeds documents to a fixed pool of pipeline workers. Triggers
// enqueue an id and return immediately; they never hold a handle to the
// running job. Cancellation goes through the registry by document identity.
type Queue struct {
	proc *Processor
	jobs chan uint
	wg   sync.WaitGroup
}

// NewQueue starts the worker pool. workers <= 0 means NumCPU; backlog <= 0
// picks a default buffer.
func NewQueue(proc *Processor, workers, backlog int) *Queue {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if backlog <= 0 {
		backlog = 64
	}
	q := &Queue{proc: proc, jobs: make(chan uint, backlog)}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for id := range q.jobs {
		var doc models.Document
		if err := q.proc.db.First(&doc, id).Error; err != nil {
			log.Printf("ERROR load document %d for processing: %v", id, err)
			continue
		}
		q.proc.Process(&doc)
	}
}

// Enqueue schedules a document for processing. Blocks only when the backlog
// buffer is full.
func (q *Queue) Enqueue(documentID uint) {
	q.jobs <- documentID
}

// Close stops intake and waits for in-flight documents to finish.
func (q *Queue) Close() {
	close(q.jobs)
	q.wg.Wait()
}
