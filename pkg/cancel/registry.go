// Package cancel tracks documents whose processing should stop at the next
// pipeline checkpoint. Cancellation is cooperative: flagging a document here
// never preempts running work, it only makes the next checkpoint abort.
package cancel

import "sync"

// Registry is a process-wide, in-memory set of document IDs flagged for
// cancellation. State is lost on restart; documents stuck in "processing"
// after a crash are handled by the administrative force-cancel sweep.
//
// One instance is constructed at startup and shared by the HTTP surface,
// the worker queue and the pipeline. The backing set is never exposed.
type Registry struct {
	mu        sync.Mutex
	cancelled map[uint]struct{}
}

func NewRegistry() *Registry {
	return &Registry{cancelled: make(map[uint]struct{})}
}

// Request flags a document for cancellation. Idempotent.
func (r *Registry) Request(documentID uint) {
	r.mu.Lock()
	r.cancelled[documentID] = struct{}{}
	r.mu.Unlock()
}

// IsCancelled reports whether cancellation has been requested for a document.
func (r *Registry) IsCancelled(documentID uint) bool {
	r.mu.Lock()
	_, ok := r.cancelled[documentID]
	r.mu.Unlock()
	return ok
}

// Clear removes the cancellation flag for a document. Idempotent. Every
// terminal pipeline path clears the flag so it cannot leak into a later
// reprocess of the same document.
func (r *Registry) Clear(documentID uint) {
	r.mu.Lock()
	delete(r.cancelled, documentID)
	r.mu.Unlock()
}

// Reset drops all pending flags. Administrative use only.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.cancelled = make(map[uint]struct{})
	r.mu.Unlock()
}
