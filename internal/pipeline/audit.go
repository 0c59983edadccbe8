package pipeline

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/veracity/internal/model"
)

// Recorder collects the audit entries of one verification. It is safe for
// concurrent use by the analyzer branches.
type Recorder struct {
	mu      sync.Mutex
	session string
	now     func() time.Time
	entries []model.AuditEntry
}

// NewRecorder creates a recorder for session
func NewRecorder(session string, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{session: session, now: now}
}

// Record appends an entry stamped with the current time
func (r *Recorder) Record(action model.AuditAction, component, step string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, model.AuditEntry{
		ID:        uuid.NewString(),
		SessionID: r.session,
		Timestamp: r.now().UTC(),
		Action:    action,
		Component: component,
		Step:      step,
		Details:   details,
	})
}

// Entries returns a copy of everything recorded so far
func (r *Recorder) Entries() []model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}
