package testutil

import (
	"sync"

	"github.com/felixgeelhaar/theatre/internal/domain/surgery"
)

// RecordingNotifier keeps every notification it receives. It is safe for
// concurrent use, since delayed steps notify from timer goroutines.
type RecordingNotifier struct {
	mu    sync.Mutex
	notes []surgery.Notification
}

// NewRecordingNotifier creates an empty recorder.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// Notify implements surgery.Notifier.
func (r *RecordingNotifier) Notify(n surgery.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

// Notifications returns a copy of everything recorded so far.
func (r *RecordingNotifier) Notifications() []surgery.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]surgery.Notification(nil), r.notes...)
}

// Kinds returns the recorded kinds in delivery order.
func (r *RecordingNotifier) Kinds() []surgery.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]surgery.NotificationKind, len(r.notes))
	for i, n := range r.notes {
		kinds[i] = n.Kind
	}
	return kinds
}

// Count returns how many notifications of kind were recorded.
func (r *RecordingNotifier) Count(kind surgery.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notes {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

// Last returns the most recent notification of kind.
func (r *RecordingNotifier) Last(kind surgery.NotificationKind) (surgery.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.notes) - 1; i >= 0; i-- {
		if r.notes[i].Kind == kind {
			return r.notes[i], true
		}
	}
	return surgery.Notification{}, false
}

// Reset drops everything recorded.
func (r *RecordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

var _ surgery.Notifier = (*RecordingNotifier)(nil)
