package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dresos/duckbot/internal/logging"
)

// Entry is one audited authorization decision. It carries coarse facts only;
// command payloads and chat content never appear here.
type Entry struct {
	ID       string
	CallerID int64
	Required Role
	Allowed  bool
	Reason   Reason
	At       time.Time
}

// Recorder receives audit entries for completed decisions.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

func newAuditEntry(caller Caller, required Role, d Decision) Entry {
	return Entry{
		ID:       uuid.NewString(),
		CallerID: caller.ID,
		Required: required,
		Allowed:  d.Allow,
		Reason:   d.Reason,
		At:       time.Now().UTC(),
	}
}

// LogRecorder writes audit entries to the structured log.
type LogRecorder struct{}

// Record implements Recorder.
func (LogRecorder) Record(ctx context.Context, e Entry) {
	logging.FromContext(ctx).Info("authorization decision",
		"audit_id", e.ID,
		"caller_id", e.CallerID,
		"required_role", e.Required.String(),
		"allowed", e.Allowed,
		"reason", string(e.Reason),
	)
}
