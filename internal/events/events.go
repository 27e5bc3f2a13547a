// Package events defines the structured diagnostic events the engine emits
// on every lifecycle state transition and failure. Hosts consume them
// through the Sink interface; the default sink forwards to slog.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loadstone/loadstone/internal/ctxlog"
)

// Kind classifies a diagnostic event.
type Kind string

const (
	// KindStateChange marks a mod lifecycle state transition.
	KindStateChange Kind = "state_change"
	// KindLoadFailure marks a mod load or initialization failure.
	KindLoadFailure Kind = "load_failure"
	// KindPatchFailure marks a patch that failed to attach.
	KindPatchFailure Kind = "patch_failure"
	// KindStaleDependent marks a mod left loaded against a reloaded dependency.
	KindStaleDependent Kind = "stale_dependent"
)

// Event is one structured diagnostic record.
type Event struct {
	ID    uuid.UUID
	Kind  Kind
	ModID string
	// From and To carry lifecycle states for state-change events.
	From string
	To   string
	Err  error
	At   time.Time
}

// Sink consumes diagnostic events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// New builds an event with a fresh identity and timestamp.
func New(kind Kind, modID string) Event {
	return Event{ID: uuid.New(), Kind: kind, ModID: modID, At: time.Now()}
}

// SlogSink forwards events to the context logger.
type SlogSink struct{}

// Emit implements Sink.
func (SlogSink) Emit(ctx context.Context, ev Event) {
	logger := ctxlog.FromContext(ctx).With(
		"event_id", ev.ID.String(),
		"event", string(ev.Kind),
		"mod", ev.ModID,
	)
	switch {
	case ev.Err != nil:
		logger.Error("Mod lifecycle event.", "from", ev.From, "to", ev.To, "error", ev.Err)
	case ev.Kind == KindStateChange:
		logger.Debug("Mod lifecycle event.", "from", ev.From, "to", ev.To)
	default:
		logger.Info("Mod lifecycle event.", "from", ev.From, "to", ev.To)
	}
}
