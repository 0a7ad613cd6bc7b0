package engine

import (
	"context"
	"errors"
	"time"

	"github.com/your-org/presence/internal/models"
)

var (
	// ErrFrameSkipped reports that the per-connection gate dropped the frame.
	ErrFrameSkipped = errors.New("frame skipped by gate")

	// ErrRegistrationConflict reports that the profile store rejected an
	// auto-registration; the detection stays an unresolved stranger.
	ErrRegistrationConflict = errors.New("registration conflict")
)

// Extractor turns opaque frame bytes into observed faces. Embedding
// computation is delegated entirely to this collaborator.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]models.Face, error)
}

// Matcher finds candidate identities for an embedding, ordered
// descending by confidence. An empty slice means no match.
type Matcher interface {
	Match(ctx context.Context, embedding []float32) ([]models.Match, error)
}

// ProfileStore is the external identity registry.
type ProfileStore interface {
	Register(ctx context.Context, id *models.Identity) (string, error)
	Get(ctx context.Context, personID string) (*models.Identity, error)
	ListProfiles(ctx context.Context) ([]models.Identity, error)
	Delete(ctx context.Context, personID string) error
}

// SessionStore persists attendance sessions. Failures are transient:
// callers log and carry on, in-memory state stays authoritative.
type SessionStore interface {
	GetActiveSession(ctx context.Context, personID string) (*models.Session, error)
	Upsert(ctx context.Context, sess *models.Session) error
	EndSession(ctx context.Context, sessionID string, departure time.Time) error
	ListActive(ctx context.Context) ([]models.Session, error)
}

// SnapshotStore archives stranger snapshots (best-effort).
type SnapshotStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// Notifier receives engine events. Detection applies the stability gate
// and escalation policy before fanning out to live subscribers;
// Dispatch routes a structured event to the role-matched webhook sink
// at most once per event.
type Notifier interface {
	Detection(evt models.Event, now time.Time)
	Dispatch(evt models.Event)
}

// Recorder appends to the recognition audit trail (fire-and-forget).
type Recorder interface {
	Record(ctx context.Context, entry models.RecognitionLog)
}
