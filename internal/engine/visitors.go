package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// VisitorManager owns the temporary-visitor lifecycle: promotion of a
// confirmed stranger into a registered temp profile, activity tracking,
// and removal after a period of silence.
type VisitorManager struct {
	profiles  ProfileStore
	sessions  *SessionManager
	snapshots SnapshotStore

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewVisitorManager(profiles ProfileStore, sessions *SessionManager, snapshots SnapshotStore) *VisitorManager {
	return &VisitorManager{
		profiles:  profiles,
		sessions:  sessions,
		snapshots: snapshots,
		lastSeen:  make(map[string]time.Time),
	}
}

// Bootstrap re-tracks temporary profiles that survived a restart, so
// their timeout clock resumes and departure cleanup still fires.
func (v *VisitorManager) Bootstrap(ctx context.Context, now time.Time) error {
	profiles, err := v.profiles.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}

	var restored int
	for i := range profiles {
		if profiles[i].Role != models.RoleTemporary {
			continue
		}
		v.Track(profiles[i].PersonID, now)
		restored++
	}
	if restored > 0 {
		slog.Info("restored temp visitors", "count", restored)
	}
	return nil
}

// Promote registers a confirmed stranger as a temporary visitor and
// opens their attendance session. The snapshot upload is best-effort;
// registration failure is not, the caller keeps the detection as an
// unresolved stranger.
func (v *VisitorManager) Promote(ctx context.Context, stranger *ConfirmedStranger, snapshot []byte, now time.Time) (*models.Identity, models.Session, error) {
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	identity := &models.Identity{
		PersonID:  fmt.Sprintf("temp_%s_%s", now.Format("20060102_150405"), short),
		Name:      fmt.Sprintf("Visitor %s", now.Format("15:04:05")),
		Role:      models.RoleTemporary,
		Embedding: stranger.Embedding,
		CreatedAt: now,
	}

	personID, err := v.profiles.Register(ctx, identity)
	if err != nil {
		return nil, models.Session{}, fmt.Errorf("%w: %v", ErrRegistrationConflict, err)
	}
	identity.PersonID = personID

	sess, _ := v.sessions.Touch(ctx, personID, now)

	if len(snapshot) > 0 && v.snapshots != nil {
		key := fmt.Sprintf("strangers/%s/%s.jpg", now.Format("2006-01-02"), personID)
		if err := v.snapshots.PutObject(ctx, key, snapshot, "image/jpeg"); err != nil {
			slog.Warn("stranger snapshot upload", "person_id", personID, "error", err)
		}
	}

	v.mu.Lock()
	v.lastSeen[personID] = now
	count := len(v.lastSeen)
	v.mu.Unlock()

	observability.StrangersConfirmed.Inc()
	observability.TempVisitors.Set(float64(count))
	slog.Info("stranger promoted to temp visitor",
		"person_id", personID, "bucket", stranger.BucketID, "detections", stranger.Detections)

	return identity, sess, nil
}

// Seen refreshes a temp visitor's activity clock. Safe to call for any
// person; non-temp IDs that were never promoted are ignored.
func (v *VisitorManager) Seen(personID string, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.lastSeen[personID]; ok {
		v.lastSeen[personID] = now
	}
}

// Track starts following a temp visitor restored from the registry
// after a restart.
func (v *VisitorManager) Track(personID string, now time.Time) {
	v.mu.Lock()
	v.lastSeen[personID] = now
	count := len(v.lastSeen)
	v.mu.Unlock()
	observability.TempVisitors.Set(float64(count))
}

// Sweep removes temp visitors silent longer than timeout: their session
// is ended, their profile deleted, and a departure event returned for
// each. Removal is idempotent; a second sweep finds nothing.
func (v *VisitorManager) Sweep(ctx context.Context, timeout time.Duration, now time.Time) []models.Event {
	v.mu.Lock()
	var expired []string
	for personID, seen := range v.lastSeen {
		if now.Sub(seen) > timeout {
			expired = append(expired, personID)
		}
	}
	for _, personID := range expired {
		delete(v.lastSeen, personID)
	}
	count := len(v.lastSeen)
	v.mu.Unlock()

	if len(expired) == 0 {
		return nil
	}
	observability.TempVisitors.Set(float64(count))

	var events []models.Event
	for _, personID := range expired {
		sess, ended := v.sessions.Close(ctx, personID)
		if err := v.profiles.Delete(ctx, personID); err != nil {
			slog.Warn("delete temp visitor profile", "person_id", personID, "error", err)
		}

		evt := models.Event{
			Event:     models.EventTempVisitorDeparted,
			PersonID:  personID,
			Role:      models.RoleTemporary,
			Status:    models.SessionEnded,
			Timestamp: now,
		}
		if ended {
			evt.SessionID = sess.ID.String()
			evt.ArrivalTime = sess.ArrivalTime
			evt.LastSeenAt = sess.LastSeenAt
		}
		events = append(events, evt)
		slog.Info("temp visitor departed", "person_id", personID)
	}
	return events
}

// Tracks reports whether a person is currently tracked as a temp
// visitor.
func (v *VisitorManager) Tracks(personID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.lastSeen[personID]
	return ok
}

// Count returns the number of tracked temp visitors.
func (v *VisitorManager) Count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.lastSeen)
}
