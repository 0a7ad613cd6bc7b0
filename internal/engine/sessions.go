package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// SessionManager owns attendance-session state per person. All
// mutations for one person are serialized through a per-key lock, so a
// check-then-act race on the same person cannot open two active
// sessions. The in-memory map is authoritative; the store is
// write-through and its failures are logged, never fatal.
type SessionManager struct {
	store SessionStore

	mu     sync.Mutex
	active map[string]*models.Session
	locks  map[string]*sync.Mutex
}

func NewSessionManager(store SessionStore) *SessionManager {
	return &SessionManager{
		store:  store,
		active: make(map[string]*models.Session),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Bootstrap loads active sessions from the store after a restart.
func (m *SessionManager) Bootstrap(ctx context.Context) error {
	sessions, err := m.store.ListActive(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for i := range sessions {
		s := sessions[i]
		m.active[s.PersonID] = &s
	}
	count := len(m.active)
	m.mu.Unlock()

	observability.ActiveSessions.Set(float64(count))
	if count > 0 {
		slog.Info("restored active sessions", "count", count)
	}
	return nil
}

func (m *SessionManager) keyLock(personID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[personID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[personID] = l
	}
	return l
}

// Touch records a qualifying detection for a person: it opens a session
// when none is active, otherwise refreshes last_seen_at. Returns the
// session and whether it was just opened.
func (m *SessionManager) Touch(ctx context.Context, personID string, now time.Time) (models.Session, bool) {
	kl := m.keyLock(personID)
	kl.Lock()
	defer kl.Unlock()

	m.mu.Lock()
	sess := m.active[personID]
	m.mu.Unlock()

	if sess == nil {
		// Consult the store once in case a session survived a restart.
		stored, err := m.store.GetActiveSession(ctx, personID)
		if err != nil {
			slog.Warn("get active session", "person_id", personID, "error", err)
		} else if stored != nil {
			sess = stored
			m.mu.Lock()
			m.active[personID] = sess
			m.mu.Unlock()
		}
	}

	if sess != nil {
		// The sweeper and reporting snapshots read session fields under
		// m.mu, so the refresh must happen under it too.
		m.mu.Lock()
		sess.LastSeenAt = now
		snapshot := *sess
		m.mu.Unlock()

		if err := m.store.Upsert(ctx, &snapshot); err != nil {
			slog.Warn("refresh session", "person_id", personID, "error", err)
		}
		return snapshot, false
	}

	sess = &models.Session{
		ID:          uuid.New(),
		PersonID:    personID,
		Status:      models.SessionActive,
		ArrivalTime: now,
		LastSeenAt:  now,
	}
	if err := m.store.Upsert(ctx, sess); err != nil {
		slog.Warn("create session", "person_id", personID, "error", err)
	}

	m.mu.Lock()
	m.active[personID] = sess
	count := len(m.active)
	m.mu.Unlock()

	observability.SessionsOpened.Inc()
	observability.ActiveSessions.Set(float64(count))
	slog.Info("session opened", "person_id", personID, "session_id", sess.ID)

	return *sess, true
}

// SweepTimeouts ends every active session that has been silent longer
// than grace, with departure_time equal to the last refresh. Persons
// for which exempt returns true are skipped; the visitor sweep ends
// those sessions itself so the departure event can carry them. Calling
// it twice in a row is a no-op the second time.
func (m *SessionManager) SweepTimeouts(ctx context.Context, grace time.Duration, now time.Time, exempt func(personID string) bool) []models.Session {
	m.mu.Lock()
	var candidates []string
	for personID, sess := range m.active {
		if exempt != nil && exempt(personID) {
			continue
		}
		if now.Sub(sess.LastSeenAt) > grace {
			candidates = append(candidates, personID)
		}
	}
	m.mu.Unlock()

	var ended []models.Session
	for _, personID := range candidates {
		if sess, ok := m.end(ctx, personID, grace, now); ok {
			ended = append(ended, sess)
			observability.SessionsClosed.WithLabelValues("timeout").Inc()
		}
	}

	if len(ended) > 0 {
		slog.Info("sessions timed out", "count", len(ended), "grace", grace)
	}
	return ended
}

// end closes one person's session under its key lock, re-checking the
// silence condition in case a detection raced the sweep.
func (m *SessionManager) end(ctx context.Context, personID string, grace time.Duration, now time.Time) (models.Session, bool) {
	kl := m.keyLock(personID)
	kl.Lock()
	defer kl.Unlock()

	m.mu.Lock()
	sess := m.active[personID]
	if sess == nil || now.Sub(sess.LastSeenAt) <= grace {
		m.mu.Unlock()
		return models.Session{}, false
	}

	departure := sess.LastSeenAt
	sess.Status = models.SessionEnded
	sess.DepartureTime = &departure
	snapshot := *sess
	delete(m.active, personID)
	count := len(m.active)
	m.mu.Unlock()

	if err := m.store.EndSession(ctx, snapshot.ID.String(), departure); err != nil {
		slog.Warn("end session", "person_id", personID, "session_id", snapshot.ID, "error", err)
	}

	observability.ActiveSessions.Set(float64(count))
	return snapshot, true
}

// Close ends a person's active session regardless of silence (explicit
// removal, e.g. a departing temp visitor). Departure time is the last
// refresh. Reports whether a session was actually ended.
func (m *SessionManager) Close(ctx context.Context, personID string) (models.Session, bool) {
	sess, ok := m.end(ctx, personID, -1, time.Now())
	if ok {
		observability.SessionsClosed.WithLabelValues("removed").Inc()
	}
	return sess, ok
}

// Active returns the current active session for a person, if any.
func (m *SessionManager) Active(personID string) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.active[personID]
	if !ok {
		return models.Session{}, false
	}
	return *sess, true
}

// ListActive returns a snapshot of all active sessions. Staleness is
// acceptable for reporting; mutations go through Touch and the sweeps.
func (m *SessionManager) ListActive() []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, 0, len(m.active))
	for _, sess := range m.active {
		out = append(out, *sess)
	}
	return out
}

// Reset drops all in-memory session state (clear_attendance).
func (m *SessionManager) Reset() {
	m.mu.Lock()
	m.active = make(map[string]*models.Session)
	m.locks = make(map[string]*sync.Mutex)
	m.mu.Unlock()
	observability.ActiveSessions.Set(0)
}
