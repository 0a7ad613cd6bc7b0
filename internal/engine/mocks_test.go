package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/your-org/presence/internal/models"
)

// memSessionStore is an in-memory SessionStore for tests.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	failing  bool
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*models.Session)}
}

func (s *memSessionStore) GetActiveSession(_ context.Context, personID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errors.New("store down")
	}
	for _, sess := range s.sessions {
		if sess.PersonID == personID && sess.Status == models.SessionActive {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memSessionStore) Upsert(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("store down")
	}
	cp := *sess
	s.sessions[sess.ID.String()] = &cp
	return nil
}

func (s *memSessionStore) EndSession(_ context.Context, sessionID string, departure time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("store down")
	}
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Status = models.SessionEnded
		sess.DepartureTime = &departure
	}
	return nil
}

func (s *memSessionStore) ListActive(_ context.Context) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errors.New("store down")
	}
	var out []models.Session
	for _, sess := range s.sessions {
		if sess.Status == models.SessionActive {
			out = append(out, *sess)
		}
	}
	return out, nil
}

// fakeProfileStore records registrations and deletions.
type fakeProfileStore struct {
	mu           sync.Mutex
	registered   []models.Identity
	deleted      []string
	failRegister bool
}

func (s *fakeProfileStore) Register(_ context.Context, id *models.Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRegister {
		return "", errors.New("duplicate profile")
	}
	s.registered = append(s.registered, *id)
	return id.PersonID, nil
}

func (s *fakeProfileStore) Get(_ context.Context, personID string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.registered {
		if s.registered[i].PersonID == personID {
			cp := s.registered[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeProfileStore) ListProfiles(_ context.Context) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Identity, len(s.registered))
	copy(out, s.registered)
	return out, nil
}

func (s *fakeProfileStore) Delete(_ context.Context, personID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, personID)
	return nil
}

// fakeSnapshotStore records uploads.
type fakeSnapshotStore struct {
	mu      sync.Mutex
	keys    []string
	failing bool
}

func (s *fakeSnapshotStore) PutObject(_ context.Context, key string, _ []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("minio down")
	}
	s.keys = append(s.keys, key)
	return nil
}

// fakeNotifier records what the engine emits.
type fakeNotifier struct {
	mu         sync.Mutex
	detections []models.Event
	dispatched []models.Event
}

func (n *fakeNotifier) Detection(evt models.Event, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.detections = append(n.detections, evt)
}

func (n *fakeNotifier) Dispatch(evt models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatched = append(n.dispatched, evt)
}

func (n *fakeNotifier) dispatchedOfType(t models.EventType) []models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Event
	for _, evt := range n.dispatched {
		if evt.Event == t {
			out = append(out, evt)
		}
	}
	return out
}

// fakeRecorder records audit entries.
type fakeRecorder struct {
	mu      sync.Mutex
	entries []models.RecognitionLog
}

func (r *fakeRecorder) Record(_ context.Context, entry models.RecognitionLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// fakeExtractor returns a fixed set of faces per frame.
type fakeExtractor struct {
	faces []models.Face
	err   error
}

func (e *fakeExtractor) Extract(_ context.Context, _ []byte) ([]models.Face, error) {
	return e.faces, e.err
}

// fakeMatcher returns fixed matches or an error.
type fakeMatcher struct {
	matches []models.Match
	err     error
}

func (m *fakeMatcher) Match(_ context.Context, _ []float32) ([]models.Match, error) {
	return m.matches, m.err
}
