package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/models"
)

func newTestVisitorManager() (*VisitorManager, *fakeProfileStore, *SessionManager, *fakeSnapshotStore) {
	profiles := &fakeProfileStore{}
	sessions := NewSessionManager(newMemSessionStore())
	snapshots := &fakeSnapshotStore{}
	return NewVisitorManager(profiles, sessions, snapshots), profiles, sessions, snapshots
}

func TestPromoteRegistersVisitorAndOpensSession(t *testing.T) {
	v, profiles, sessions, snapshots := newTestVisitorManager()
	now := time.Now()

	stranger := &ConfirmedStranger{BucketID: "b1", Embedding: vecA, Detections: 5}
	identity, sess, err := v.Promote(context.Background(), stranger, []byte("jpeg"), now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(identity.PersonID, "temp_"))
	assert.Equal(t, models.RoleTemporary, identity.Role)
	assert.Equal(t, vecA, identity.Embedding)

	require.Len(t, profiles.registered, 1)
	assert.Equal(t, models.SessionActive, sess.Status)
	assert.Len(t, sessions.ListActive(), 1)
	assert.Len(t, snapshots.keys, 1)
	assert.Equal(t, 1, v.Count())
}

func TestPromoteRegistrationFailureOpensNothing(t *testing.T) {
	v, profiles, sessions, _ := newTestVisitorManager()
	profiles.failRegister = true

	_, _, err := v.Promote(context.Background(), &ConfirmedStranger{Embedding: vecA}, nil, time.Now())
	require.Error(t, err)
	assert.Empty(t, sessions.ListActive(), "no session without a registered identity")
	assert.Equal(t, 0, v.Count())
}

func TestPromoteSurvivesSnapshotFailure(t *testing.T) {
	v, _, _, snapshots := newTestVisitorManager()
	snapshots.failing = true

	_, sess, err := v.Promote(context.Background(), &ConfirmedStranger{Embedding: vecA}, []byte("jpeg"), time.Now())
	require.NoError(t, err, "snapshot upload is best-effort")
	assert.Equal(t, models.SessionActive, sess.Status)
}

func TestSweepRemovesSilentVisitorExactlyOnce(t *testing.T) {
	v, profiles, sessions, _ := newTestVisitorManager()
	timeout := 5 * time.Minute
	t0 := time.Now()

	identity, _, err := v.Promote(context.Background(), &ConfirmedStranger{Embedding: vecA}, nil, t0)
	require.NoError(t, err)

	// Still active inside the timeout.
	assert.Empty(t, v.Sweep(context.Background(), timeout, t0.Add(timeout)))

	events := v.Sweep(context.Background(), timeout, t0.Add(timeout+time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTempVisitorDeparted, events[0].Event)
	assert.Equal(t, identity.PersonID, events[0].PersonID)
	assert.Equal(t, []string{identity.PersonID}, profiles.deleted)
	assert.Empty(t, sessions.ListActive())

	// A second sweep must not process the visitor again.
	assert.Empty(t, v.Sweep(context.Background(), timeout, t0.Add(timeout+2*time.Second)))
	assert.Len(t, profiles.deleted, 1)
}

func TestSeenDefersRemoval(t *testing.T) {
	v, _, _, _ := newTestVisitorManager()
	timeout := 5 * time.Minute
	t0 := time.Now()

	identity, _, err := v.Promote(context.Background(), &ConfirmedStranger{Embedding: vecA}, nil, t0)
	require.NoError(t, err)

	v.Seen(identity.PersonID, t0.Add(4*time.Minute))

	assert.Empty(t, v.Sweep(context.Background(), timeout, t0.Add(6*time.Minute)))
	assert.Len(t, v.Sweep(context.Background(), timeout, t0.Add(10*time.Minute)), 1)
}

func TestBootstrapRestoresTempVisitors(t *testing.T) {
	v, profiles, sessions, _ := newTestVisitorManager()
	timeout := 5 * time.Minute
	t0 := time.Now()

	// Registry state as left behind by a previous run.
	profiles.registered = []models.Identity{
		{PersonID: "emp_1", Role: models.RoleEmployee},
		{PersonID: "temp_20260828_090000_ab12", Role: models.RoleTemporary},
	}
	sessions.Touch(context.Background(), "temp_20260828_090000_ab12", t0)

	require.NoError(t, v.Bootstrap(context.Background(), t0))
	assert.Equal(t, 1, v.Count(), "only temporary profiles are tracked")
	assert.True(t, v.Tracks("temp_20260828_090000_ab12"))
	assert.False(t, v.Tracks("emp_1"))

	// The restored visitor still times out and gets cleaned up.
	events := v.Sweep(context.Background(), timeout, t0.Add(timeout+time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTempVisitorDeparted, events[0].Event)
	assert.Equal(t, "temp_20260828_090000_ab12", events[0].PersonID)
	assert.NotEmpty(t, events[0].SessionID)
	assert.Equal(t, []string{"temp_20260828_090000_ab12"}, profiles.deleted)
	assert.Empty(t, sessions.ListActive())
}

func TestSeenIgnoresUntrackedIDs(t *testing.T) {
	v, _, _, _ := newTestVisitorManager()
	v.Seen("emp_1", time.Now())
	assert.Equal(t, 0, v.Count())
}
