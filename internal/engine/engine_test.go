package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/models"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		FrameSkip:           0,
		IdentifiedThreshold: 0.40,
		UncertainThreshold:  0.15,
		MergeThreshold:      0.6,
		SuppressThreshold:   0.6,
		SuppressWindow:      30 * time.Second,
		ConfirmWindow:       30 * time.Second,
		ConfirmThreshold:    5,
		BucketIdleTimeout:   5 * time.Minute,
		SessionGrace:        5 * time.Minute,
		SweepInterval:       time.Minute,
		TempVisitorTimeout:  5 * time.Minute,
	}
}

type testRig struct {
	engine   *Engine
	sessions *SessionManager
	visitors *VisitorManager
	profiles *fakeProfileStore
	notifier *fakeNotifier
	recorder *fakeRecorder
	clock    *time.Time
}

func newTestRig(cfg config.EngineConfig, matcher Matcher, extractor Extractor) *testRig {
	profiles := &fakeProfileStore{}
	sessions := NewSessionManager(newMemSessionStore())
	visitors := NewVisitorManager(profiles, sessions, &fakeSnapshotStore{})
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}

	eng := New(cfg, sessions, visitors, extractor, matcher, notifier, recorder)

	now := time.Now()
	eng.now = func() time.Time { return now }

	return &testRig{
		engine:   eng,
		sessions: sessions,
		visitors: visitors,
		profiles: profiles,
		notifier: notifier,
		recorder: recorder,
		clock:    &now,
	}
}

func (r *testRig) advance(d time.Duration) {
	*r.clock = r.clock.Add(d)
}

func employeeMatcher(conf float64) *fakeMatcher {
	return &fakeMatcher{matches: []models.Match{{
		PersonID:   "emp_1",
		Name:       "Ada",
		Role:       models.RoleEmployee,
		Department: "Engineering",
		Confidence: conf,
	}}}
}

func singleFaceExtractor(embedding []float32) *fakeExtractor {
	return &fakeExtractor{faces: []models.Face{{BBox: [4]float32{0, 0, 10, 10}, Embedding: embedding}}}
}

func TestIdentifiedStreamOpensOneSessionAndDispatchesOnce(t *testing.T) {
	rig := newTestRig(testEngineConfig(), employeeMatcher(0.8), singleFaceExtractor(vecA))

	for i := 0; i < 3; i++ {
		verdict, err := rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
		require.NoError(t, err)
		require.Len(t, verdict.Faces, 1)
		assert.Equal(t, models.BandIdentified, verdict.Faces[0].Band)
		assert.Equal(t, i == 0, verdict.Faces[0].NewSession)
		rig.advance(time.Second)
	}

	assert.Len(t, rig.sessions.ListActive(), 1)
	dispatched := rig.notifier.dispatchedOfType(models.EventEmployeeDetected)
	require.Len(t, dispatched, 1, "employee_detected webhook routed exactly once per new session")
	assert.Equal(t, "emp_1", dispatched[0].PersonID)
	assert.Len(t, rig.recorder.entries, 3, "every identified detection is audited")
}

func TestUncertainDetectionMutatesNothing(t *testing.T) {
	rig := newTestRig(testEngineConfig(), employeeMatcher(0.2), singleFaceExtractor(vecA))

	verdict, err := rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
	require.NoError(t, err)
	require.Len(t, verdict.Faces, 1)

	assert.Equal(t, models.BandUncertain, verdict.Faces[0].Band)
	assert.Equal(t, "emp_1", verdict.Faces[0].PersonID, "identity is reported for display")
	assert.Empty(t, rig.sessions.ListActive())
	assert.Empty(t, rig.notifier.dispatched)
	assert.Empty(t, rig.recorder.entries)
	assert.Equal(t, 0, rig.engine.strangers.BucketCount())
}

func TestStrangerConfirmationPromotesExactlyOnce(t *testing.T) {
	rig := newTestRig(testEngineConfig(), &fakeMatcher{}, singleFaceExtractor(vecA))

	for i := 0; i < 5; i++ {
		verdict, err := rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
		require.NoError(t, err)
		require.Len(t, verdict.Faces, 1)
		if i < 4 {
			assert.Empty(t, verdict.Faces[0].PersonID)
		} else {
			assert.True(t, verdict.Faces[0].NewSession)
			assert.Equal(t, models.RoleTemporary, verdict.Faces[0].Role)
		}
		rig.advance(4 * time.Second) // 5 detections inside the 30s window
	}

	assert.Len(t, rig.profiles.registered, 1, "one temp visitor registered")
	assert.Len(t, rig.sessions.ListActive(), 1)
	assert.Len(t, rig.notifier.dispatchedOfType(models.EventStrangerAutoRegistered), 1)
}

func TestRegistrationConflictLeavesStrangerUnresolved(t *testing.T) {
	rig := newTestRig(testEngineConfig(), &fakeMatcher{}, singleFaceExtractor(vecA))
	rig.profiles.failRegister = true

	for i := 0; i < 5; i++ {
		verdict, err := rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
		require.NoError(t, err)
		assert.Empty(t, verdict.Faces[0].PersonID)
		rig.advance(time.Second)
	}

	assert.Empty(t, rig.sessions.ListActive(), "failed registration opens no session")
	assert.Empty(t, rig.notifier.dispatched)
}

func TestMatcherFailureReportsNoMatchWithoutMutation(t *testing.T) {
	rig := newTestRig(testEngineConfig(), &fakeMatcher{err: errors.New("matcher down")}, singleFaceExtractor(vecA))

	verdict, err := rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
	require.NoError(t, err)
	require.Len(t, verdict.Faces, 1)

	assert.Equal(t, models.BandNoMatch, verdict.Faces[0].Band)
	assert.Equal(t, 0, rig.engine.strangers.BucketCount(), "matcher outage leaves stranger state untouched")
	assert.Empty(t, rig.sessions.ListActive())
}

func TestExtractorFailureFailsTheFrameOnly(t *testing.T) {
	rig := newTestRig(testEngineConfig(), employeeMatcher(0.8), &fakeExtractor{err: errors.New("bad image")})

	_, err := rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFrameSkipped)
	assert.Empty(t, rig.sessions.ListActive())
}

func TestFrameGateDropsSampledFrames(t *testing.T) {
	cfg := testEngineConfig()
	cfg.FrameSkip = 2
	rig := newTestRig(cfg, employeeMatcher(0.8), singleFaceExtractor(vecA))

	_, err := rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
		assert.ErrorIs(t, err, ErrFrameSkipped)
	}

	_, err = rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
	assert.NoError(t, err)
}

func TestIdentifiedTempVisitorKeepsItAlive(t *testing.T) {
	cfg := testEngineConfig()
	rig := newTestRig(cfg, &fakeMatcher{}, singleFaceExtractor(vecA))

	// Promote a stranger first.
	for i := 0; i < 5; i++ {
		rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
		rig.advance(time.Second)
	}
	require.Equal(t, 1, rig.visitors.Count())
	personID := rig.profiles.registered[0].PersonID

	// Now the matcher recognizes the temp visitor.
	rig.engine.matcher = &fakeMatcher{matches: []models.Match{{
		PersonID:   personID,
		Name:       rig.profiles.registered[0].Name,
		Role:       models.RoleTemporary,
		Confidence: 0.9,
	}}}

	rig.advance(4 * time.Minute)
	_, err := rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
	require.NoError(t, err)

	// The visitor was seen 4 minutes in; the sweep two minutes later
	// must keep it.
	rig.advance(2 * time.Minute)
	rig.engine.Sweep(context.Background())
	assert.Equal(t, 1, rig.visitors.Count())
	assert.Empty(t, rig.notifier.dispatchedOfType(models.EventTempVisitorDeparted))
}

func TestSweepDispatchesDepartureOnce(t *testing.T) {
	rig := newTestRig(testEngineConfig(), &fakeMatcher{}, singleFaceExtractor(vecA))

	for i := 0; i < 5; i++ {
		rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
		rig.advance(time.Second)
	}
	require.Equal(t, 1, rig.visitors.Count())

	rig.advance(6 * time.Minute)
	rig.engine.Sweep(context.Background())
	assert.Len(t, rig.notifier.dispatchedOfType(models.EventTempVisitorDeparted), 1)

	rig.engine.Sweep(context.Background())
	assert.Len(t, rig.notifier.dispatchedOfType(models.EventTempVisitorDeparted), 1, "departure fires once")
}

func TestDepartureEventNamesTheEndedSession(t *testing.T) {
	rig := newTestRig(testEngineConfig(), &fakeMatcher{}, singleFaceExtractor(vecA))

	for i := 0; i < 5; i++ {
		rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
		rig.advance(time.Second)
	}
	require.Equal(t, 1, rig.visitors.Count())
	active := rig.sessions.ListActive()
	require.Len(t, active, 1)

	// Session grace and visitor timeout share the same default, so the
	// visitor sweep must get to the session before the timeout sweep
	// does.
	rig.advance(6 * time.Minute)
	rig.engine.Sweep(context.Background())

	departed := rig.notifier.dispatchedOfType(models.EventTempVisitorDeparted)
	require.Len(t, departed, 1)
	assert.Equal(t, active[0].ID.String(), departed[0].SessionID, "departure names the ended session")
	assert.Equal(t, active[0].ArrivalTime, departed[0].ArrivalTime)
	assert.False(t, departed[0].LastSeenAt.IsZero())
	assert.Empty(t, rig.sessions.ListActive())
}

func TestTrackedVisitorSessionSurvivesShorterGrace(t *testing.T) {
	cfg := testEngineConfig()
	cfg.SessionGrace = time.Minute
	rig := newTestRig(cfg, &fakeMatcher{}, singleFaceExtractor(vecA))

	for i := 0; i < 5; i++ {
		rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
		rig.advance(time.Second)
	}
	require.Equal(t, 1, rig.visitors.Count())

	// Silent past the session grace but inside the visitor timeout: the
	// session belongs to the visitor lifecycle, not the timeout sweep.
	rig.advance(2 * time.Minute)
	rig.engine.Sweep(context.Background())

	assert.Len(t, rig.sessions.ListActive(), 1)
	assert.Equal(t, 1, rig.visitors.Count())
	assert.Empty(t, rig.notifier.dispatchedOfType(models.EventTempVisitorDeparted))
}

func TestStatsSnapshot(t *testing.T) {
	rig := newTestRig(testEngineConfig(), employeeMatcher(0.8), singleFaceExtractor(vecA))

	rig.engine.ProcessFrame(context.Background(), "cam-1", []byte("frame"))
	stats := rig.engine.Stats()

	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, 0, stats.TempVisitors)
}
