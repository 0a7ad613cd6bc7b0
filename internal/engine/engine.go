package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// FrameVerdict is the engine's response to one processed frame.
type FrameVerdict struct {
	Faces []models.FaceResult `json:"faces"`
}

// Engine is the per-frame recognition pipeline: gate, extract, match,
// classify, then route each face into the session, stranger or visitor
// path. One Engine serves all connections; per-person ordering is
// guaranteed by the SessionManager's key locks.
type Engine struct {
	cfg config.EngineConfig

	gate       *Gate
	classifier *Classifier
	sessions   *SessionManager
	strangers  *StrangerTracker
	visitors   *VisitorManager

	extractor Extractor
	matcher   Matcher
	notifier  Notifier
	recorder  Recorder

	now func() time.Time
}

func New(
	cfg config.EngineConfig,
	sessions *SessionManager,
	visitors *VisitorManager,
	extractor Extractor,
	matcher Matcher,
	notifier Notifier,
	recorder Recorder,
) *Engine {
	return &Engine{
		cfg:        cfg,
		gate:       NewGate(cfg.FrameSkip),
		classifier: NewClassifier(cfg.IdentifiedThreshold, cfg.UncertainThreshold),
		sessions:   sessions,
		strangers: NewStrangerTracker(StrangerConfig{
			MergeThreshold:    cfg.MergeThreshold,
			SuppressThreshold: cfg.SuppressThreshold,
			SuppressWindow:    cfg.SuppressWindow,
			ConfirmWindow:     cfg.ConfirmWindow,
			ConfirmThreshold:  cfg.ConfirmThreshold,
			BucketIdleTimeout: cfg.BucketIdleTimeout,
		}),
		visitors:  visitors,
		extractor: extractor,
		matcher:   matcher,
		notifier:  notifier,
		recorder:  recorder,
		now:       time.Now,
	}
}

// ProcessFrame runs the pipeline for one frame from one connection.
// Returns ErrFrameSkipped when the gate dropped the frame; any other
// error means the frame could not be analyzed and nothing was mutated.
func (e *Engine) ProcessFrame(ctx context.Context, connID string, image []byte) (*FrameVerdict, error) {
	if !e.gate.Accept(connID) {
		observability.FramesDropped.Inc()
		return nil, ErrFrameSkipped
	}
	observability.FramesAccepted.Inc()

	start := e.now()
	faces, err := e.extractor.Extract(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("extract faces: %w", err)
	}
	observability.ProcessingDuration.WithLabelValues("extract").Observe(e.now().Sub(start).Seconds())

	verdict := &FrameVerdict{Faces: make([]models.FaceResult, 0, len(faces))}
	for i := range faces {
		verdict.Faces = append(verdict.Faces, e.processFace(ctx, connID, faces[i], image))
	}
	return verdict, nil
}

// processFace classifies a single face and applies the band's side
// effects. Matcher failure degrades to no_match without touching any
// session or stranger state.
func (e *Engine) processFace(ctx context.Context, connID string, face models.Face, image []byte) models.FaceResult {
	now := e.now()
	result := models.FaceResult{BBox: face.BBox}

	matches, err := e.matcher.Match(ctx, face.Embedding)
	if err != nil {
		// Matcher outage: report no_match for this cycle only, mutate
		// nothing.
		slog.Warn("match embedding", "conn_id", connID, "error", err)
		result.Band = models.BandNoMatch
		observability.FacesClassified.WithLabelValues(string(models.BandNoMatch)).Inc()
		return result
	}

	var best *models.Match
	if len(matches) > 0 {
		best = &matches[0]
	}

	band := e.classifier.Classify(best)
	result.Band = band
	observability.FacesClassified.WithLabelValues(string(band)).Inc()

	switch band {
	case models.BandIdentified:
		e.handleIdentified(ctx, connID, face, *best, &result, now)
	case models.BandUncertain:
		// Reported but not acted on: no session, no stranger evidence.
		result.PersonID = best.PersonID
		result.Name = best.Name
		result.Role = best.Role
		result.Department = best.Department
		result.Confidence = best.Confidence
	default:
		e.handleStranger(ctx, connID, face, image, &result, now)
	}

	return result
}

func (e *Engine) handleIdentified(ctx context.Context, connID string, face models.Face, best models.Match, result *models.FaceResult, now time.Time) {
	result.PersonID = best.PersonID
	result.Name = best.Name
	result.Role = best.Role
	result.Department = best.Department
	result.Confidence = best.Confidence

	sess, isNew := e.sessions.Touch(ctx, best.PersonID, now)
	result.NewSession = isNew

	e.strangers.NoteIdentified(face.Embedding, now)
	if best.Role == models.RoleTemporary {
		e.visitors.Seen(best.PersonID, now)
	}

	e.recorder.Record(ctx, models.RecognitionLog{
		PersonID:       best.PersonID,
		RecognizedName: best.Name,
		Confidence:     best.Confidence,
		ImageSource:    connID,
		CreatedAt:      now,
	})

	evt := models.Event{
		Event:       models.EventEmployeeDetected,
		SessionID:   sess.ID.String(),
		PersonID:    best.PersonID,
		Name:        best.Name,
		Role:        best.Role,
		Department:  best.Department,
		Confidence:  best.Confidence,
		Status:      sess.Status,
		ArrivalTime: sess.ArrivalTime,
		LastSeenAt:  sess.LastSeenAt,
		Timestamp:   now,
	}
	if best.Role == models.RoleTemporary {
		evt.Event = models.EventTempVisitorDetected
	}

	e.notifier.Detection(evt, now)
	if isNew {
		e.notifier.Dispatch(evt)
	}
}

func (e *Engine) handleStranger(ctx context.Context, connID string, face models.Face, image []byte, result *models.FaceResult, now time.Time) {
	outcome, confirmed := e.strangers.Observe(face.Embedding, now)
	if outcome != StrangerConfirmed {
		return
	}

	identity, sess, err := e.visitors.Promote(ctx, confirmed, image, now)
	if err != nil {
		// The detection stays an unresolved stranger; the next
		// confirmation will retry with a fresh bucket.
		slog.Error("promote confirmed stranger", "bucket", confirmed.BucketID, "error", err)
		return
	}

	result.PersonID = identity.PersonID
	result.Name = identity.Name
	result.Role = models.RoleTemporary
	result.NewSession = true

	e.recorder.Record(ctx, models.RecognitionLog{
		PersonID:       identity.PersonID,
		RecognizedName: identity.Name,
		Confidence:     0,
		ImageSource:    connID,
		CreatedAt:      now,
	})

	evt := models.Event{
		Event:       models.EventStrangerAutoRegistered,
		SessionID:   sess.ID.String(),
		PersonID:    identity.PersonID,
		Name:        identity.Name,
		Role:        models.RoleTemporary,
		Status:      sess.Status,
		ArrivalTime: sess.ArrivalTime,
		LastSeenAt:  sess.LastSeenAt,
		Timestamp:   now,
	}
	e.notifier.Detection(evt, now)
	e.notifier.Dispatch(evt)
}

// Run drives the periodic sweeps until ctx is cancelled: session
// timeouts, idle stranger buckets and silent temp visitors.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	slog.Info("engine sweeps started", "interval", e.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("engine sweeps stopped")
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep runs one pass of every periodic cleanup. Exposed for tests and
// for the admin endpoint that forces a sweep.
func (e *Engine) Sweep(ctx context.Context) {
	now := e.now()

	// Visitors go first: their sweep ends the session itself so the
	// departure event carries session_id and arrival_time. The timeout
	// sweep exempts anyone still tracked as a visitor.
	for _, evt := range e.visitors.Sweep(ctx, e.cfg.TempVisitorTimeout, now) {
		e.notifier.Dispatch(evt)
	}

	e.sessions.SweepTimeouts(ctx, e.cfg.SessionGrace, now, e.visitors.Tracks)

	if dropped := e.strangers.PruneIdle(now); dropped > 0 {
		slog.Debug("idle stranger buckets dropped", "count", dropped)
	}
}

// ActiveSession reports whether a person is currently in, and their
// session if so.
func (e *Engine) ActiveSession(personID string) (models.Session, bool) {
	return e.sessions.Active(personID)
}

// ReleaseConnection drops all per-connection state after a disconnect.
func (e *Engine) ReleaseConnection(connID string) {
	e.gate.Release(connID)
}

// ResetAttendance drops all in-memory session state.
func (e *Engine) ResetAttendance() {
	e.sessions.Reset()
}

// Stats is a point-in-time snapshot for the get_stats operation.
type Stats struct {
	ActiveSessions  int `json:"active_sessions"`
	TempVisitors    int `json:"temp_visitors"`
	StrangerBuckets int `json:"stranger_buckets"`
	Connections     int `json:"connections"`
}

func (e *Engine) Stats() Stats {
	return Stats{
		ActiveSessions:  len(e.sessions.ListActive()),
		TempVisitors:    e.visitors.Count(),
		StrangerBuckets: e.strangers.BucketCount(),
		Connections:     e.gate.ConnectionCount(),
	}
}
