package engine

import (
	"sync"
	"time"
)

// StrangerOutcome is the verdict for one low-confidence observation.
type StrangerOutcome int

const (
	// StrangerSuppressed means a known identity was recognized nearby in
	// time with a similar embedding; the observation is treated as a
	// misclassification, not a stranger.
	StrangerSuppressed StrangerOutcome = iota
	// StrangerPending means the observation was tracked but the bucket
	// has not reached its confirmation quorum yet.
	StrangerPending
	// StrangerConfirmed means the bucket reached quorum inside the
	// window; the caller promotes it and the bucket is gone.
	StrangerConfirmed
)

// ConfirmedStranger is a promoted bucket handed to the caller.
type ConfirmedStranger struct {
	BucketID   string
	Embedding  []float32
	Detections int
}

// StrangerConfig tunes the clustering engine. Zero values are invalid;
// callers populate it from config defaults.
type StrangerConfig struct {
	MergeThreshold    float64
	SuppressThreshold float64
	SuppressWindow    time.Duration
	ConfirmWindow     time.Duration
	ConfirmThreshold  int
	BucketIdleTimeout time.Duration
}

type strangerBucket struct {
	id         string
	embedding  []float32 // representative: first observation
	timestamps []time.Time
	lastSeen   time.Time
}

type recentSuccess struct {
	embedding []float32
	at        time.Time
}

// StrangerTracker groups unmatched embeddings into candidate buckets and
// confirms a bucket once enough detections land inside a sliding window.
// It also remembers recent successful recognitions so an employee
// glimpsed from a bad angle is not tracked as a stranger.
type StrangerTracker struct {
	cfg StrangerConfig

	mu      sync.Mutex
	buckets map[string]*strangerBucket
	recent  []recentSuccess
}

func NewStrangerTracker(cfg StrangerConfig) *StrangerTracker {
	return &StrangerTracker{
		cfg:     cfg,
		buckets: make(map[string]*strangerBucket),
	}
}

// Observe processes one low-confidence detection. When it returns
// StrangerConfirmed the bucket has already been discarded; the caller
// owns promotion.
func (t *StrangerTracker) Observe(embedding []float32, now time.Time) (StrangerOutcome, *ConfirmedStranger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneRecentLocked(now)
	for _, rs := range t.recent {
		if CosineSimilarity(embedding, rs.embedding) > t.cfg.SuppressThreshold {
			return StrangerSuppressed, nil
		}
	}

	bucket := t.bestBucketLocked(embedding)
	if bucket == nil {
		bucket = &strangerBucket{
			id:        embeddingKey(embedding),
			embedding: embedding,
		}
		t.buckets[bucket.id] = bucket
	}

	bucket.timestamps = append(bucket.timestamps, now)
	bucket.lastSeen = now

	// Drop detections that fell out of the confirmation window before
	// counting.
	cutoff := now.Add(-t.cfg.ConfirmWindow)
	kept := bucket.timestamps[:0]
	for _, ts := range bucket.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	bucket.timestamps = kept

	if len(bucket.timestamps) >= t.cfg.ConfirmThreshold {
		delete(t.buckets, bucket.id)
		return StrangerConfirmed, &ConfirmedStranger{
			BucketID:   bucket.id,
			Embedding:  bucket.embedding,
			Detections: len(bucket.timestamps),
		}
	}

	return StrangerPending, nil
}

// bestBucketLocked returns the most similar bucket above the merge
// threshold, or nil. Ties go to the first candidate seen; the merge
// threshold already guarantees near-identical embeddings.
func (t *StrangerTracker) bestBucketLocked(embedding []float32) *strangerBucket {
	var best *strangerBucket
	bestSim := t.cfg.MergeThreshold
	for _, b := range t.buckets {
		if sim := CosineSimilarity(embedding, b.embedding); sim > bestSim {
			bestSim = sim
			best = b
		}
	}
	return best
}

// NoteIdentified records a successful recognition. Future low-confidence
// observations strictly above the guard threshold are suppressed for
// the suppression window, and any lingering candidate bucket above it
// is purged.
func (t *StrangerTracker) NoteIdentified(embedding []float32, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneRecentLocked(now)
	t.recent = append(t.recent, recentSuccess{embedding: embedding, at: now})

	for id, b := range t.buckets {
		if CosineSimilarity(embedding, b.embedding) > t.cfg.SuppressThreshold {
			delete(t.buckets, id)
		}
	}
}

func (t *StrangerTracker) pruneRecentLocked(now time.Time) {
	cutoff := now.Add(-t.cfg.SuppressWindow)
	kept := t.recent[:0]
	for _, rs := range t.recent {
		if rs.at.After(cutoff) {
			kept = append(kept, rs)
		}
	}
	t.recent = kept
}

// PruneIdle drops buckets that aged out without ever confirming.
func (t *StrangerTracker) PruneIdle(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var dropped int
	cutoff := now.Add(-t.cfg.BucketIdleTimeout)
	for id, b := range t.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(t.buckets, id)
			dropped++
		}
	}
	return dropped
}

// BucketCount returns the number of live candidate buckets.
func (t *StrangerTracker) BucketCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}
