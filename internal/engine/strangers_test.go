package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStrangerConfig() StrangerConfig {
	return StrangerConfig{
		MergeThreshold:    0.6,
		SuppressThreshold: 0.6,
		SuppressWindow:    30 * time.Second,
		ConfirmWindow:     30 * time.Second,
		ConfirmThreshold:  5,
		BucketIdleTimeout: 5 * time.Minute,
	}
}

// Unit vectors for similarity control: vecA and vecB are orthogonal,
// vecNearA has cosine 0.8 to vecA and 0.48 to vecC.
var (
	vecA     = []float32{1, 0, 0, 0}
	vecB     = []float32{0, 1, 0, 0}
	vecNearA = []float32{0.8, 0.6, 0, 0}
	vecC     = []float32{0, 0.8, 0.6, 0}
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity(vecA, vecA), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity(vecA, vecB), 1e-6)
	assert.InDelta(t, 0.8, CosineSimilarity(vecA, vecNearA), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity(vecA, []float32{1, 0}), "length mismatch")
}

func TestConfirmAtExactlyThresholdDetections(t *testing.T) {
	tr := NewStrangerTracker(testStrangerConfig())
	t0 := time.Now()

	for i := 0; i < 4; i++ {
		outcome, confirmed := tr.Observe(vecA, t0.Add(time.Duration(i)*time.Second))
		assert.Equal(t, StrangerPending, outcome)
		assert.Nil(t, confirmed)
	}

	outcome, confirmed := tr.Observe(vecA, t0.Add(4*time.Second))
	require.Equal(t, StrangerConfirmed, outcome)
	require.NotNil(t, confirmed)
	assert.Equal(t, 5, confirmed.Detections)
	assert.Equal(t, vecA, confirmed.Embedding)
	assert.Equal(t, 0, tr.BucketCount(), "confirmed bucket is discarded")
}

func TestOneBelowThresholdNeverConfirms(t *testing.T) {
	tr := NewStrangerTracker(testStrangerConfig())
	t0 := time.Now()

	for i := 0; i < 4; i++ {
		outcome, _ := tr.Observe(vecA, t0.Add(time.Duration(i)*time.Second))
		assert.Equal(t, StrangerPending, outcome)
	}
	assert.Equal(t, 1, tr.BucketCount())
}

func TestDetectionsOutsideWindowDoNotCount(t *testing.T) {
	tr := NewStrangerTracker(testStrangerConfig())
	t0 := time.Now()

	for i := 0; i < 4; i++ {
		tr.Observe(vecA, t0.Add(time.Duration(i)*time.Second))
	}

	// The fifth detection lands after the first four left the window.
	outcome, _ := tr.Observe(vecA, t0.Add(40*time.Second))
	assert.Equal(t, StrangerPending, outcome)
}

func TestSimilarObservationsMergeIntoOneBucket(t *testing.T) {
	tr := NewStrangerTracker(testStrangerConfig())
	t0 := time.Now()

	tr.Observe(vecA, t0)
	tr.Observe(vecNearA, t0.Add(time.Second)) // 0.8 >= merge threshold
	assert.Equal(t, 1, tr.BucketCount())

	tr.Observe(vecB, t0.Add(2*time.Second)) // orthogonal, new bucket
	assert.Equal(t, 2, tr.BucketCount())
}

func TestRecentIdentificationSuppressesSimilarStrangers(t *testing.T) {
	tr := NewStrangerTracker(testStrangerConfig())
	t0 := time.Now()

	tr.NoteIdentified(vecA, t0)

	outcome, _ := tr.Observe(vecNearA, t0.Add(time.Second))
	assert.Equal(t, StrangerSuppressed, outcome)
	assert.Equal(t, 0, tr.BucketCount(), "suppressed observation is not tracked")

	// Orthogonal embedding is unaffected.
	outcome, _ = tr.Observe(vecB, t0.Add(time.Second))
	assert.Equal(t, StrangerPending, outcome)

	// After the suppression window the guard expires.
	outcome, _ = tr.Observe(vecNearA, t0.Add(31*time.Second))
	assert.Equal(t, StrangerPending, outcome)
}

func TestIdentificationPurgesSimilarBuckets(t *testing.T) {
	tr := NewStrangerTracker(testStrangerConfig())
	t0 := time.Now()

	tr.Observe(vecA, t0)
	tr.Observe(vecC, t0)
	require.Equal(t, 2, tr.BucketCount())

	// vecNearA sits at 0.8 to the vecA bucket and 0.48 to the vecC
	// bucket; only the former is above the guard.
	tr.NoteIdentified(vecNearA, t0.Add(time.Second))
	assert.Equal(t, 1, tr.BucketCount(), "bucket similar to the identified embedding is purged")
}

func TestPruneIdleDropsAgedBuckets(t *testing.T) {
	tr := NewStrangerTracker(testStrangerConfig())
	t0 := time.Now()

	tr.Observe(vecA, t0)
	tr.Observe(vecB, t0.Add(4*time.Minute))

	dropped := tr.PruneIdle(t0.Add(6 * time.Minute))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, tr.BucketCount())
}
