package engine

import (
	"fmt"
	"hash/fnv"
	"math"
)

// CosineSimilarity computes cosine similarity between two normalized vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return math.Min(1.0, math.Max(-1.0, dot))
}

// embeddingKey derives a stable bucket key from an embedding by rounding
// each component to two decimals and hashing the result. Near-identical
// embeddings that round differently are still merged by similarity before
// this key is ever used for a new bucket.
func embeddingKey(embedding []float32) string {
	h := fnv.New64a()
	buf := make([]byte, 0, 8)
	for _, v := range embedding {
		r := int16(math.Round(float64(v) * 100))
		buf = append(buf[:0], byte(r), byte(r>>8))
		_, _ = h.Write(buf)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
