package models

import "time"

// Band is the confidence classification of a single face observation.
type Band string

const (
	BandIdentified        Band = "identified"
	BandUncertain         Band = "uncertain"
	BandStrangerCandidate Band = "stranger_candidate"
	BandNoMatch           Band = "no_match"
)

// Face is one face observed in a frame: a bounding box plus the
// embedding the extractor computed for it.
type Face struct {
	BBox      [4]float32 `json:"bbox"` // x1, y1, x2, y2
	Embedding []float32  `json:"-"`
}

// FaceResult is the engine's verdict for one observed face.
type FaceResult struct {
	BBox       [4]float32 `json:"bbox"`
	Band       Band       `json:"band"`
	PersonID   string     `json:"person_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Role       Role       `json:"role,omitempty"`
	Department string     `json:"department,omitempty"`
	Confidence float64    `json:"confidence"`
	// NewSession is set when this detection opened an attendance session.
	NewSession bool `json:"new_session,omitempty"`
}

// RecognitionLog is one row of the append-only recognition audit trail.
type RecognitionLog struct {
	PersonID       string    `json:"person_id" db:"person_id"`
	RecognizedName string    `json:"recognized_name" db:"recognized_name"`
	Confidence     float64   `json:"confidence" db:"confidence"`
	ImageSource    string    `json:"image_source" db:"image_source"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
