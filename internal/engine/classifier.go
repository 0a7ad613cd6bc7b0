package engine

import "github.com/your-org/presence/internal/models"

// Classifier maps a raw match result to a confidence band. Pure
// function of its inputs; holds only the two thresholds.
type Classifier struct {
	identified float64 // >= identified is a trusted identity
	uncertain  float64 // [uncertain, identified) needs more evidence
}

func NewClassifier(identifiedThreshold, uncertainThreshold float64) *Classifier {
	return &Classifier{
		identified: identifiedThreshold,
		uncertain:  uncertainThreshold,
	}
}

// Classify returns the band for the best match, or BandNoMatch when the
// matcher produced no candidate at all. NoMatch and StrangerCandidate
// are treated identically downstream: absence of a trustworthy identity.
func (c *Classifier) Classify(best *models.Match) models.Band {
	switch {
	case best == nil:
		return models.BandNoMatch
	case best.Confidence >= c.identified:
		return models.BandIdentified
	case best.Confidence >= c.uncertain:
		return models.BandUncertain
	default:
		return models.BandStrangerCandidate
	}
}
