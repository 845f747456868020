package facematch

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-finder/internal/constants"
)

// Decision is the classifier's verdict for a single similarity score.
type Decision struct {
	Accepted bool
	Band     MatchType
}

// Classifier maps raw similarity scores to match decisions using two fixed thresholds.
type Classifier struct {
	accept float64
	strong float64
}

// NewClassifier creates a classifier. Scores at or above accept are matches; matches at or
// above strong are labeled strong, the rest weak.
func NewClassifier(accept, strong float64) (*Classifier, error) {
	if !inUnitRange(accept) || !inUnitRange(strong) {
		return nil, fmt.Errorf("thresholds must be within [0,1] (accept=%v, strong=%v)", accept, strong)
	}
	if strong < accept {
		return nil, fmt.Errorf("strong threshold %v is below acceptance threshold %v", strong, accept)
	}
	return &Classifier{accept: accept, strong: strong}, nil
}

// DefaultClassifier returns a classifier using the default thresholds.
func DefaultClassifier() *Classifier {
	return &Classifier{accept: constants.DefaultAcceptThreshold, strong: constants.DefaultStrongThreshold}
}

// AcceptThreshold returns the minimum score of an accepted match.
func (c *Classifier) AcceptThreshold() float64 { return c.accept }

// StrongThreshold returns the minimum score of a strong match.
func (c *Classifier) StrongThreshold() float64 { return c.strong }

// Classify returns the decision for score. It panics when score is outside [0,1]:
// callers validate scores from the comparison primitive first.
func (c *Classifier) Classify(score float64) Decision {
	if !inUnitRange(score) {
		panic(fmt.Sprintf("facematch: score %v outside [0,1]", score))
	}
	if score < c.accept {
		return Decision{Accepted: false, Band: MatchWeak}
	}
	if score >= c.strong {
		return Decision{Accepted: true, Band: MatchStrong}
	}
	return Decision{Accepted: true, Band: MatchWeak}
}

// ValidScore reports whether score can be classified.
func ValidScore(score float64) bool {
	return inUnitRange(score)
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
