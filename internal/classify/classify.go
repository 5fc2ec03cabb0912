/*
Package classify labels announcements by how closely their titles match the
canonical ownership-report title and its known alternates.
*/
package classify

import (
	"github.com/shanehull/idxscraper/internal/platform/config"
	"github.com/shanehull/idxscraper/internal/types"
)

// DefaultThreshold is the minimum score, on a 0-100 scale, for a label to be assigned
const DefaultThreshold = 80

// Classifier scores titles against one primary label and a set of alternates
type Classifier struct {
	Primary    string
	Alternates []string
	Threshold  int
}

// New builds a classifier from config; a zero threshold means DefaultThreshold
func New(cfg config.Classifier) *Classifier {
	t := cfg.Threshold
	if t <= 0 {
		t = DefaultThreshold
	}
	return &Classifier{Primary: cfg.Primary, Alternates: cfg.Alternates, Threshold: t}
}

// Classify scores a.Title and applies Decide
func (c *Classifier) Classify(a types.Announcement) types.Classified {
	simPrimary := TokenSetRatio(a.Title, c.Primary)
	simSecondary := 0
	for _, alt := range c.Alternates {
		if s := TokenSetRatio(a.Title, alt); s > simSecondary {
			simSecondary = s
		}
	}

	label, confidence := Decide(simPrimary, simSecondary, c.Threshold)
	return types.Classified{
		Announcement: a,
		Label:        label,
		Confidence:   confidence,
		SimPrimary:   simPrimary,
		SimSecondary: simSecondary,
	}
}

// Decide applies the labeling rule in order. Primary wins ties, including a
// tie exactly at the threshold. Below threshold the label is UNKNOWN and the
// confidence is the higher of the two scores.
func Decide(simPrimary, simSecondary, threshold int) (types.Label, int) {
	switch {
	case simPrimary >= simSecondary && simPrimary >= threshold:
		return types.LabelIDX, simPrimary
	case simSecondary > simPrimary && simSecondary >= threshold:
		return types.LabelNonIDX, simSecondary
	default:
		return types.LabelUnknown, max(simPrimary, simSecondary)
	}
}

// Split classifies items and groups them by label, preserving order
func (c *Classifier) Split(items []types.Announcement) (idx, nonIDX, unknown []types.Classified) {
	for _, a := range items {
		cl := c.Classify(a)
		switch cl.Label {
		case types.LabelIDX:
			idx = append(idx, cl)
		case types.LabelNonIDX:
			nonIDX = append(nonIDX, cl)
		default:
			unknown = append(unknown, cl)
		}
	}
	return idx, nonIDX, unknown
}
