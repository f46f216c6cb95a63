package proctoring

import (
	"strings"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
)

const (
	LabelPerson    = "person"
	LabelCellPhone = "cell phone"
	LabelBook      = "book"

	DefaultFlagThreshold = 5
)

// Policy turns one frame's detections into violations.
type Policy struct {
	SubjectLabel  string
	Prohibited    map[string]struct{}
	MinConfidence float64
	FlagThreshold int
}

func DefaultPolicy() Policy {
	return NewPolicy(nil, 0, DefaultFlagThreshold)
}

// NewPolicy builds a policy; an empty prohibited list falls back to cell phone and book.
func NewPolicy(prohibited []string, minConfidence float64, flagThreshold int) Policy {
	if len(prohibited) == 0 {
		prohibited = []string{LabelCellPhone, LabelBook}
	}
	if flagThreshold <= 0 {
		flagThreshold = DefaultFlagThreshold
	}

	set := make(map[string]struct{}, len(prohibited))
	for _, label := range prohibited {
		label = strings.ToLower(strings.TrimSpace(label))
		if label != "" {
			set[label] = struct{}{}
		}
	}

	return Policy{
		SubjectLabel:  LabelPerson,
		Prohibited:    set,
		MinConfidence: minConfidence,
		FlagThreshold: flagThreshold,
	}
}

// Evaluate applies the per-frame rules: no subject is one violation, more than
// one subject is one violation, and every prohibited object is one violation.
// Nothing is deduplicated.
func (p Policy) Evaluate(detections []Detection) []models.Violation {
	var violations []models.Violation
	subjects := 0

	for _, det := range detections {
		if det.Confidence < p.MinConfidence {
			continue
		}

		label := strings.ToLower(det.Label)
		if label == p.SubjectLabel {
			subjects++
			continue
		}
		if _, prohibited := p.Prohibited[label]; prohibited {
			violations = append(violations, models.Violation{
				Kind:       models.ViolationSuspiciousObject,
				Label:      det.Label,
				Confidence: det.Confidence,
			})
		}
	}

	switch {
	case subjects == 0:
		violations = append([]models.Violation{{Kind: models.ViolationNoFace}}, violations...)
	case subjects > 1:
		violations = append([]models.Violation{{Kind: models.ViolationMultipleFaces}}, violations...)
	}

	return violations
}

// Tally is the cumulative violation counter of one attempt with its one-shot flag.
type Tally struct {
	count     int
	byKind    models.ViolationCounts
	warned    bool
	threshold int
}

func NewTally(threshold int) *Tally {
	if threshold <= 0 {
		threshold = DefaultFlagThreshold
	}
	return &Tally{threshold: threshold, byKind: make(models.ViolationCounts)}
}

// Add counts one frame's violations and reports whether the flag fired on
// this call.
func (t *Tally) Add(violations []models.Violation) bool {
	if len(violations) == 0 {
		return false
	}
	for _, v := range violations {
		t.byKind[v.Kind]++
	}
	t.count += len(violations)
	if !t.warned && t.count >= t.threshold {
		t.warned = true
		return true
	}
	return false
}

func (t *Tally) Count() int   { return t.count }
func (t *Tally) Warned() bool { return t.warned }

// ByKind returns a copy of the per-kind counts.
func (t *Tally) ByKind() models.ViolationCounts { return t.byKind.Clone() }
