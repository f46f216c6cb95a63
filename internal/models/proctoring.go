package models

type ViolationKind string

const (
	ViolationNoFace           ViolationKind = "no_face"
	ViolationMultipleFaces    ViolationKind = "multiple_faces"
	ViolationSuspiciousObject ViolationKind = "suspicious_object"
)

// Violation is a single rule infraction found in one frame.
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	Label      string        `json:"label,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
}

// ViolationCounts is the per-kind breakdown of a violation tally.
type ViolationCounts map[ViolationKind]int

// Total sums all kinds.
func (c ViolationCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Clone returns an independent copy; nil stays nil.
func (c ViolationCounts) Clone() ViolationCounts {
	if c == nil {
		return nil
	}
	out := make(ViolationCounts, len(c))
	for k, n := range c {
		out[k] = n
	}
	return out
}
