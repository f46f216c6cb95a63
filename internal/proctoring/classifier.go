package proctoring

import (
	"context"
	"sync"
)

// Box is a detection bounding box in pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection is one object found in a frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Classifier finds objects in a frame.
type Classifier interface {
	Classify(ctx context.Context, frame Frame) ([]Detection, error)
}

// ScriptedResult is one step of a ScriptedClassifier.
type ScriptedResult struct {
	Detections []Detection
	Err        error
}

// ScriptedClassifier is a deterministic classifier. Each call consumes the
// next result; once the script is exhausted the last result repeats. An empty
// script always reports a single person.
type ScriptedClassifier struct {
	mu      sync.Mutex
	results []ScriptedResult
	pos     int
	calls   int
}

func NewScriptedClassifier(results ...ScriptedResult) *ScriptedClassifier {
	return &ScriptedClassifier{results: results}
}

// Frames is a shorthand for a script of detection lists without errors.
func Frames(frames ...[]Detection) *ScriptedClassifier {
	results := make([]ScriptedResult, len(frames))
	for i, dets := range frames {
		results[i] = ScriptedResult{Detections: dets}
	}
	return NewScriptedClassifier(results...)
}

// Person builds a "person" detection.
func Person() Detection {
	return Detection{Label: LabelPerson, Confidence: 0.9}
}

// Object builds a detection with the given label.
func Object(label string) Detection {
	return Detection{Label: label, Confidence: 0.8}
}

func (c *ScriptedClassifier) Classify(ctx context.Context, _ Frame) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if len(c.results) == 0 {
		return []Detection{Person()}, nil
	}

	idx := c.pos
	if idx >= len(c.results) {
		idx = len(c.results) - 1
	} else {
		c.pos++
	}

	res := c.results[idx]
	if res.Err != nil {
		return nil, res.Err
	}
	return append([]Detection(nil), res.Detections...), nil
}

// Calls returns how many frames were classified.
func (c *ScriptedClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
