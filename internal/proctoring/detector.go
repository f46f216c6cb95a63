package proctoring

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
)

// TickReport describes one detector pass.
type TickReport struct {
	Violations []models.Violation
	Tally      int
	ByKind     models.ViolationCounts
	// Flagged is true only on the tick that first reached the threshold.
	Flagged bool
	// Err is set when the frame could not be read or classified; the tick then
	// contributed nothing to the tally.
	Err error
}

// Detector watches one attempt's camera. It owns the camera until Release.
type Detector struct {
	camera     Camera
	classifier Classifier
	policy     Policy
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	tally    *Tally
	released bool
}

func NewDetector(camera Camera, classifier Classifier, policy Policy, logger *slog.Logger) *Detector {
	return &Detector{
		camera:     camera,
		classifier: classifier,
		policy:     policy,
		logger:     logger,
		metrics:    metrics.NewMetrics(),
		tally:      NewTally(policy.FlagThreshold),
	}
}

// Tick reads one frame, classifies it and applies the policy. Ticks are
// serialized so the tally follows frame order.
func (d *Detector) Tick(ctx context.Context) TickReport {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return TickReport{Tally: d.tally.Count(), Err: &DetectionError{Stage: "read", Err: ErrCameraReleased}}
	}

	frame, err := d.camera.Read(ctx)
	if err != nil {
		return d.zeroSignal("read", err)
	}

	start := time.Now()
	detections, err := d.classifier.Classify(ctx, frame)
	d.metrics.ClassifyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return d.zeroSignal("classify", err)
	}

	violations := d.policy.Evaluate(detections)
	fired := d.tally.Add(violations)

	for _, v := range violations {
		d.metrics.ViolationsTotal.WithLabelValues(string(v.Kind)).Inc()
	}
	if fired {
		d.metrics.SessionsFlagged.Inc()
		d.logger.Warn("Violation threshold reached",
			"tally", d.tally.Count(),
			"threshold", d.policy.FlagThreshold)
	}

	return TickReport{
		Violations: violations,
		Tally:      d.tally.Count(),
		ByKind:     d.tally.ByKind(),
		Flagged:    fired,
	}
}

func (d *Detector) zeroSignal(stage string, err error) TickReport {
	if !errors.Is(err, ErrNoFrame) {
		d.metrics.DetectionErrorsTotal.WithLabelValues(stage).Inc()
		d.logger.Debug("Detection failed, counting as zero signal", "stage", stage, "error", err)
	}
	return TickReport{
		Tally: d.tally.Count(),
		Err:   &DetectionError{Stage: stage, Err: err},
	}
}

// Tally returns the current count and whether the flag has fired.
func (d *Detector) Tally() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tally.Count(), d.tally.Warned()
}

// ViolationCounts returns the tally split by violation kind.
func (d *Detector) ViolationCounts() models.ViolationCounts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tally.ByKind()
}

// Release gives the camera back. Calling it again is a no-op.
func (d *Detector) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil
	}
	d.released = true
	return d.camera.Release()
}

// Monitor opens detectors for new sessions.
type Monitor struct {
	cameras    CameraProvider
	classifier Classifier
	policy     Policy
	logger     *slog.Logger
}

func NewMonitor(cameras CameraProvider, classifier Classifier, policy Policy, logger *slog.Logger) *Monitor {
	return &Monitor{
		cameras:    cameras,
		classifier: classifier,
		policy:     policy,
		logger:     logger,
	}
}

// Open acquires the camera for handle. Failures are ResourceErrors.
func (m *Monitor) Open(ctx context.Context, handle string) (*Detector, error) {
	camera, err := m.cameras.Acquire(ctx, handle)
	if err != nil {
		if IsResourceError(err) {
			return nil, err
		}
		return nil, &ResourceError{Resource: "camera", Err: err}
	}
	return NewDetector(camera, m.classifier, m.policy, m.logger.With("session_id", handle)), nil
}
