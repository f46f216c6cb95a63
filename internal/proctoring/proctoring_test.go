package proctoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPolicy_Evaluate(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name       string
		detections []Detection
		want       []models.ViolationKind
	}{
		{"single person", []Detection{Person()}, nil},
		{"nobody", nil, []models.ViolationKind{models.ViolationNoFace}},
		{"two people", []Detection{Person(), Person()}, []models.ViolationKind{models.ViolationMultipleFaces}},
		{"person with phone", []Detection{Person(), Object("cell phone")}, []models.ViolationKind{models.ViolationSuspiciousObject}},
		{
			"nobody with two books and a phone",
			[]Detection{Object("book"), Object("book"), Object("cell phone")},
			[]models.ViolationKind{models.ViolationNoFace, models.ViolationSuspiciousObject, models.ViolationSuspiciousObject, models.ViolationSuspiciousObject},
		},
		{"allowed object", []Detection{Person(), Object("cup")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var kinds []models.ViolationKind
			for _, v := range p.Evaluate(tt.detections) {
				kinds = append(kinds, v.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestPolicy_MinConfidence(t *testing.T) {
	p := NewPolicy(nil, 0.5, 5)

	violations := p.Evaluate([]Detection{
		Person(),
		{Label: "person", Confidence: 0.3},
		{Label: "book", Confidence: 0.2},
	})

	assert.Empty(t, violations)
}

func noFace(n int) []models.Violation {
	out := make([]models.Violation, n)
	for i := range out {
		out[i] = models.Violation{Kind: models.ViolationNoFace}
	}
	return out
}

func TestTally_FlagFiresOnce(t *testing.T) {
	tally := NewTally(5)

	assert.False(t, tally.Add(noFace(4)))
	assert.True(t, tally.Add(noFace(1)))
	assert.Equal(t, 5, tally.Count())
	assert.False(t, tally.Add(noFace(1)))
	assert.False(t, tally.Add(noFace(1)))
	assert.Equal(t, 7, tally.Count())
	assert.True(t, tally.Warned())
}

func TestTally_FlagFiresWhenThresholdIsJumped(t *testing.T) {
	tally := NewTally(5)

	assert.False(t, tally.Add(noFace(4)))
	assert.True(t, tally.Add(noFace(3)))
	assert.False(t, tally.Add(nil))
}

func TestTally_ByKind(t *testing.T) {
	tally := NewTally(5)

	tally.Add([]models.Violation{
		{Kind: models.ViolationNoFace},
		{Kind: models.ViolationSuspiciousObject, Label: "book"},
		{Kind: models.ViolationSuspiciousObject, Label: "cell phone"},
	})
	tally.Add([]models.Violation{{Kind: models.ViolationMultipleFaces}})

	byKind := tally.ByKind()
	assert.Equal(t, models.ViolationCounts{
		models.ViolationNoFace:           1,
		models.ViolationMultipleFaces:    1,
		models.ViolationSuspiciousObject: 2,
	}, byKind)
	assert.Equal(t, tally.Count(), byKind.Total())

	byKind[models.ViolationNoFace] = 99
	assert.Equal(t, 1, tally.ByKind()[models.ViolationNoFace])
}

func TestDetector_FrameSequence(t *testing.T) {
	classifier := Frames(
		[]Detection{Person(), Person()},
		[]Detection{Person(), Object("cell phone")},
		[]Detection{Person()},
	)
	d := NewDetector(NewScriptedCamera(), classifier, DefaultPolicy(), testLogger())
	ctx := context.Background()

	var increments []int
	for i := 0; i < 3; i++ {
		report := d.Tick(ctx)
		require.NoError(t, report.Err)
		increments = append(increments, len(report.Violations))
	}

	assert.Equal(t, []int{1, 1, 0}, increments)
	count, warned := d.Tally()
	assert.Equal(t, 2, count)
	assert.False(t, warned)
	assert.Equal(t, models.ViolationCounts{
		models.ViolationMultipleFaces:    1,
		models.ViolationSuspiciousObject: 1,
	}, d.ViolationCounts())
}

func TestDetector_ThresholdFlag(t *testing.T) {
	d := NewDetector(NewScriptedCamera(), Frames([]Detection{}), DefaultPolicy(), testLogger())
	ctx := context.Background()

	var flaggedAt []int
	for i := 1; i <= 8; i++ {
		if d.Tick(ctx).Flagged {
			flaggedAt = append(flaggedAt, i)
		}
	}

	assert.Equal(t, []int{5}, flaggedAt)
	count, warned := d.Tally()
	assert.Equal(t, 8, count)
	assert.True(t, warned)
}

func TestDetector_FailuresAreZeroSignal(t *testing.T) {
	camera := NewScriptedCamera(
		ScriptedRead{Err: errors.New("device busy")},
		ScriptedRead{},
		ScriptedRead{},
	)
	classifier := NewScriptedClassifier(
		ScriptedResult{Err: errors.New("model timeout")},
		ScriptedResult{Detections: nil},
	)
	d := NewDetector(camera, classifier, DefaultPolicy(), testLogger())
	ctx := context.Background()

	first := d.Tick(ctx)
	var detErr *DetectionError
	require.ErrorAs(t, first.Err, &detErr)
	assert.Equal(t, "read", detErr.Stage)
	assert.Equal(t, 0, first.Tally)

	second := d.Tick(ctx)
	require.ErrorAs(t, second.Err, &detErr)
	assert.Equal(t, "classify", detErr.Stage)
	assert.Equal(t, 0, second.Tally)

	third := d.Tick(ctx)
	assert.NoError(t, third.Err)
	assert.Equal(t, 1, third.Tally)

	fourth := d.Tick(ctx)
	assert.ErrorIs(t, fourth.Err, ErrNoFrame)
	assert.Equal(t, 1, fourth.Tally)
}

func TestDetector_ReleaseIsIdempotent(t *testing.T) {
	camera := NewScriptedCamera()
	d := NewDetector(camera, NewScriptedClassifier(), DefaultPolicy(), testLogger())

	require.NoError(t, d.Release())
	require.NoError(t, d.Release())
	assert.True(t, camera.Released())

	report := d.Tick(context.Background())
	assert.ErrorIs(t, report.Err, ErrCameraReleased)
}

func TestMonitor_OpenFailureIsResourceError(t *testing.T) {
	m := NewMonitor(&ScriptedCameraProvider{Err: errors.New("no device")}, NewScriptedClassifier(), DefaultPolicy(), testLogger())

	_, err := m.Open(context.Background(), "s1")

	assert.True(t, IsResourceError(err))
}

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFrameHub_LatestFrameWins(t *testing.T) {
	hub := NewFrameHub(FrameHubConfig{MaxDimension: 64, Logger: testLogger()})
	ctx := context.Background()

	cam, err := hub.Acquire(ctx, "s1")
	require.NoError(t, err)

	_, err = cam.Read(ctx)
	assert.ErrorIs(t, err, ErrNoFrame)

	require.NoError(t, hub.Publish("s1", bytes.NewReader(solidPNG(t, 32, 32))))
	require.NoError(t, hub.Publish("s1", bytes.NewReader(solidPNG(t, 200, 100))))

	frame, err := cam.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), frame.Seq)
	assert.LessOrEqual(t, frame.Image.Bounds().Dx(), 64)

	_, err = cam.Read(ctx)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestFrameHub_Ownership(t *testing.T) {
	hub := NewFrameHub(FrameHubConfig{MaxStreams: 1, Logger: testLogger()})
	ctx := context.Background()

	cam, err := hub.Acquire(ctx, "s1")
	require.NoError(t, err)

	_, err = hub.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, ErrCameraBusy)

	_, err = hub.Acquire(ctx, "s2")
	assert.ErrorIs(t, err, ErrStreamLimit)
	assert.True(t, IsResourceError(err))

	require.NoError(t, cam.Release())
	require.NoError(t, cam.Release())
	assert.Equal(t, 0, hub.Streams())

	assert.ErrorIs(t, hub.Publish("s1", bytes.NewReader(solidPNG(t, 4, 4))), ErrUnknownStream)

	_, err = hub.Acquire(ctx, "s2")
	assert.NoError(t, err)

	hub.Close()
	_, err = hub.Acquire(ctx, "s3")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestFrameHub_RejectsGarbage(t *testing.T) {
	hub := NewFrameHub(FrameHubConfig{Logger: testLogger()})
	_, err := hub.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	assert.Error(t, hub.Publish("s1", bytes.NewReader([]byte("not an image"))))
}

func TestFrameHub_UnknownStreamIsRejectedBeforeDecoding(t *testing.T) {
	hub := NewFrameHub(FrameHubConfig{Logger: testLogger()})

	body := bytes.NewReader([]byte("not an image"))
	err := hub.Publish("missing", body)
	assert.ErrorIs(t, err, ErrUnknownStream)
	assert.Equal(t, 12, body.Len())

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	assert.ErrorIs(t, hub.PublishImage("missing", img), ErrUnknownStream)
}

func TestHTTPClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"detections": []map[string]any{
				{"label": "person", "confidence": 0.93, "box": map[string]float64{"x1": 1, "y1": 2, "x2": 30, "y2": 40}},
				{"label": "book", "confidence": 0.61},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	frame := Frame{Image: image.NewRGBA(image.Rect(0, 0, 8, 8))}

	dets, err := c.Classify(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, "person", dets[0].Label)
	assert.Equal(t, 30.0, dets[0].Box.X2)
}

func TestHTTPClassifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), Frame{Image: image.NewRGBA(image.Rect(0, 0, 2, 2))})

	assert.Error(t, err)
}
