package proctoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
)

// HTTPClassifier sends JPEG frames to an object-detection inference server.
//
// Request: POST <endpoint>, Content-Type image/jpeg, body = frame.
// Response: {"detections": [{"label": "person", "confidence": 0.91, "box": {"x1":..,"y1":..,"x2":..,"y2":..}}]}
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
	quality  int
}

func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		quality:  85,
	}
}

type classifyResponse struct {
	Detections []Detection `json:"detections"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, frame Frame) ([]Detection, error) {
	if frame.Image == nil {
		return nil, errors.New("frame has no image")
	}

	var body bytes.Buffer
	if err := imaging.Encode(&body, frame.Image, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	return out.Detections, nil
}
