package proctoring

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const DefaultMaxFrameDimension = 640

// FrameHub is an in-process camera source fed by frames the browser uploads.
// Each session owns one slot holding only the latest frame: a newer upload
// replaces an unread one, nothing is queued.
type FrameHub struct {
	maxStreams int
	maxDim     int
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	slots  map[string]*frameSlot
	closed bool
}

type frameSlot struct {
	frame    *Frame
	seq      uint64
	lastRead uint64
	dropped  uint64
}

type FrameHubConfig struct {
	MaxStreams   int // 0 means unlimited
	MaxDimension int
	Logger       *slog.Logger
}

func NewFrameHub(cfg FrameHubConfig) *FrameHub {
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxFrameDimension
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FrameHub{
		maxStreams: cfg.MaxStreams,
		maxDim:     cfg.MaxDimension,
		logger:     cfg.Logger,
		now:        time.Now,
		slots:      make(map[string]*frameSlot),
	}
}

// Acquire registers an exclusive slot for handle.
func (h *FrameHub) Acquire(ctx context.Context, handle string) (Camera, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ResourceError{Resource: "camera", Err: err}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, &ResourceError{Resource: "camera", Err: ErrHubClosed}
	}
	if _, owned := h.slots[handle]; owned {
		return nil, &ResourceError{Resource: "camera", Err: ErrCameraBusy}
	}
	if h.maxStreams > 0 && len(h.slots) >= h.maxStreams {
		return nil, &ResourceError{Resource: "camera", Err: ErrStreamLimit}
	}

	h.slots[handle] = &frameSlot{}
	h.logger.Debug("Camera stream acquired", "session_id", handle, "streams", len(h.slots))

	return &hubCamera{hub: h, handle: handle}, nil
}

// Publish decodes an uploaded image (JPEG, PNG, GIF, BMP, TIFF or WebP),
// downscales it and stores it as the latest frame of handle. Uploads for a
// handle without a slot are rejected before decoding.
func (h *FrameHub) Publish(handle string, r io.Reader) error {
	if !h.owned(handle) {
		return ErrUnknownStream
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	return h.PublishImage(handle, img)
}

// PublishImage stores an already decoded image as the latest frame of handle.
func (h *FrameHub) PublishImage(handle string, img image.Image) error {
	if !h.owned(handle) {
		return ErrUnknownStream
	}
	b := img.Bounds()
	if b.Dx() > h.maxDim || b.Dy() > h.maxDim {
		img = imaging.Fit(img, h.maxDim, h.maxDim, imaging.Linear)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// The slot may have been released while the frame was resized.
	slot, ok := h.slots[handle]
	if !ok {
		return ErrUnknownStream
	}

	if slot.frame != nil && slot.lastRead < slot.seq {
		slot.dropped++
	}
	slot.seq++
	slot.frame = &Frame{Image: img, Seq: slot.seq, CapturedAt: h.now()}
	return nil
}

func (h *FrameHub) owned(handle string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.slots[handle]
	return ok
}

// Streams returns the number of owned slots.
func (h *FrameHub) Streams() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.slots)
}

// Close rejects further acquisitions and drops all slots.
func (h *FrameHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.slots = make(map[string]*frameSlot)
}

func (h *FrameHub) read(handle string) (Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	slot, ok := h.slots[handle]
	if !ok {
		return Frame{}, ErrCameraReleased
	}
	if slot.frame == nil || slot.lastRead == slot.seq {
		return Frame{}, ErrNoFrame
	}

	slot.lastRead = slot.seq
	return *slot.frame, nil
}

func (h *FrameHub) release(handle string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if slot, ok := h.slots[handle]; ok {
		delete(h.slots, handle)
		h.logger.Debug("Camera stream released",
			"session_id", handle,
			"frames", slot.seq,
			"dropped_frames", slot.dropped)
	}
}

type hubCamera struct {
	hub    *FrameHub
	handle string
	once   sync.Once
}

func (c *hubCamera) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	return c.hub.read(c.handle)
}

func (c *hubCamera) Release() error {
	c.once.Do(func() {
		c.hub.release(c.handle)
	})
	return nil
}
