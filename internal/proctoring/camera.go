package proctoring

import (
	"context"
	"image"
	"sync"
	"time"
)

// Frame is one captured webcam image.
type Frame struct {
	Image      image.Image
	Seq        uint64
	CapturedAt time.Time
}

// Camera is an exclusively owned frame source. Release must be idempotent.
type Camera interface {
	Read(ctx context.Context) (Frame, error)
	Release() error
}

// CameraProvider hands out one camera per session handle.
type CameraProvider interface {
	Acquire(ctx context.Context, handle string) (Camera, error)
}

// ScriptedRead is one step of a ScriptedCamera.
type ScriptedRead struct {
	Frame Frame
	Err   error
}

// ScriptedCamera replays a fixed sequence of reads. Reads past the end return
// ErrNoFrame. A camera without a script yields an empty frame on every read.
type ScriptedCamera struct {
	mu       sync.Mutex
	reads    []ScriptedRead
	pos      int
	releases int
}

func NewScriptedCamera(reads ...ScriptedRead) *ScriptedCamera {
	return &ScriptedCamera{reads: reads}
}

func (c *ScriptedCamera) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.releases > 0 {
		return Frame{}, ErrCameraReleased
	}
	if len(c.reads) == 0 {
		c.pos++
		return Frame{Seq: uint64(c.pos), CapturedAt: time.Now()}, nil
	}
	if c.pos >= len(c.reads) {
		return Frame{}, ErrNoFrame
	}

	read := c.reads[c.pos]
	c.pos++
	if read.Err != nil {
		return Frame{}, read.Err
	}
	read.Frame.Seq = uint64(c.pos)
	return read.Frame, nil
}

func (c *ScriptedCamera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
	return nil
}

// Released reports whether Release was called at least once.
func (c *ScriptedCamera) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases > 0
}

// ScriptedCameraProvider gives every handle its own ScriptedCamera replaying
// Reads, or fails with Err when set.
type ScriptedCameraProvider struct {
	Reads []ScriptedRead
	Err   error

	mu      sync.Mutex
	cameras map[string]*ScriptedCamera
	order   []string
}

func (p *ScriptedCameraProvider) Acquire(_ context.Context, handle string) (Camera, error) {
	if p.Err != nil {
		return nil, &ResourceError{Resource: "camera", Err: p.Err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cameras == nil {
		p.cameras = make(map[string]*ScriptedCamera)
	}
	if _, owned := p.cameras[handle]; owned {
		return nil, &ResourceError{Resource: "camera", Err: ErrCameraBusy}
	}

	cam := NewScriptedCamera(p.Reads...)
	p.cameras[handle] = cam
	p.order = append(p.order, handle)
	return cam, nil
}

// Camera returns the camera handed out for handle.
func (p *ScriptedCameraProvider) Camera(handle string) *ScriptedCamera {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cameras[handle]
}

// Acquired lists the handles that acquired a camera, in order.
func (p *ScriptedCameraProvider) Acquired() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}
