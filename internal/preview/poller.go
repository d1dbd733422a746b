package preview

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"philipredstone/photocapture/internal/camera"
	"philipredstone/photocapture/internal/queue"
)

// Status lines shown under the live view.
const StatusDisconnected = "Camera Disconnected"

// ResolutionStatus is the status line for a streaming camera.
func ResolutionStatus(width, height int) string {
	return fmt.Sprintf("Camera Resolution (width x height): %d x %d", width, height)
}

// View is the widget surface the poller updates. Calls arrive on whatever
// goroutine runs Tick.
type View interface {
	ShowFrame(img image.Image)
	SetStatus(text string)
	SetEnabled(c Control, enabled bool)
	// Recenter is called once, on the tick after the first frame was shown.
	Recenter()
}

// Options tunes a Poller.
type Options struct {
	// FrameWidth is the on-screen width of the live view.
	FrameWidth int
	// AutoCapture latches the first video frame as the photo.
	AutoCapture bool
	Logger      zerolog.Logger
}

// Poller drains the frame queue. Tick, RequestPhoto and DiscardPhoto are
// meant to run on the UI goroutine; the mutex only guards Photo and Held
// for readers on other goroutines.
type Poller struct {
	frames     *queue.Queue[camera.FrameMessage]
	view       View
	frameWidth int
	log        zerolog.Logger

	mu        sync.Mutex
	takePhoto bool
	held      bool
	photo     *image.RGBA

	firstFrame   bool
	recenterNext bool
	resolution   image.Point
	resChanged   bool
}

// New creates a poller over the frame queue.
func New(frames *queue.Queue[camera.FrameMessage], view View, opts Options) *Poller {
	if opts.FrameWidth <= 0 {
		opts.FrameWidth = 1200
	}
	return &Poller{
		frames:     frames,
		view:       view,
		frameWidth: opts.FrameWidth,
		log:        opts.Logger,
		takePhoto:  opts.AutoCapture,
		firstFrame: true,
		resChanged: true,
	}
}

// Reset puts the controls in their initial state.
func (p *Poller) Reset() {
	for _, c := range Controls {
		p.view.SetEnabled(c, c.InitiallyEnabled())
	}
}

// Run ticks every interval until ctx is done. schedule moves each tick onto
// the UI goroutine; pass nil to tick on the Run goroutine.
func (p *Poller) Run(ctx context.Context, interval time.Duration, schedule func(func())) {
	if schedule == nil {
		schedule = func(f func()) { f() }
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			schedule(func() { p.Tick() })
		}
	}
}

// Tick handles at most one frame message. It reports whether one was taken.
func (p *Poller) Tick() bool {
	if p.recenterNext {
		p.recenterNext = false
		p.view.Recenter()
	}

	msg, ok := p.frames.TryPop()
	if !ok {
		return false
	}

	p.view.SetEnabled(ControlReconnect, !msg.Busy)

	p.mu.Lock()
	held := p.held
	p.mu.Unlock()
	if held {
		p.view.SetEnabled(ControlSavePhoto, true)
		p.view.SetEnabled(ControlDiscardPhoto, true)
		return true
	}
	p.view.SetEnabled(ControlSavePhoto, false)

	img := msg.Image()
	p.view.ShowFrame(scaleToWidth(img, p.frameWidth))
	if p.firstFrame {
		p.firstFrame = false
		p.recenterNext = true
	}

	var res image.Point
	if msg.IsVideo() {
		res = image.Pt(msg.Width, msg.Height)
		p.mu.Lock()
		if p.takePhoto {
			p.takePhoto = false
			p.held = true
			p.photo = img
		}
		latched := p.held
		p.mu.Unlock()
		if latched {
			p.log.Info().Int("width", msg.Width).Int("height", msg.Height).Msg("taking photo")
		} else {
			p.view.SetEnabled(ControlTakePhoto, true)
		}
	} else {
		p.view.SetEnabled(ControlTakePhoto, false)
	}

	if res != p.resolution {
		p.resolution = res
		p.resChanged = true
	}
	if p.resChanged {
		p.resChanged = false
		status := StatusDisconnected
		if msg.IsVideo() {
			status = ResolutionStatus(res.X, res.Y)
		}
		p.log.Info().Msg(status)
		p.view.SetStatus(status)
	}
	return true
}

// RequestPhoto latches the next video frame as the photo.
func (p *Poller) RequestPhoto() {
	p.view.SetEnabled(ControlTakePhoto, false)
	p.view.SetEnabled(ControlDiscardPhoto, true)
	p.mu.Lock()
	p.takePhoto = true
	p.mu.Unlock()
}

// DiscardPhoto returns to live view.
func (p *Poller) DiscardPhoto() {
	p.mu.Lock()
	p.held = false
	p.takePhoto = false
	p.photo = nil
	p.mu.Unlock()
	p.view.SetEnabled(ControlDiscardPhoto, false)
}

// Photo returns the held photo at full capture resolution.
func (p *Poller) Photo() (*image.RGBA, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.photo, p.held && p.photo != nil
}

// Held reports whether a photo is being held.
func (p *Poller) Held() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

// scaleToWidth resizes img to width, keeping the aspect ratio.
func scaleToWidth(img *image.RGBA, width int) image.Image {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dx() == width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
