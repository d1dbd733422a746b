package preview

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"philipredstone/photocapture/internal/camera"
	"philipredstone/photocapture/internal/queue"
)

type fakeView struct {
	mu        sync.Mutex
	enabled   map[Control]bool
	statuses  []string
	shown     []image.Image
	recenters int
}

func newFakeView() *fakeView {
	return &fakeView{enabled: make(map[Control]bool)}
}

func (v *fakeView) ShowFrame(img image.Image) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.shown = append(v.shown, img)
}

func (v *fakeView) SetStatus(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, text)
}

func (v *fakeView) SetEnabled(c Control, enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled[c] = enabled
}

func (v *fakeView) Recenter() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.recenters++
}

func (v *fakeView) isEnabled(c Control) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled[c]
}

func (v *fakeView) shownCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.shown)
}

func video(w, h int, fill byte) camera.FrameMessage {
	px := make([]byte, w*h*3)
	for i := range px {
		px[i] = fill
	}
	return camera.FrameMessage{Kind: camera.FrameVideo, Pixels: px, Width: w, Height: h}
}

func status(text string, busy bool) camera.FrameMessage {
	return camera.FrameMessage{Kind: camera.FrameStatus, Pixels: make([]byte, 16*9*3), Width: 16, Height: 9, Busy: busy, Text: text}
}

func newTestPoller(opts Options) (*Poller, *queue.Queue[camera.FrameMessage], *fakeView) {
	frames := queue.New[camera.FrameMessage]()
	view := newFakeView()
	if opts.FrameWidth == 0 {
		opts.FrameWidth = 8
	}
	p := New(frames, view, opts)
	p.Reset()
	return p, frames, view
}

func TestPollerAtMostOnePerTick(t *testing.T) {
	p, frames, view := newTestPoller(Options{})
	frames.Push(video(4, 2, 1), video(4, 2, 2), video(4, 2, 3))

	assert.True(t, p.Tick())
	assert.Equal(t, 2, frames.Len())
	assert.Equal(t, 1, view.shownCount())

	assert.True(t, p.Tick())
	assert.True(t, p.Tick())
	assert.False(t, p.Tick())
	assert.Equal(t, 3, view.shownCount())
}

func TestPollerInitialControls(t *testing.T) {
	_, _, view := newTestPoller(Options{})
	for _, c := range Controls {
		assert.Equal(t, c == ControlUtility, view.isEnabled(c), c.Label())
	}
}

func TestPollerDerivedState(t *testing.T) {
	p, frames, view := newTestPoller(Options{})

	frames.Push(status(camera.TextConnecting, true))
	p.Tick()
	assert.False(t, view.isEnabled(ControlReconnect))
	assert.False(t, view.isEnabled(ControlTakePhoto))
	assert.Equal(t, []string{StatusDisconnected}, view.statuses)

	frames.Push(video(4, 2, 9), video(4, 2, 9))
	p.Tick()
	assert.True(t, view.isEnabled(ControlReconnect))
	assert.True(t, view.isEnabled(ControlTakePhoto))
	assert.False(t, view.isEnabled(ControlSavePhoto))
	p.Tick()
	assert.Equal(t, []string{StatusDisconnected, ResolutionStatus(4, 2)}, view.statuses, "unchanged resolution is not re-announced")

	frames.Push(status(camera.TextLostConn, false))
	p.Tick()
	assert.True(t, view.isEnabled(ControlReconnect))
	assert.False(t, view.isEnabled(ControlTakePhoto))
	assert.Equal(t, StatusDisconnected, view.statuses[len(view.statuses)-1])
}

func TestPollerRecenterAfterFirstFrame(t *testing.T) {
	p, frames, view := newTestPoller(Options{})

	p.Tick()
	assert.Zero(t, view.recenters, "no frame yet")

	frames.Push(video(4, 2, 1), video(4, 2, 1))
	p.Tick()
	assert.Zero(t, view.recenters)
	p.Tick()
	assert.Equal(t, 1, view.recenters)
	p.Tick()
	assert.Equal(t, 1, view.recenters)
}

func TestPollerScalesToFrameWidth(t *testing.T) {
	p, frames, view := newTestPoller(Options{FrameWidth: 8})
	frames.Push(video(4, 2, 200))
	p.Tick()

	require.Len(t, view.shown, 1)
	assert.Equal(t, image.Rect(0, 0, 8, 4), view.shown[0].Bounds())
}

func TestPollerPhotoHeld(t *testing.T) {
	p, frames, view := newTestPoller(Options{})

	frames.Push(video(4, 2, 10))
	p.Tick()
	_, ok := p.Photo()
	assert.False(t, ok)

	p.RequestPhoto()
	assert.False(t, view.isEnabled(ControlTakePhoto))
	assert.True(t, view.isEnabled(ControlDiscardPhoto))

	// the next video frame is latched, status frames are not
	frames.Push(status(camera.TextConnecting, true), video(4, 2, 20), video(4, 2, 30), status(camera.TextLostConn, false))
	p.Tick()
	assert.False(t, p.Held())
	p.Tick()
	require.True(t, p.Held())

	photo, ok := p.Photo()
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 4, 2), photo.Bounds(), "photo keeps capture resolution")
	assert.Equal(t, uint8(20), photo.Pix[0])

	shown := view.shownCount()
	p.Tick()
	assert.Equal(t, shown, view.shownCount(), "held mode drops frames")
	assert.True(t, view.isEnabled(ControlSavePhoto))
	assert.True(t, view.isEnabled(ControlDiscardPhoto))

	// busy flag is still tracked while held
	frames.Push(status(camera.TextDisconnecting, true))
	p.Tick()
	p.Tick()
	assert.False(t, view.isEnabled(ControlReconnect))
	photo, _ = p.Photo()
	assert.Equal(t, uint8(20), photo.Pix[0], "latched photo is not replaced")

	p.DiscardPhoto()
	assert.False(t, p.Held())
	assert.False(t, view.isEnabled(ControlDiscardPhoto))

	frames.Push(video(4, 2, 40))
	p.Tick()
	assert.Equal(t, shown+1, view.shownCount())
	assert.True(t, view.isEnabled(ControlTakePhoto))
	assert.False(t, view.isEnabled(ControlSavePhoto))
}

func TestPollerAutoCapture(t *testing.T) {
	p, frames, _ := newTestPoller(Options{AutoCapture: true})
	frames.Push(video(4, 2, 5))
	p.Tick()
	assert.True(t, p.Held())
}

func TestPollerRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, frames, view := newTestPoller(Options{})
	frames.Push(video(4, 2, 1), video(4, 2, 2), video(4, 2, 3))

	var scheduled sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx, time.Millisecond, func(f func()) {
			scheduled.Add(1)
			defer scheduled.Done()
			f()
		})
	}()

	require.Eventually(t, func() bool { return view.shownCount() == 3 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done
	scheduled.Wait()
	assert.True(t, frames.Empty())
}
