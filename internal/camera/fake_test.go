package camera

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"philipredstone/photocapture/internal/config"
	"philipredstone/photocapture/internal/queue"
)

var errScripted = errors.New("scripted failure")

// session scripts one open: openErr fails the open, otherwise reads
// succeed reads times (forever when negative) and then fail.
type session struct {
	openErr error
	reads   int
}

// fakeDriver hands out scripted devices and asserts that no two driver
// calls ever overlap.
type fakeDriver struct {
	mu       sync.Mutex
	sessions []session
	lastCam  config.Camera

	inFlight  atomic.Int32
	overlap   atomic.Bool
	opened    atomic.Int32
	released  atomic.Int32
	doubleRel atomic.Bool
	readDelay time.Duration
}

func (d *fakeDriver) enter() func() {
	if d.inFlight.Add(1) != 1 {
		d.overlap.Store(true)
	}
	return func() { d.inFlight.Add(-1) }
}

func (d *fakeDriver) Open(cam config.Camera) (Device, error) {
	defer d.enter()()
	time.Sleep(time.Millisecond)

	d.mu.Lock()
	d.lastCam = cam
	if len(d.sessions) == 0 {
		d.mu.Unlock()
		return nil, errScripted
	}
	s := d.sessions[0]
	d.sessions = d.sessions[1:]
	d.mu.Unlock()

	if s.openErr != nil {
		return nil, s.openErr
	}
	d.opened.Add(1)
	return &fakeDevice{driver: d, remaining: s.reads}, nil
}

func (d *fakeDriver) camera() config.Camera {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCam
}

type fakeDevice struct {
	driver    *fakeDriver
	remaining int
	released  bool
}

func (f *fakeDevice) Read() (RawFrame, error) {
	defer f.driver.enter()()
	if f.driver.readDelay > 0 {
		time.Sleep(f.driver.readDelay)
	}
	if f.released {
		return RawFrame{}, errors.New("read after release")
	}
	if f.remaining == 0 {
		return RawFrame{}, errScripted
	}
	if f.remaining > 0 {
		f.remaining--
	}
	// 4x2 BGR frame, pure blue
	data := make([]byte, 4*2*3)
	for i := 0; i < len(data); i += 3 {
		data[i] = 0xff
	}
	return RawFrame{Data: data, Width: 4, Height: 2, Format: FormatBGR}, nil
}

func (f *fakeDevice) Release() error {
	defer f.driver.enter()()
	if f.released {
		f.driver.doubleRel.Store(true)
	}
	f.released = true
	f.driver.released.Add(1)
	return nil
}

type harness struct {
	driver   *fakeDriver
	commands *queue.Queue[Command]
	frames   *queue.Queue[FrameMessage]
	worker   *Worker
}

func newHarness(sessions ...session) *harness {
	h := &harness{
		driver:   &fakeDriver{sessions: sessions},
		commands: queue.New[Command](),
		frames:   queue.New[FrameMessage](),
	}
	h.worker = NewWorker(h.driver, h.commands, h.frames, Options{
		IdleSlice:   time.Millisecond,
		StatusWidth: 64,
	})
	return h
}

// collect pops exactly n frames, failing the test if they do not arrive.
func (h *harness) collect(t *testing.T, n int) []FrameMessage {
	t.Helper()
	out := make([]FrameMessage, 0, n)
	deadline := time.Now().Add(3 * time.Second)
	for len(out) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %d of %d frames", len(out), n)
		}
		if msg, ok := h.frames.TryPop(); ok {
			out = append(out, msg)
			continue
		}
		time.Sleep(100 * time.Microsecond)
	}
	return out
}

func (h *harness) waitState(t *testing.T, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.worker.State() == s }, 3*time.Second, time.Millisecond)
}

func (h *harness) quit(t *testing.T) {
	t.Helper()
	h.commands.Push(Quit())
	select {
	case <-h.worker.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not terminate")
	}
}

// describe reduces frames to comparable labels.
func describe(frames []FrameMessage) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		if f.IsVideo() {
			out[i] = "video"
		} else {
			out[i] = f.Text
		}
	}
	return out
}
