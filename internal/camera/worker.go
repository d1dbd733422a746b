package camera

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"philipredstone/photocapture/internal/config"
	"philipredstone/photocapture/internal/queue"
)

// backlogWarnLen is the frame-queue depth at which the worker warns that the
// UI is not keeping up.
const backlogWarnLen = 50

// Options tunes a Worker.
type Options struct {
	// IdleSlice is how long the loop sleeps when it has no command and no
	// stream to read.
	IdleSlice time.Duration
	// StatusWidth is the width of rendered status frames.
	StatusWidth int
	Logger      zerolog.Logger
}

// Worker owns the capture device. Everything below the atomics is touched
// only by the worker goroutine.
type Worker struct {
	driver   Driver
	commands *queue.Queue[Command]
	frames   *queue.Queue[FrameMessage]

	idle        time.Duration
	statusWidth int
	log         zerolog.Logger

	state     atomic.Int32
	stopped   atomic.Bool
	done      chan struct{}
	startOnce sync.Once

	cam           config.Camera
	device        Device
	justConnected bool
	aspect        float64
	backlogWarned bool
}

// NewWorker creates a worker reading commands and publishing frames on the
// given queues. Call Start to launch its goroutine.
func NewWorker(driver Driver, commands *queue.Queue[Command], frames *queue.Queue[FrameMessage], opts Options) *Worker {
	if opts.IdleSlice <= 0 {
		opts.IdleSlice = config.DefaultWorkerIdle
	}
	if opts.StatusWidth <= 0 {
		opts.StatusWidth = config.DefaultStatusWidth
	}
	return &Worker{
		driver:      driver,
		commands:    commands,
		frames:      frames,
		idle:        opts.IdleSlice,
		statusWidth: opts.StatusWidth,
		log:         opts.Logger,
		done:        make(chan struct{}),
		aspect:      DefaultAspect,
	}
}

// Start launches the worker goroutine. Further calls are no-ops.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// State returns the current connection state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Stopped reports whether the worker loop has fully ended.
func (w *Worker) Stopped() bool {
	return w.stopped.Load()
}

// Done is closed once the worker loop has ended.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) setState(s State) {
	prev := State(w.state.Swap(int32(s)))
	if prev != s {
		w.log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("state changed")
	}
}

func (w *Worker) run() {
	w.log.Info().Msg("camera worker started")
	defer func() {
		w.stopped.Store(true)
		close(w.done)
		w.log.Info().Msg("camera worker ended")
	}()

	for w.State() != StateTerminated {
		if cmd, ok := w.commands.TryPop(); ok {
			w.apply(cmd)
		} else if w.State() != StateStreaming {
			time.Sleep(w.idle)
		}
		if w.State() == StateStreaming {
			w.readFrame()
		}
	}
}

func (w *Worker) apply(cmd Command) {
	w.log.Debug().Str("command", cmd.Kind.String()).Msg("command received")

	switch cmd.Kind {
	case CommandSettings:
		w.cam = cmd.Camera
	case CommandStart:
		w.emitStatus(TextConnecting, true)
		w.setState(StateConnecting)
		w.release()
		w.log.Info().Str("stream", w.cam.Redacted()).Msg("connecting to camera")
		dev, err := w.driver.Open(w.cam)
		if err != nil {
			// reported by the first read
			w.log.Warn().Err(fmt.Errorf("%w: %w", ErrDeviceOpen, err)).Msg("open failed")
			dev = nil
		}
		w.device = dev
		w.justConnected = true
		w.setState(StateStreaming)
	case CommandStop:
		w.emitStatus(TextDisconnecting, true)
		w.setState(StateDisconnecting)
		w.release()
		w.setState(StateIdle)
	case CommandQuit:
		w.release()
		w.setState(StateTerminated)
	default:
		w.log.Warn().Int("command", int(cmd.Kind)).Msg("unknown command ignored")
	}
}

func (w *Worker) readFrame() {
	first := w.justConnected
	w.justConnected = false

	var (
		raw    RawFrame
		pixels []byte
		err    error
	)
	if w.device == nil {
		err = ErrDeviceOpen
	} else if raw, err = w.device.Read(); err == nil {
		pixels, err = toRGB(raw)
	} else {
		err = fmt.Errorf("%w: %w", ErrDeviceRead, err)
	}

	if err != nil {
		text := TextLostConn
		if first {
			text = TextCouldNotConn
		}
		w.log.Warn().Err(err).Str("status", text).Msg("camera read failed")
		w.emitStatus(text, false)
		w.release()
		w.setState(StateIdle)
		return
	}

	w.aspect = float64(raw.Width) / float64(raw.Height)
	w.publish(FrameMessage{
		Kind:   FrameVideo,
		Pixels: pixels,
		Width:  raw.Width,
		Height: raw.Height,
	})
}

func (w *Worker) release() {
	if w.device == nil {
		return
	}
	w.log.Info().Msg("disconnecting camera")
	if err := w.device.Release(); err != nil {
		w.log.Error().Err(err).Msg("could not disconnect from camera")
	}
	w.device = nil
}

func (w *Worker) emitStatus(text string, busy bool) {
	img := RenderStatus(text, w.statusWidth, w.aspect)
	b := img.Bounds()
	w.publish(FrameMessage{
		Kind:   FrameStatus,
		Pixels: packRGB(img),
		Width:  b.Dx(),
		Height: b.Dy(),
		Busy:   busy,
		Text:   text,
	})
}

func (w *Worker) publish(msg FrameMessage) {
	w.frames.Push(msg)

	backlog := w.frames.Len()
	switch {
	case backlog >= backlogWarnLen && !w.backlogWarned:
		w.backlogWarned = true
		w.log.Warn().Int("backlog", backlog).Msg("frame queue is growing, UI is not keeping up")
	case backlog < backlogWarnLen/2 && w.backlogWarned:
		w.backlogWarned = false
		w.log.Info().Int("backlog", backlog).Msg("frame queue drained")
	}
}
