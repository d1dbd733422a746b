// Package app ties one capture session together: the camera worker, the
// live-view poller and the dialogs around saving and quitting.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"philipredstone/photocapture/internal/camera"
	"philipredstone/photocapture/internal/config"
	"philipredstone/photocapture/internal/modal"
	"philipredstone/photocapture/internal/preview"
	"philipredstone/photocapture/internal/queue"
)

var (
	// ErrQuitDeclined is returned by Close when the user chose to stay.
	ErrQuitDeclined = errors.New("quit declined")
	// ErrClosing is returned by Close while another Close is in progress.
	ErrClosing = errors.New("session is already closing")
)

// Dialog texts.
const (
	TitleSaveFailed = "COULD NOT SAVE PHOTO"
	TitleNoPhoto    = "NO PHOTO CAPTURED"
	MessageClosing  = "CLOSING PHOTO CAPTURE APPLICATION"

	questionSaveFailed = "Failed to save photo to file:\n%s\n\nDo you want to quit anyway?"
	questionNoPhoto    = "No photo saved.\n\nDo you want to quit anyway?"
)

// PhotoSaver writes the held photo.
type PhotoSaver interface {
	Save(path string, img image.Image) error
}

// Launcher starts the external camera utility.
type Launcher interface {
	Launch() error
}

// Deps are the collaborators of a session. View is only called on the UI
// goroutine; Dialog and Prompter are called from background goroutines.
type Deps struct {
	Driver   camera.Driver
	View     preview.View
	Dialog   modal.Dialog
	Prompter modal.Prompter
	Saver    PhotoSaver
	Launcher Launcher
	Logger   zerolog.Logger

	// Schedule runs a function on the UI goroutine. Nil calls it directly.
	Schedule func(func())
	// RequestClose asks the window to run the close sequence.
	RequestClose func()
}

// Session is one run of the capture window.
type Session struct {
	ID string

	cfg      config.Config
	cam      config.Camera
	commands *queue.Queue[camera.Command]
	frames   *queue.Queue[camera.FrameMessage]
	worker   *camera.Worker
	poller   *preview.Poller
	dialogs  *modal.Controller

	view         preview.View
	saver        PhotoSaver
	launcher     Launcher
	schedule     func(func())
	requestClose func()
	log          zerolog.Logger

	forcedClose atomic.Bool
	closing     atomic.Bool

	stopOnce   sync.Once
	stopPoller context.CancelFunc
	pollerDone chan struct{}
	ended      chan struct{}
}

// New validates cfg and builds a session. Nothing runs until Start.
func New(cfg config.Config, deps Deps) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cam, err := cfg.Selected()
	if err != nil {
		return nil, err
	}
	if deps.Driver == nil || deps.View == nil || deps.Dialog == nil || deps.Prompter == nil {
		return nil, errors.New("session needs a driver, a view, a dialog and a prompter")
	}

	id := uuid.NewString()
	logger := deps.Logger.With().Str("session", id).Logger()

	s := &Session{
		ID:           id,
		cfg:          cfg,
		cam:          cam,
		commands:     queue.New[camera.Command](),
		frames:       queue.New[camera.FrameMessage](),
		view:         deps.View,
		saver:        deps.Saver,
		launcher:     deps.Launcher,
		schedule:     deps.Schedule,
		requestClose: deps.RequestClose,
		log:          logger.With().Str("component", "session").Logger(),
		pollerDone:   make(chan struct{}),
		ended:        make(chan struct{}),
	}
	s.worker = camera.NewWorker(deps.Driver, s.commands, s.frames, camera.Options{
		IdleSlice:   cfg.Timing.WorkerIdle,
		StatusWidth: cfg.StatusWidth,
		Logger:      logger.With().Str("component", "worker").Logger(),
	})
	s.poller = preview.New(s.frames, deps.View, preview.Options{
		FrameWidth:  cfg.FrameWidth,
		AutoCapture: cfg.AutoCapture,
		Logger:      logger.With().Str("component", "poller").Logger(),
	})
	s.dialogs = modal.New(deps.Dialog, deps.Prompter, cfg.Timing.DialogTick,
		logger.With().Str("component", "modal").Logger())
	return s, nil
}

// Title is the window caption.
func (s *Session) Title() string { return s.cfg.Title() }

// Worker exposes the camera worker for status queries.
func (s *Session) Worker() *camera.Worker { return s.worker }

// Poller exposes the live-view poller.
func (s *Session) Poller() *preview.Poller { return s.poller }

// Start configures the worker, asks it to connect and starts polling frames.
// Cancelling ctx requests a forced close; the poller keeps draining frames
// until Close has stopped the worker. Call it on the UI goroutine.
func (s *Session) Start(ctx context.Context) {
	s.log.Info().
		Str("camera", s.cam.Name).
		Str("stream", s.cam.Redacted()).
		Str("photo_file", s.cfg.PhotoFile).
		Msg("session starting")

	s.poller.Reset()
	s.commands.Push(camera.Settings(s.cam), camera.Start())
	s.worker.Start()

	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopPoller = cancel
	go func() {
		defer close(s.pollerDone)
		s.poller.Run(pctx, s.cfg.Timing.PollInterval, s.schedule)
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.log.Info().Err(ctx.Err()).Msg("interrupted, closing without confirmation")
			s.forcedClose.Store(true)
			if s.requestClose != nil {
				s.requestClose()
			}
		case <-s.ended:
		}
	}()
}

// Dispatch handles a button press. Call it on the UI goroutine.
func (s *Session) Dispatch(c preview.Control) {
	s.log.Debug().Stringer("control", c).Msg("button pressed")

	switch c {
	case preview.ControlReconnect:
		s.view.SetEnabled(preview.ControlReconnect, false)
		s.commands.Push(camera.Stop(), camera.Start())
	case preview.ControlTakePhoto:
		s.poller.RequestPhoto()
	case preview.ControlDiscardPhoto:
		s.poller.DiscardPhoto()
	case preview.ControlSavePhoto:
		img, ok := s.poller.Photo()
		if !ok {
			s.log.Warn().Msg("save pressed without a photo")
			return
		}
		go s.SavePhoto(img)
	case preview.ControlUtility:
		if s.launcher == nil {
			s.log.Warn().Msg("no utility configured")
			return
		}
		if err := s.launcher.Launch(); err != nil {
			s.log.Error().Err(err).Msg("could not start camera utility")
		}
	default:
		s.log.Warn().Int("control", int(c)).Msg("unknown control")
	}
}

// SavePhoto writes img to the configured file and closes the window on
// success. On failure the user may still quit. It blocks on the prompt, so
// it must not run on the UI goroutine.
func (s *Session) SavePhoto(img image.Image) {
	path := s.cfg.PhotoFile
	err := errors.New("no photo saver")
	if s.saver != nil {
		err = s.saver.Save(path, img)
	}
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("could not save photo")
		if !s.dialogs.YesNo(TitleSaveFailed, fmt.Sprintf(questionSaveFailed, path)) {
			return
		}
	} else {
		s.log.Info().Str("path", path).Msg("photo saved")
	}

	s.forcedClose.Store(true)
	if s.requestClose != nil {
		s.requestClose()
	}
}

// Close runs the quit sequence: confirm when nothing was saved, stop the
// worker and wait for it behind a notice bounded by the close timeout. The
// wait ignores cancellation of ctx, so an interrupted session still waits
// for the worker. It returns ErrQuitDeclined when the user chose to keep the
// window open. It blocks, so it must not run on the UI goroutine.
func (s *Session) Close(ctx context.Context) error {
	if !s.closing.CompareAndSwap(false, true) {
		return ErrClosing
	}
	if !s.forcedClose.Load() && !s.dialogs.YesNo(TitleNoPhoto, questionNoPhoto) {
		s.closing.Store(false)
		return ErrQuitDeclined
	}

	s.log.Info().Msg("stopping camera worker")
	s.commands.Push(camera.Quit())
	res := s.dialogs.Until(context.WithoutCancel(ctx), modal.Options{
		Message:        MessageClosing,
		Timeout:        s.cfg.Timing.CloseTimeout,
		ClosePredicate: s.worker.Stopped,
		InitialDelay:   s.cfg.Timing.CloseDelay,
	})
	if res.Reason != modal.ReasonPredicate {
		s.log.Warn().Stringer("reason", res.Reason).Msg("camera worker did not stop in time")
	}

	s.stopOnce.Do(func() {
		close(s.ended)
		if s.stopPoller != nil {
			s.stopPoller()
			<-s.pollerDone
		}
	})
	s.log.Info().Dur("elapsed", res.Elapsed).Msg("session closed")
	return nil
}
