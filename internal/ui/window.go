// Package ui is the fyne front end: the live view, the control buttons and
// the blocking notices of a capture session.
package ui

import (
	"context"
	"errors"
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"philipredstone/photocapture/internal/app"
	"philipredstone/photocapture/internal/camera"
	"philipredstone/photocapture/internal/config"
	"philipredstone/photocapture/internal/photo"
	"philipredstone/photocapture/internal/preview"
	"philipredstone/photocapture/internal/utility"
)

const noticeTextSize = 28

// Window is the capture window. It implements preview.View, modal.Dialog
// and modal.Prompter for its session.
type Window struct {
	fyneApp fyne.App
	window  fyne.Window
	session *app.Session
	log     zerolog.Logger
	ctx     context.Context

	// UI Elements
	previewImage *canvas.Image
	noFeedLabel  *widget.Label
	statusLabel  *widget.Label
	buttons      map[preview.Control]*widget.Button

	// touched only on the UI goroutine
	notice *widget.PopUp
}

// New builds the window and its session for the selected camera.
func New(a fyne.App, cfg config.Config, driver camera.Driver, logger zerolog.Logger) (*Window, error) {
	w := &Window{
		fyneApp: a,
		window:  a.NewWindow(cfg.Title()),
		log:     logger.With().Str("component", "ui").Logger(),
		ctx:     context.Background(),
		buttons: make(map[preview.Control]*widget.Button, len(preview.Controls)),
	}

	session, err := app.New(cfg, app.Deps{
		Driver:       driver,
		View:         w,
		Dialog:       w,
		Prompter:     w,
		Saver:        photo.Saver{},
		Launcher:     utility.New(cfg.Utility, logger.With().Str("component", "utility").Logger()),
		Logger:       logger,
		Schedule:     fyne.Do,
		RequestClose: func() { go w.shutdown() },
	})
	if err != nil {
		return nil, err
	}
	w.session = session

	w.initUI()
	w.window.SetContent(w.createContent())
	w.window.SetCloseIntercept(func() { go w.shutdown() })
	return w, nil
}

func (w *Window) initUI() {
	w.previewImage = canvas.NewImageFromImage(nil)
	w.previewImage.FillMode = canvas.ImageFillOriginal
	w.previewImage.ScaleMode = canvas.ImageScaleFastest

	w.noFeedLabel = widget.NewLabel(camera.TextConnecting)
	w.noFeedLabel.Alignment = fyne.TextAlignCenter

	w.statusLabel = widget.NewLabel(preview.StatusDisconnected)

	for _, c := range preview.Controls {
		w.buttons[c] = widget.NewButton(c.Label(), func() { w.session.Dispatch(c) })
	}
}

func (w *Window) createContent() fyne.CanvasObject {
	row := container.NewHBox()
	for _, c := range preview.Controls {
		row.Add(w.buttons[c])
	}
	return container.NewBorder(
		nil,
		container.NewVBox(w.statusLabel, container.NewCenter(row)),
		nil,
		nil,
		container.NewStack(w.noFeedLabel, w.previewImage),
	)
}

// Session returns the session driven by this window.
func (w *Window) Session() *app.Session { return w.session }

// Run starts the session and blocks in the fyne main loop. Cancelling ctx
// runs the close sequence without confirmation and then quits.
func (w *Window) Run(ctx context.Context) {
	w.ctx = ctx
	w.session.Start(ctx)
	w.window.ShowAndRun()
}

// shutdown runs the session close sequence and quits once it is done. It
// blocks on dialogs, so it never runs on the UI goroutine.
func (w *Window) shutdown() {
	err := w.session.Close(w.ctx)
	switch {
	case errors.Is(err, app.ErrQuitDeclined), errors.Is(err, app.ErrClosing):
		w.log.Debug().Err(err).Msg("window stays open")
		return
	case err != nil:
		w.log.Error().Err(err).Msg("close failed")
	}
	fyne.Do(func() {
		w.window.Close()
		w.fyneApp.Quit()
	})
}

// ShowFrame implements preview.View.
func (w *Window) ShowFrame(img image.Image) {
	w.previewImage.Image = img
	w.previewImage.Refresh()
	if w.noFeedLabel.Visible() {
		w.noFeedLabel.Hide()
	}
}

// SetStatus implements preview.View.
func (w *Window) SetStatus(text string) {
	w.statusLabel.SetText(text)
}

// SetEnabled implements preview.View.
func (w *Window) SetEnabled(c preview.Control, enabled bool) {
	btn, ok := w.buttons[c]
	if !ok {
		return
	}
	if enabled {
		btn.Enable()
	} else {
		btn.Disable()
	}
}

// Recenter implements preview.View.
func (w *Window) Recenter() {
	w.window.CenterOnScreen()
}

// Show implements modal.Dialog: a button-less notice over the window.
func (w *Window) Show(message string) {
	fyne.Do(func() {
		if w.notice != nil {
			w.notice.Hide()
		}
		text := canvas.NewText(message, color.White)
		text.TextSize = noticeTextSize
		text.TextStyle = fyne.TextStyle{Bold: true}
		text.Alignment = fyne.TextAlignCenter

		content := container.NewStack(
			canvas.NewRectangle(color.Black),
			container.NewPadded(container.NewCenter(text)),
		)
		w.notice = widget.NewModalPopUp(content, w.window.Canvas())
		w.notice.Show()
	})
}

// Close implements modal.Dialog.
func (w *Window) Close() {
	fyne.Do(func() {
		if w.notice != nil {
			w.notice.Hide()
			w.notice = nil
		}
	})
}

// Confirm implements modal.Prompter.
func (w *Window) Confirm(title, question string) bool {
	answer := make(chan bool, 1)
	fyne.Do(func() {
		d := dialog.NewConfirm(title, question, func(yes bool) { answer <- yes }, w.window)
		d.SetConfirmText("Yes")
		d.SetDismissText("No")
		d.Show()
	})
	return <-answer
}
