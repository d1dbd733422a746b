// Package camera implements the capture worker: a goroutine that exclusively
// owns the video device and talks to the UI only through two queues.
package camera

import (
	"errors"
	"fmt"
	"image"

	"philipredstone/photocapture/internal/config"
)

var (
	ErrDeviceOpen = errors.New("could not open camera device")
	ErrDeviceRead = errors.New("could not read camera frame")
)

// Status texts rendered into status frames.
const (
	TextConnecting    = "CONNECTING TO CAMERA"
	TextDisconnecting = "DISCONNECTING CAMERA"
	TextCouldNotConn  = "COULD NOT CONNECT TO CAMERA"
	TextLostConn      = "LOST CONNECTION TO CAMERA"
)

// CommandKind enumerates the commands the worker accepts.
type CommandKind int

const (
	CommandSettings CommandKind = iota
	CommandStart
	CommandStop
	CommandQuit
)

func (k CommandKind) String() string {
	switch k {
	case CommandSettings:
		return "settings"
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	case CommandQuit:
		return "quit"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command travels from the UI to the worker. Camera is only meaningful for
// CommandSettings.
type Command struct {
	Kind   CommandKind
	Camera config.Camera
}

// Settings returns a command carrying the camera configuration.
func Settings(cam config.Camera) Command { return Command{Kind: CommandSettings, Camera: cam} }

// Start returns a connect command.
func Start() Command { return Command{Kind: CommandStart} }

// Stop returns a disconnect command.
func Stop() Command { return Command{Kind: CommandStop} }

// Quit returns the terminal command.
func Quit() Command { return Command{Kind: CommandQuit} }

// FrameKind tells a real capture from a rendered status frame.
type FrameKind int

const (
	FrameVideo FrameKind = iota
	FrameStatus
)

func (k FrameKind) String() string {
	if k == FrameStatus {
		return "status"
	}
	return "video"
}

// FrameMessage travels from the worker to the UI. Pixels is packed RGB,
// three bytes per pixel, row major.
type FrameMessage struct {
	Kind   FrameKind
	Pixels []byte
	Width  int
	Height int
	// Busy is set while a connect or disconnect is in progress.
	Busy bool
	// Text is the overlay text of a status frame.
	Text string
}

// IsVideo reports whether the message carries a captured frame.
func (m FrameMessage) IsVideo() bool { return m.Kind == FrameVideo }

// Image converts the packed RGB pixels into an RGBA image for display.
func (m FrameMessage) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	n := m.Width * m.Height
	if len(m.Pixels) < n*3 {
		return img
	}
	for i, j := 0, 0; i < n; i, j = i+1, j+3 {
		o := i * 4
		img.Pix[o] = m.Pixels[j]
		img.Pix[o+1] = m.Pixels[j+1]
		img.Pix[o+2] = m.Pixels[j+2]
		img.Pix[o+3] = 0xff
	}
	return img
}

// State is the worker's connection state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateDisconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDisconnecting:
		return "disconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
