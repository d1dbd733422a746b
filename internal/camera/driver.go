package camera

import (
	"fmt"

	"philipredstone/photocapture/internal/config"
)

// PixelFormat describes the byte layout of a RawFrame.
type PixelFormat int

const (
	FormatBGR PixelFormat = iota
	FormatRGB
	FormatRGBA
)

func (f PixelFormat) bytesPerPixel() int {
	if f == FormatRGBA {
		return 4
	}
	return 3
}

// RawFrame is what a device hands back from a read.
type RawFrame struct {
	Data   []byte
	Width  int
	Height int
	Format PixelFormat
}

// Driver opens capture devices. Any backend that can acquire one frame or
// fail satisfies it.
type Driver interface {
	Open(cam config.Camera) (Device, error)
}

// Device is an open capture handle. Read blocks for at most the backend's
// own timeout.
type Device interface {
	Read() (RawFrame, error)
	Release() error
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(cam config.Camera) (Device, error)

func (f DriverFunc) Open(cam config.Camera) (Device, error) { return f(cam) }

// toRGB converts a raw frame into packed RGB.
func toRGB(f RawFrame) ([]byte, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("%w: empty frame %dx%d", ErrDeviceRead, f.Width, f.Height)
	}
	n := f.Width * f.Height
	if len(f.Data) < n*f.Format.bytesPerPixel() {
		return nil, fmt.Errorf("%w: short frame, %d bytes for %dx%d", ErrDeviceRead, len(f.Data), f.Width, f.Height)
	}

	out := make([]byte, n*3)
	switch f.Format {
	case FormatRGB:
		copy(out, f.Data[:n*3])
	case FormatBGR:
		for i := 0; i < n*3; i += 3 {
			out[i], out[i+1], out[i+2] = f.Data[i+2], f.Data[i+1], f.Data[i]
		}
	case FormatRGBA:
		for i, j := 0, 0; i < n*3; i, j = i+3, j+4 {
			out[i], out[i+1], out[i+2] = f.Data[j], f.Data[j+1], f.Data[j+2]
		}
	default:
		return nil, fmt.Errorf("%w: unknown pixel format %d", ErrDeviceRead, f.Format)
	}
	return out, nil
}
