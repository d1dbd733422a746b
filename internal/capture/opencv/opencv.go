// Package opencv captures frames from USB devices and RTSP (or any other
// FFmpeg-readable) streams through OpenCV.
package opencv

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"philipredstone/photocapture/internal/camera"
	"philipredstone/photocapture/internal/config"
)

var ErrNotOpened = errors.New("video capture did not open")

// Driver opens OpenCV video captures.
type Driver struct {
	log zerolog.Logger
}

// New returns an OpenCV capture driver.
func New(logger zerolog.Logger) *Driver {
	return &Driver{log: logger}
}

func (d *Driver) Open(cam config.Camera) (camera.Device, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	switch {
	case cam.IsUSB():
		api := gocv.VideoCaptureAny
		if runtime.GOOS == "windows" {
			api = gocv.VideoCaptureDshow
		}
		vc, err = gocv.OpenVideoCaptureWithAPI(cam.USB.DeviceIndex, api)
	case cam.IsIP():
		vc, err = gocv.OpenVideoCapture(cam.StreamURI())
	default:
		return nil, config.ErrInvalidCamera
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cam.Redacted(), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotOpened, cam.Redacted())
	}

	d.log.Info().Str("stream", cam.Redacted()).Msg("video capture opened")
	return &device{vc: vc, mat: gocv.NewMat(), bgr: gocv.NewMat()}, nil
}

// device reuses its matrices between reads.
type device struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
	bgr gocv.Mat
}

func (d *device) Read() (camera.RawFrame, error) {
	if ok := d.vc.Read(&d.mat); !ok {
		return camera.RawFrame{}, errors.New("cannot read frame")
	}
	if d.mat.Empty() {
		return camera.RawFrame{}, errors.New("frame is empty")
	}

	src := d.mat
	switch d.mat.Channels() {
	case 3:
	case 1:
		gocv.CvtColor(d.mat, &d.bgr, gocv.ColorGrayToBGR)
		src = d.bgr
	case 4:
		gocv.CvtColor(d.mat, &d.bgr, gocv.ColorBGRAToBGR)
		src = d.bgr
	default:
		return camera.RawFrame{}, fmt.Errorf("unsupported channel count %d", d.mat.Channels())
	}

	return camera.RawFrame{
		Data:   src.ToBytes(),
		Width:  src.Cols(),
		Height: src.Rows(),
		Format: camera.FormatBGR,
	}, nil
}

func (d *device) Release() error {
	err := d.vc.Close()
	d.mat.Close()
	d.bgr.Close()
	return err
}
