// Package capture routes a camera configuration to the backend that can
// open it.
package capture

import (
	"errors"
	"fmt"

	"philipredstone/photocapture/internal/camera"
	"philipredstone/photocapture/internal/config"
)

var ErrNoBackend = errors.New("no capture backend for camera")

// Router is a camera.Driver that dispatches on the camera variant: IP
// cameras spoken to over http(s) go to the HTTP backend, USB devices and
// every other stream protocol to the native backend.
type Router struct {
	HTTP   camera.Driver
	Native camera.Driver
}

// NewRouter returns a router over the two backends. Either may be nil.
func NewRouter(http, native camera.Driver) *Router {
	return &Router{HTTP: http, Native: native}
}

// Backend reports which backend would open cam.
func (r *Router) Backend(cam config.Camera) (camera.Driver, error) {
	if err := cam.Validate(); err != nil {
		return nil, err
	}
	var drv camera.Driver
	switch scheme := cam.Scheme(); {
	case cam.IsIP() && (scheme == "http" || scheme == "https"):
		drv = r.HTTP
	default:
		drv = r.Native
	}
	if drv == nil {
		return nil, fmt.Errorf("%w %q", ErrNoBackend, cam.Redacted())
	}
	return drv, nil
}

func (r *Router) Open(cam config.Camera) (camera.Device, error) {
	drv, err := r.Backend(cam)
	if err != nil {
		return nil, err
	}
	return drv.Open(cam)
}
