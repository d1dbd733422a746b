// Package mjpeg captures frames from HTTP cameras, either from a
// multipart/x-mixed-replace MJPEG stream or by polling a JPEG snapshot URL.
package mjpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"philipredstone/photocapture/internal/camera"
	"philipredstone/photocapture/internal/config"
)

var (
	ErrContentType = errors.New("unexpected content type")
	ErrStreamEnded = errors.New("stream ended")
)

// Options tunes the HTTP backend.
type Options struct {
	// ConnectTimeout bounds the initial request until response headers.
	ConnectTimeout time.Duration
	// FrameTimeout bounds every single frame read.
	FrameTimeout time.Duration
	Logger       zerolog.Logger
}

// Driver opens HTTP camera devices.
type Driver struct {
	connectTimeout time.Duration
	frameTimeout   time.Duration
	client         *http.Client
	log            zerolog.Logger
}

// New returns an HTTP capture driver.
func New(opts Options) *Driver {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = 3 * time.Second
	}
	return &Driver{
		connectTimeout: opts.ConnectTimeout,
		frameTimeout:   opts.FrameTimeout,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: opts.ConnectTimeout,
			},
		},
		log: opts.Logger,
	}
}

func newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "multipart/x-mixed-replace, image/jpeg")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")
	return req, nil
}

// Open connects to the camera and inspects the content type to pick the
// stream or snapshot device.
func (d *Driver) Open(cam config.Camera) (camera.Device, error) {
	if !cam.IsIP() {
		return nil, fmt.Errorf("%w: not an IP camera", config.ErrInvalidCamera)
	}
	url := cam.StreamURI()
	d.log.Debug().Str("url", cam.Redacted()).Msg("connecting")

	ctx, cancel := context.WithCancel(context.Background())
	req, err := newRequest(ctx, url)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w %q: %w", ErrContentType, contentType, err)
	}

	switch {
	case mediaType == "multipart/x-mixed-replace":
		boundary := params["boundary"]
		if boundary == "" {
			resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("%w: missing multipart boundary", ErrContentType)
		}
		d.log.Info().Str("url", cam.Redacted()).Msg("MJPEG stream established")
		return &streamDevice{
			body:    resp.Body,
			reader:  multipart.NewReader(resp.Body, strings.Trim(boundary, `"`)),
			cancel:  cancel,
			timeout: d.frameTimeout,
		}, nil

	case mediaType == "image/jpeg" || mediaType == "image/jpg":
		// the first response already holds a frame
		first, err := decodeJPEG(resp.Body)
		resp.Body.Close()
		cancel()
		if err != nil {
			return nil, err
		}
		d.log.Info().Str("url", cam.Redacted()).Msg("JPEG snapshot endpoint established")
		return &snapshotDevice{
			client:  d.client,
			url:     url,
			timeout: d.frameTimeout,
			pending: &first,
		}, nil

	default:
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: %s", ErrContentType, contentType)
	}
}

// streamDevice reads one multipart part per frame.
type streamDevice struct {
	body    io.ReadCloser
	reader  *multipart.Reader
	cancel  context.CancelFunc
	timeout time.Duration
	buf     bytes.Buffer
}

func (s *streamDevice) Read() (camera.RawFrame, error) {
	// a stalled stream is cut off by cancelling the request
	timer := time.AfterFunc(s.timeout, s.cancel)
	defer timer.Stop()

	for {
		part, err := s.reader.NextPart()
		if err == io.EOF {
			return camera.RawFrame{}, ErrStreamEnded
		}
		if err != nil {
			return camera.RawFrame{}, fmt.Errorf("error reading part: %w", err)
		}

		if ct := part.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			part.Close()
			continue
		}

		s.buf.Reset()
		_, err = io.Copy(&s.buf, part)
		part.Close()
		if err != nil {
			return camera.RawFrame{}, fmt.Errorf("error copying part data: %w", err)
		}
		return decodeJPEG(bytes.NewReader(s.buf.Bytes()))
	}
}

func (s *streamDevice) Release() error {
	s.cancel()
	return s.body.Close()
}

// snapshotDevice issues one GET per frame.
type snapshotDevice struct {
	client  *http.Client
	url     string
	timeout time.Duration
	pending *camera.RawFrame
}

func (s *snapshotDevice) Read() (camera.RawFrame, error) {
	if s.pending != nil {
		f := *s.pending
		s.pending = nil
		return f, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := newRequest(ctx, s.url)
	if err != nil {
		return camera.RawFrame{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return camera.RawFrame{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return camera.RawFrame{}, fmt.Errorf("bad status: %s", resp.Status)
	}
	return decodeJPEG(resp.Body)
}

func (s *snapshotDevice) Release() error {
	s.pending = nil
	return nil
}

func decodeJPEG(r io.Reader) (camera.RawFrame, error) {
	img, err := jpeg.Decode(r)
	if err != nil {
		return camera.RawFrame{}, fmt.Errorf("error decoding JPEG: %w", err)
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return camera.RawFrame{
		Data:   rgba.Pix,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: camera.FormatRGBA,
	}, nil
}
