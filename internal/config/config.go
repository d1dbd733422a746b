// Package config loads the photo-capture settings from a YAML file, the
// environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoCamera      = errors.New("no camera selected")
	ErrUnknownCamera = errors.New("unknown camera preset")
	ErrInvalidCamera = errors.New("camera preset must define exactly one of ip or usb")
)

// Frames arrive roughly every 20ms and the poller ticks five times per frame
// interval.
const (
	DefaultFrameInterval = 20 * time.Millisecond
	DefaultPollInterval  = DefaultFrameInterval / 5
	DefaultWorkerIdle    = DefaultFrameInterval
	DefaultDialogTick    = 200 * time.Millisecond
	DefaultCloseTimeout  = 5 * time.Second
	DefaultCloseDelay    = 500 * time.Millisecond
	DefaultFrameWidth    = 1200
	DefaultStatusWidth   = 1200
	DefaultPhotoFile     = "photo.png"
	DefaultUtility       = "IPUtility.exe"
	DefaultNameSuffix    = " Camera #1"
)

// IPCamera is a network camera reached through a stream URI.
type IPCamera struct {
	Protocol string `yaml:"protocol"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Host     string `yaml:"host"`
	Path     string `yaml:"path,omitempty"`
}

// USBCamera is a locally attached camera addressed by device index.
type USBCamera struct {
	DeviceIndex int `yaml:"device_index"`
}

// Camera is a tagged variant: exactly one of IP or USB is set.
type Camera struct {
	Name string     `yaml:"name,omitempty"`
	IP   *IPCamera  `yaml:"ip,omitempty"`
	USB  *USBCamera `yaml:"usb,omitempty"`
}

// IsIP reports whether the camera is a network camera.
func (c Camera) IsIP() bool { return c.IP != nil }

// IsUSB reports whether the camera is a USB device.
func (c Camera) IsUSB() bool { return c.USB != nil }

// Validate checks the variant invariant.
func (c Camera) Validate() error {
	if (c.IP == nil) == (c.USB == nil) {
		return ErrInvalidCamera
	}
	if c.IP != nil {
		if strings.TrimSpace(c.IP.Host) == "" {
			return fmt.Errorf("%w: ip camera host is empty", ErrInvalidCamera)
		}
		if strings.TrimSpace(c.IP.Protocol) == "" {
			return fmt.Errorf("%w: ip camera protocol is empty", ErrInvalidCamera)
		}
	}
	if c.USB != nil && c.USB.DeviceIndex < 0 {
		return fmt.Errorf("%w: negative usb device index %d", ErrInvalidCamera, c.USB.DeviceIndex)
	}
	return nil
}

// Scheme returns the lower-cased protocol of an IP camera without "://".
func (c Camera) Scheme() string {
	if c.IP == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(c.IP.Protocol), "://"))
}

// StreamURI composes the address the capture backend opens: a URI for IP
// cameras, the decimal device index for USB cameras.
func (c Camera) StreamURI() string {
	switch {
	case c.IP != nil:
		u := url.URL{
			Scheme: c.Scheme(),
			Host:   c.IP.Host,
			Path:   c.IP.Path,
		}
		if u.Path != "" && !strings.HasPrefix(u.Path, "/") {
			u.Path = "/" + u.Path
		}
		switch {
		case c.IP.Username != "" && c.IP.Password != "":
			u.User = url.UserPassword(c.IP.Username, c.IP.Password)
		case c.IP.Username != "":
			u.User = url.User(c.IP.Username)
		}
		return u.String()
	case c.USB != nil:
		return strconv.Itoa(c.USB.DeviceIndex)
	}
	return ""
}

// Redacted is StreamURI with the password masked, for logging.
func (c Camera) Redacted() string {
	if c.IP == nil || c.IP.Password == "" {
		return c.StreamURI()
	}
	masked := c
	ip := *c.IP
	ip.Password = "xxxxx"
	masked.IP = &ip
	return masked.StreamURI()
}

// Timing holds every polling interval so tests can run them accelerated.
type Timing struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	WorkerIdle   time.Duration `yaml:"worker_idle"`
	DialogTick   time.Duration `yaml:"dialog_tick"`
	CloseTimeout time.Duration `yaml:"close_timeout"`
	CloseDelay   time.Duration `yaml:"close_delay"`
}

// Config is the complete application configuration.
type Config struct {
	Camera      string            `yaml:"camera"`
	NameSuffix  string            `yaml:"name_suffix"`
	Cameras     map[string]Camera `yaml:"cameras"`
	PhotoFile   string            `yaml:"photo_file"`
	FrameWidth  int               `yaml:"frame_width"`
	StatusWidth int               `yaml:"status_width"`
	AutoCapture bool              `yaml:"auto_capture"`
	Utility     string            `yaml:"utility"`
	LogLevel    string            `yaml:"log_level"`
	Timing      Timing            `yaml:"timing"`
}

// Default returns the built-in configuration, including the two sample
// presets the tool has always shipped with.
func Default() Config {
	return Config{
		Camera:     "usb",
		NameSuffix: DefaultNameSuffix,
		Cameras: map[string]Camera{
			"axis": {
				Name: "Axis IP Camera",
				IP: &IPCamera{
					Protocol: "rtsp",
					Username: "root",
					Host:     "192.168.10.171",
					Path:     "/axis-media/media.amp",
				},
			},
			"usb": {
				Name: "USB Camera",
				USB:  &USBCamera{DeviceIndex: 0},
			},
		},
		PhotoFile:   DefaultPhotoFile,
		FrameWidth:  DefaultFrameWidth,
		StatusWidth: DefaultStatusWidth,
		Utility:     DefaultUtility,
		Timing: Timing{
			PollInterval: DefaultPollInterval,
			WorkerIdle:   DefaultWorkerIdle,
			DialogTick:   DefaultDialogTick,
			CloseTimeout: DefaultCloseTimeout,
			CloseDelay:   DefaultCloseDelay,
		},
	}
}

// Selected returns the active camera preset.
func (c Config) Selected() (Camera, error) {
	if strings.TrimSpace(c.Camera) == "" {
		return Camera{}, ErrNoCamera
	}
	cam, ok := c.Cameras[c.Camera]
	if !ok {
		return Camera{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownCamera, c.Camera, strings.Join(c.PresetNames(), ", "))
	}
	if cam.Name == "" {
		cam.Name = c.Camera
	}
	return cam, nil
}

// PresetNames lists the configured presets in stable order.
func (c Config) PresetNames() []string {
	names := make([]string, 0, len(c.Cameras))
	for name := range c.Cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Title is the caption of the live view: camera name plus suffix.
func (c Config) Title() string {
	cam, err := c.Selected()
	if err != nil {
		return c.Camera + c.NameSuffix
	}
	return cam.Name + c.NameSuffix
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	cam, err := c.Selected()
	if err != nil {
		return err
	}
	if err := cam.Validate(); err != nil {
		return fmt.Errorf("camera %q: %w", c.Camera, err)
	}
	if strings.TrimSpace(c.PhotoFile) == "" {
		return errors.New("photo_file is empty")
	}
	if c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", c.FrameWidth)
	}
	if c.StatusWidth <= 0 {
		return fmt.Errorf("status_width must be positive, got %d", c.StatusWidth)
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"timing.poll_interval", c.Timing.PollInterval},
		{"timing.worker_idle", c.Timing.WorkerIdle},
		{"timing.dialog_tick", c.Timing.DialogTick},
		{"timing.close_timeout", c.Timing.CloseTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.d)
		}
	}
	if c.Timing.CloseDelay < 0 {
		return fmt.Errorf("timing.close_delay must not be negative, got %s", c.Timing.CloseDelay)
	}
	return nil
}
