package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvConfig         = "PHOTOCAPTURE_CONFIG"
	EnvCamera         = "PHOTOCAPTURE_CAMERA"
	EnvPhotoFile      = "PHOTOCAPTURE_PHOTO_FILE"
	EnvFrameWidth     = "PHOTOCAPTURE_FRAME_WIDTH"
	EnvCameraPassword = "PHOTOCAPTURE_CAMERA_PASSWORD"
	EnvUtility        = "PHOTOCAPTURE_UTILITY"
	EnvLogLevel       = "LOG_LEVEL"
)

// LoadDotEnv loads variables from the given .env files (".env" when none are
// named). A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := Decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode merges YAML from r into cfg, rejecting unknown fields.
func Decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	// presets in the file replace the built-in samples
	fileCfg := *cfg
	fileCfg.Cameras = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		return err
	}
	if fileCfg.Cameras == nil {
		fileCfg.Cameras = cfg.Cameras
	}
	*cfg = fileCfg
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvCamera)); v != "" {
		cfg.Camera = v
	}
	if v := strings.TrimSpace(getenv(EnvPhotoFile)); v != "" {
		cfg.PhotoFile = v
	}
	if v := strings.TrimSpace(getenv(EnvUtility)); v != "" {
		cfg.Utility = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvFrameWidth)); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvFrameWidth, v, err)
		}
		cfg.FrameWidth = w
	}
	if v := getenv(EnvCameraPassword); v != "" {
		cam, ok := cfg.Cameras[cfg.Camera]
		if ok && cam.IP != nil {
			ip := *cam.IP
			ip.Password = v
			cam.IP = &ip
			cfg.Cameras[cfg.Camera] = cam
		}
	}
	return nil
}
