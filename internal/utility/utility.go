// Package utility starts the camera vendor's helper program.
package utility

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// ErrLaunch is wrapped when the utility cannot be started.
var ErrLaunch = errors.New("could not launch utility")

// Launcher starts a fixed program without waiting for it.
type Launcher struct {
	Name string
	Args []string
	Log  zerolog.Logger
}

// New returns a launcher for the named program.
func New(name string, logger zerolog.Logger) *Launcher {
	return &Launcher{Name: name, Log: logger}
}

// Launch starts the program and returns once it is running. The exit status
// is only logged.
func (l *Launcher) Launch() error {
	if l.Name == "" {
		return fmt.Errorf("%w: no program configured", ErrLaunch)
	}
	cmd := exec.Command(l.Name, l.Args...)
	hideWindow(cmd)

	if err := cmd.Start(); err != nil {
		l.Log.Error().Err(err).Str("program", l.Name).Msg("utility launch failed")
		return fmt.Errorf("%w %s: %w", ErrLaunch, l.Name, err)
	}
	pid := cmd.Process.Pid
	l.Log.Info().Str("program", l.Name).Int("pid", pid).Msg("utility started")

	go func() {
		err := cmd.Wait()
		l.Log.Debug().Err(err).Int("pid", pid).Msg("utility exited")
	}()
	return nil
}
