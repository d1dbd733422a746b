// Package photo writes a captured photo to disk.
package photo

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"
)

// ErrSave is wrapped by every Save failure.
var ErrSave = errors.New("could not save photo")

// JPEGQuality is used for .jpg and .jpeg targets.
const JPEGQuality = 95

// Save encodes img by the extension of path (PNG unless .jpg/.jpeg) and
// replaces path atomically.
func Save(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: no image", ErrSave)
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrSave)
	}
	if err := writeAtomic(path, func(w io.Writer) error { return encode(w, path, img) }); err != nil {
		return fmt.Errorf("%w to %s: %w", ErrSave, path, err)
	}
	return nil
}

// Saver adapts Save to the session's saver interface.
type Saver struct{}

func (Saver) Save(path string, img image.Image) error { return Save(path, img) }

func encode(w io.Writer, path string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	default:
		return png.Encode(w, img)
	}
}
