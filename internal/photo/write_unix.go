//go:build !windows

package photo

import (
	"fmt"
	"io"

	"github.com/google/renameio/v2"
)

// writeAtomic fsyncs a temp file next to path and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op once replaced

	if err := write(pending); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace: %w", err)
	}
	return nil
}
