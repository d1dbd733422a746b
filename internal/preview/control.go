// Package preview drives the live-view state from the camera frame queue:
// one message per tick, derived button enablement and the held photo.
package preview

import "fmt"

// Control identifies a button of the capture window.
type Control int

const (
	ControlTakePhoto Control = iota
	ControlSavePhoto
	ControlDiscardPhoto
	ControlReconnect
	ControlUtility
)

// Controls lists every control in display order.
var Controls = []Control{
	ControlTakePhoto,
	ControlSavePhoto,
	ControlDiscardPhoto,
	ControlReconnect,
	ControlUtility,
}

// Label is the button caption.
func (c Control) Label() string {
	switch c {
	case ControlTakePhoto:
		return "Take Photo"
	case ControlSavePhoto:
		return "Save Photo"
	case ControlDiscardPhoto:
		return "Discard Photo"
	case ControlReconnect:
		return "Re-connect Camera"
	case ControlUtility:
		return "IP Camera Utility"
	default:
		return fmt.Sprintf("control(%d)", int(c))
	}
}

func (c Control) String() string { return c.Label() }

// InitiallyEnabled reports the enablement before any frame has arrived.
func (c Control) InitiallyEnabled() bool {
	return c == ControlUtility
}
