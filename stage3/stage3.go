// Package stage3 holds the boot-dispatch decision: on every reset the
// stage-3 stub consumes the pending boot command, checks whether a valid
// application is installed, and picks what to run. The launch mechanics
// (vector table switch, ROM chain-image call) are hardware and live with
// the platform glue; the policy is here where it can be tested.
package stage3

import (
	"github.com/uf2boot/go-uf2boot/flash"
	"github.com/uf2boot/go-uf2boot/proginfo"
)

// Action is what stage-3 should run next.
type Action int

const (
	// LaunchApp jumps into the flashed application
	LaunchApp Action = iota

	// LaunchUI loads the loader UI from the SD card
	LaunchUI

	// USBRecovery reboots into the ROM's USB firmware-recovery mode
	USBRecovery

	// RunFromRAM copies the file named by Arg into RAM and runs it there
	RunFromRAM
)

func (a Action) String() string {
	switch a {
	case LaunchApp:
		return "launch app"
	case LaunchUI:
		return "launch ui"
	case USBRecovery:
		return "usb recovery"
	case RunFromRAM:
		return "run from ram"
	default:
		return "unknown"
	}
}

// Decision is the dispatch outcome. Arg carries the mode-specific argument
// of the boot command (for RunFromRAM, a pointer to the file name).
type Decision struct {
	Action Action
	Arg    uint32
}

// Dispatch consumes the boot command (clearing its validity tag so it never
// repeats) and decides what to run. With no command, or an explicit
// default, the flashed application runs iff the program-info record is
// live; otherwise the loader UI comes up.
func Dispatch(scratch proginfo.Scratch, dev flash.Device, layout proginfo.Layout) Decision {
	mode, arg, ok := proginfo.TakeCommand(scratch)
	if !ok {
		mode = proginfo.ModeDefault
	}

	switch mode {
	case proginfo.ModeSD:
		return Decision{Action: LaunchUI}
	case proginfo.ModeUpdate:
		return Decision{Action: USBRecovery}
	case proginfo.ModeRAM:
		return Decision{Action: RunFromRAM, Arg: arg}
	}

	if layout.Valid(dev) {
		return Decision{Action: LaunchApp}
	}
	return Decision{Action: LaunchUI}
}
