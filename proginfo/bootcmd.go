package proginfo

// Mode tells the boot dispatcher what to do on the next reset.
type Mode uint32

const (
	// ModeDefault boots the flashed application if one is present
	ModeDefault Mode = iota

	// ModeSD loads the loader UI from the SD card
	ModeSD

	// ModeUpdate enters USB firmware-recovery mode
	ModeUpdate

	// ModeRAM runs the file named by the command argument from RAM
	ModeRAM
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeSD:
		return "sd"
	case ModeUpdate:
		return "update"
	case ModeRAM:
		return "ram"
	default:
		return "unknown"
	}
}

// Scratch is three 32-bit words that survive a warm reset. On hardware these
// are the watchdog scratch registers; tests and host tooling use Words.
type Scratch interface {
	Get(i int) uint32
	Set(i int, v uint32)
}

// Words is an in-memory Scratch.
type Words [3]uint32

func (w *Words) Get(i int) uint32    { return w[i] }
func (w *Words) Set(i int, v uint32) { w[i] = v }

// SetCommand stores a boot command for the next reset. The validity tag is
// written last, so a reset in the middle of SetCommand never leaves a valid
// half-written command.
func SetCommand(s Scratch, mode Mode, arg uint32) {
	s.Set(1, uint32(mode))
	s.Set(2, arg)
	s.Set(0, Magic)
}

// TakeCommand reads the pending boot command, if any, and clears the
// validity tag so the command never repeats on the following reboot.
func TakeCommand(s Scratch) (mode Mode, arg uint32, ok bool) {
	if s.Get(0) != Magic {
		return 0, 0, false
	}
	s.Set(0, 0)
	return Mode(s.Get(1)), s.Get(2), true
}
