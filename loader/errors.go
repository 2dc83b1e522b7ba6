package loader

import (
	"errors"
	"fmt"
)

// Result classifies the outcome of a load. The three failure kinds are kept
// distinct because the UI must tell "wrong file for this board" apart from
// "corrupt file": users react differently to each.
type Result int

const (
	// Loaded means the file was fully programmed and committed
	Loaded Result = iota

	// WrongPlatform means a well-formed UF2 had no blocks for this chip;
	// nothing was written
	WrongPlatform

	// Bad means the block stream violated an invariant; flash may be
	// partially written but the program-info slot reads as "no app"
	Bad

	// Unknown means an I/O or flash driver failure; same post-condition
	// as Bad
	Unknown
)

func (r Result) String() string {
	switch r {
	case Loaded:
		return "loaded"
	case WrongPlatform:
		return "wrong platform"
	case Bad:
		return "bad file"
	case Unknown:
		return "unknown error"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// ErrInvalidLoader means the loader's own flash bound is unknown. Flashing
// without it is forbidden: the application region cannot be bounded.
var ErrInvalidLoader = errors.New("invalid loader state: flash end unknown")

// VerificationError indicates a programmed page that read back differently.
type VerificationError struct {
	Addr uint32
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify failed: page at 0x%08X does not match programmed data", e.Addr)
}
