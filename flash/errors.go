package flash

import "fmt"

// AlignmentError indicates an address that violates the alignment contract
// of the attempted operation.
type AlignmentError struct {
	Op    string
	Addr  uint32
	Align uint32
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%s: address 0x%08X is not %d-byte aligned", e.Op, e.Addr, e.Align)
}

// BoundsError indicates an operation that falls outside the device.
type BoundsError struct {
	Op   string
	Addr uint32
	Size uint32
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: [0x%08X, 0x%08X) is outside the device", e.Op, e.Addr, e.Addr+e.Size)
}

// ProtectedRangeError indicates an erase or program that would touch the
// region the loader itself lives in.
type ProtectedRangeError struct {
	Op    string
	Addr  uint32
	Size  uint32
	Start uint32
}

func (e *ProtectedRangeError) Error() string {
	return fmt.Sprintf("%s: [0x%08X, 0x%08X) crosses into the protected region at 0x%08X",
		e.Op, e.Addr, e.Addr+e.Size, e.Start)
}

// PageSizeError indicates a program buffer that is not exactly one page.
type PageSizeError struct {
	Got int
}

func (e *PageSizeError) Error() string {
	return fmt.Sprintf("program buffer must be exactly %d bytes, got %d", PageSize, e.Got)
}
