package flash

import (
	"bytes"
	"hash/crc32"
)

// Geometry of the on-package NOR flash.
const (
	// PageSize is the minimum programmable unit; programs can only clear bits
	PageSize = 256

	// SectorSize is the minimum erasable unit; erase restores all bits to 1
	SectorSize = 4096

	// StubSize is the size of the second-stage boot stub at the base of flash
	StubSize = 256

	// XIPBase is the virtual address flash is mapped at in the code space
	XIPBase = 0x10000000
)

// Device is the flash driver contract. Addresses are virtual (XIP) addresses;
// on parts with an address-translation window the translation is applied
// below this interface.
//
// On-device implementations must be resident in RAM for the duration of
// EraseRange and ProgramPage, with interrupts disabled: executing from flash
// while it is being modified is undefined on this class of part. Host-side
// implementations carry no such constraint.
type Device interface {
	// EraseRange erases [addr, addr+size) rounded up to sector granularity.
	// addr must be sector aligned. All bytes in the rounded range read as
	// 0xFF afterwards.
	EraseRange(addr, size uint32) error

	// ProgramPage programs exactly one page at the page-aligned addr.
	// Programming can only clear bits; setting a 0 bit back to 1 without a
	// prior erase is the caller's bug and is not detected here.
	ProgramPage(addr uint32, page []byte) error

	// ReadAt fills buf from flash starting at addr.
	ReadAt(buf []byte, addr uint32) error
}

// Verify reports whether flash content at addr equals want, byte by byte.
func Verify(dev Device, addr uint32, want []byte) (bool, error) {
	got := make([]byte, len(want))
	if err := dev.ReadAt(got, addr); err != nil {
		return false, err
	}
	return bytes.Equal(got, want), nil
}

// ChecksumRange returns the IEEE CRC32 of [addr, addr+size), for bulk
// verification of programmed images.
func ChecksumRange(dev Device, addr, size uint32) (uint32, error) {
	buf := make([]byte, size)
	if err := dev.ReadAt(buf, addr); err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(buf), nil
}

// SectorAlignUp rounds n up to the next sector boundary.
func SectorAlignUp(n uint32) uint32 {
	return (n + SectorSize - 1) &^ (SectorSize - 1)
}

// PageOf returns the page-aligned address of the page containing addr.
func PageOf(addr uint32) uint32 {
	return addr &^ (PageSize - 1)
}

// SectorOf returns the sector-aligned address of the sector containing addr.
func SectorOf(addr uint32) uint32 {
	return addr &^ (SectorSize - 1)
}
