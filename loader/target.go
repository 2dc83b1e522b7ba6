package loader

import (
	"github.com/uf2boot/go-uf2boot/flash"
	"github.com/uf2boot/go-uf2boot/proginfo"
	"github.com/uf2boot/go-uf2boot/uf2"
)

// Target is the per-chip capability the orchestrator programs against. The
// two concrete implementations differ in how the application bound is
// known, whether the second-stage boot stub must be preserved across an
// erase of sector 0, and how a finished image is committed.
type Target interface {
	// FlashEnd is one past the last byte the application may use. Zero
	// means the bound is unknown and flashing is forbidden.
	FlashEnd() uint32

	// FamilyValid reports whether a UF2 family ID belongs to this chip.
	FamilyValid(family uint32) bool

	// Layout is the vector-hole layout of the program-info record.
	Layout() proginfo.Layout

	// PreserveStub reports whether the first 256 bytes of flash hold a
	// boot stub that UF2 files do not supply and that must survive an
	// erase of sector 0.
	PreserveStub() bool

	// Commit makes the just-written image live. It runs only after every
	// block has been programmed and verified.
	Commit(dev flash.Device, filename string) error
}

// RP2040Target is the small-variant strategy: the application bound comes
// from a linker-provided symbol (mirrored into RAM at start of day and
// passed in here), sector 0 carries the boot stub, and commit reprograms
// the page holding the program-info record.
type RP2040Target struct {
	flashEnd uint32
}

// NewRP2040Target returns the RP2040 strategy with the given application
// bound.
func NewRP2040Target(flashEnd uint32) *RP2040Target {
	return &RP2040Target{flashEnd: flashEnd}
}

func (t *RP2040Target) FlashEnd() uint32 { return t.flashEnd }

func (t *RP2040Target) FamilyValid(family uint32) bool {
	return family == uf2.FamilyRP2040
}

func (t *RP2040Target) Layout() proginfo.Layout { return proginfo.LayoutRP2040 }

func (t *RP2040Target) PreserveStub() bool { return true }

// Commit installs the program-info record. The page holding the record is
// read back, the record is overlaid, and the page is reprogrammed in place.
// No erase is needed: the stream masked the record's bytes to all-ones in
// every page it programmed, so the overlay only ever clears bits.
//
// That masking only happens in pages the image covers. An image that starts
// above the record page leaves the slot's old bits in place and the overlay
// ANDs into them, so a stale record with a different flash end would yield
// a corrupt bound. The slot must read all-ones before Commit: either the
// image covers it (normal case, the record sits in the application's vector
// table) or it has never held a record since the last erase.
func (t *RP2040Target) Commit(dev flash.Device, filename string) error {
	layout := t.Layout()
	page := make([]byte, flash.PageSize)
	if err := dev.ReadAt(page, layout.Page()); err != nil {
		return err
	}
	layout.SetInBuf(page, layout.Page(), t.flashEnd, filename)
	return dev.ProgramPage(layout.Page(), page)
}

// RP2350Target is the large-variant strategy: the device the loader holds
// is an address-translation window onto the application partition, the
// bound is the partition size, and commit is implicit because the boot
// ROM's partition table is the source of truth.
type RP2350Target struct {
	partitionSize uint32
}

// NewRP2350Target returns the RP2350 strategy for a partition of the given
// size. The flash.Device handed to the Loader must already be the
// flash.Window mapping XIPBase onto that partition.
func NewRP2350Target(partitionSize uint32) *RP2350Target {
	return &RP2350Target{partitionSize: partitionSize}
}

func (t *RP2350Target) FlashEnd() uint32 {
	if t.partitionSize == 0 {
		return 0
	}
	return flash.XIPBase + t.partitionSize
}

func (t *RP2350Target) FamilyValid(family uint32) bool {
	switch family {
	case uf2.FamilyRP2350ARMS, uf2.FamilyRP2350RISCV, uf2.FamilyRP2350ARMNS:
		return true
	}
	return false
}

func (t *RP2350Target) Layout() proginfo.Layout { return proginfo.LayoutRP2350 }

func (t *RP2350Target) PreserveStub() bool { return false }

func (t *RP2350Target) Commit(dev flash.Device, filename string) error { return nil }
