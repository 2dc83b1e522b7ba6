package proginfo

import (
	"encoding/binary"
	"strings"

	"github.com/uf2boot/go-uf2boot/flash"
)

// Magic marks a live program-info record (and a valid boot command). Any
// other value in the magic slot means "no record".
const Magic = 0xE98CC638

// FilenameLen is the size of the filename field on parts that carry one.
// The stored name is blank padded, not NUL terminated.
const FilenameLen = 20

// Layout describes where the program-info record lives inside the
// application's vector table. The Cortex-M exception table has
// architecturally reserved slots the CPU never reads; the record is stashed
// there so it sits inside the first pages of the application and is written
// and erased together with them.
type Layout struct {
	// HoleOffset is the offset of the reserved hole from XIPBase
	HoleOffset uint32

	// HoleSize is the size of the hole in bytes
	HoleSize uint32

	// HasFilename reports whether the record includes a filename field
	HasFilename bool
}

// Vector-hole layouts per chip. The M0+ table has a 28-byte hole at 0x110;
// the M33 table only leaves 12 bytes at 0x20, too small for a filename.
var (
	LayoutRP2040 = Layout{HoleOffset: 0x110, HoleSize: 0x1C, HasFilename: true}
	LayoutRP2350 = Layout{HoleOffset: 0x20, HoleSize: 0x0C, HasFilename: false}
)

// Info is a decoded program-info record.
type Info struct {
	// FlashEnd is one past the last byte of flash the application may use
	FlashEnd uint32

	// Filename is the human label of the loaded image, if the layout
	// carries one
	Filename string
}

// recordSize returns the number of bytes the record occupies in the hole.
func (l Layout) recordSize() uint32 {
	if l.HasFilename {
		return 8 + FilenameLen
	}
	return 8
}

// Addr returns the absolute address of the record.
func (l Layout) Addr() uint32 { return flash.XIPBase + l.HoleOffset }

// Page returns the page-aligned address of the page containing the record.
func (l Layout) Page() uint32 { return flash.PageOf(l.Addr()) }

// ClearInBuf force-sets to 0xFF every byte of buf that falls inside the
// record slot, given that buf represents flash content starting at bufBase.
// Pages programmed during a load pass through here first, so the slot reads
// as "no record" from the first erase until the final commit.
func (l Layout) ClearInBuf(buf []byte, bufBase uint32) {
	lo, hi := l.Addr(), l.Addr()+l.recordSize()
	for a := lo; a < hi; a++ {
		if a >= bufBase && a-bufBase < uint32(len(buf)) {
			buf[a-bufBase] = 0xFF
		}
	}
}

// SetInBuf writes a live record into buf if buf covers the whole record
// slot, and reports whether it did. The filename is truncated or blank
// padded to its fixed width.
func (l Layout) SetInBuf(buf []byte, bufBase uint32, flashEnd uint32, filename string) bool {
	addr := l.Addr()
	if bufBase > addr || bufBase+uint32(len(buf)) < addr+l.recordSize() {
		return false
	}
	off := addr - bufBase
	binary.LittleEndian.PutUint32(buf[off:], Magic)
	binary.LittleEndian.PutUint32(buf[off+4:], flashEnd)
	if l.HasFilename {
		name := []byte(filename)
		if len(name) > FilenameLen {
			name = name[:FilenameLen]
		}
		for len(name) < FilenameLen {
			name = append(name, ' ')
		}
		copy(buf[off+8:], name)
	}
	return true
}

// Read decodes the record from flash. ok is false when no live record is
// present; err reports readback failures.
func (l Layout) Read(dev flash.Device) (info Info, ok bool, err error) {
	raw := make([]byte, l.recordSize())
	if err = dev.ReadAt(raw, l.Addr()); err != nil {
		return Info{}, false, err
	}
	if binary.LittleEndian.Uint32(raw) != Magic {
		return Info{}, false, nil
	}
	info.FlashEnd = binary.LittleEndian.Uint32(raw[4:])
	if l.HasFilename {
		info.Filename = strings.TrimRight(string(raw[8:8+FilenameLen]), " ")
	}
	return info, true, nil
}

// Valid reports whether a live record is present.
func (l Layout) Valid(dev flash.Device) bool {
	_, ok, err := l.Read(dev)
	return err == nil && ok
}

// Mirror is a RAM copy of the record, captured once at start of day. Later
// consumers (the loader UI, the dispatcher) read the mirror instead of
// flash, which may be unmapped while an update is in progress.
type Mirror struct {
	ok   bool
	info Info
}

// Capture reads the record and returns its mirror. A readback error is
// indistinguishable from "no record": either way there is no app to trust.
func (l Layout) Capture(dev flash.Device) Mirror {
	info, ok, err := l.Read(dev)
	if err != nil {
		return Mirror{}
	}
	return Mirror{ok: ok, info: info}
}

// Valid reports whether a live record was present at capture time.
func (m Mirror) Valid() bool { return m.ok }

// Info returns the captured record. Meaningful only when Valid.
func (m Mirror) Info() Info { return m.info }

// FlashEnd returns the captured application bound, or zero when no record
// was present. Zero is the "flashing forbidden" value downstream.
func (m Mirror) FlashEnd() uint32 {
	if !m.ok {
		return 0
	}
	return m.info.FlashEnd
}
