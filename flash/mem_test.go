package flash

import (
	"bytes"
	"hash/crc32"
	"testing"
)

func TestEraseSetsOnes(t *testing.T) {
	d := NewMemDevice(XIPBase, 64*1024)

	page := bytes.Repeat([]byte{0x00}, PageSize)
	if err := d.ProgramPage(XIPBase+0x1000, page); err != nil {
		t.Fatalf("ProgramPage: %v", err)
	}

	// a one-byte erase still clears the whole sector
	if err := d.EraseRange(XIPBase+0x1000, 1); err != nil {
		t.Fatalf("EraseRange: %v", err)
	}

	got := make([]byte, SectorSize)
	if err := d.ReadAt(got, XIPBase+0x1000); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i, b := range got {
		if b != 0xFF {
			t.Fatalf("byte %d = 0x%02X after erase, want 0xFF", i, b)
		}
	}
}

func TestEraseAlignment(t *testing.T) {
	d := NewMemDevice(XIPBase, 64*1024)
	err := d.EraseRange(XIPBase+PageSize, SectorSize)
	if _, ok := err.(*AlignmentError); !ok {
		t.Errorf("EraseRange on page boundary = %v, want AlignmentError", err)
	}
}

func TestProgramOnlyClearsBits(t *testing.T) {
	d := NewMemDevice(XIPBase, 64*1024)
	addr := uint32(XIPBase + 0x2000)

	first := bytes.Repeat([]byte{0xF0}, PageSize)
	if err := d.ProgramPage(addr, first); err != nil {
		t.Fatalf("first program: %v", err)
	}

	// reprogramming with all-ones must not bring cleared bits back
	second := bytes.Repeat([]byte{0xFF}, PageSize)
	if err := d.ProgramPage(addr, second); err != nil {
		t.Fatalf("second program: %v", err)
	}

	got := make([]byte, PageSize)
	_ = d.ReadAt(got, addr)
	if !bytes.Equal(got, first) {
		t.Error("reprogram with 0xFF altered cleared bits")
	}

	// and further clearing works without an erase
	third := bytes.Repeat([]byte{0x30}, PageSize)
	if err := d.ProgramPage(addr, third); err != nil {
		t.Fatalf("third program: %v", err)
	}
	_ = d.ReadAt(got, addr)
	if got[0] != 0x30 {
		t.Errorf("byte = 0x%02X after AND-program, want 0x30", got[0])
	}
}

func TestProgramContract(t *testing.T) {
	d := NewMemDevice(XIPBase, 64*1024)

	if err := d.ProgramPage(XIPBase, make([]byte, PageSize-1)); err == nil {
		t.Error("short page accepted")
	} else if _, ok := err.(*PageSizeError); !ok {
		t.Errorf("short page error = %T, want PageSizeError", err)
	}

	if err := d.ProgramPage(XIPBase+1, make([]byte, PageSize)); err == nil {
		t.Error("unaligned program accepted")
	}
}

func TestBounds(t *testing.T) {
	d := NewMemDevice(XIPBase, 64*1024)

	err := d.ProgramPage(XIPBase+64*1024, make([]byte, PageSize))
	if _, ok := err.(*BoundsError); !ok {
		t.Errorf("program past end = %v, want BoundsError", err)
	}

	err = d.ReadAt(make([]byte, 16), XIPBase-16)
	if _, ok := err.(*BoundsError); !ok {
		t.Errorf("read below base = %v, want BoundsError", err)
	}
}

func TestProtectedRegion(t *testing.T) {
	d := NewMemDevice(XIPBase, 64*1024)
	d.Protect(XIPBase + 32*1024)

	err := d.EraseRange(XIPBase+32*1024-SectorSize, 2*SectorSize)
	if _, ok := err.(*ProtectedRangeError); !ok {
		t.Errorf("erase into protected region = %v, want ProtectedRangeError", err)
	}

	err = d.ProgramPage(XIPBase+32*1024, make([]byte, PageSize))
	if _, ok := err.(*ProtectedRangeError); !ok {
		t.Errorf("program in protected region = %v, want ProtectedRangeError", err)
	}

	// reads may still cross it
	if err := d.ReadAt(make([]byte, PageSize), XIPBase+32*1024); err != nil {
		t.Errorf("read in protected region: %v", err)
	}
}

func TestVerifyAndChecksum(t *testing.T) {
	d := NewMemDevice(XIPBase, 64*1024)
	want := bytes.Repeat([]byte{0x5A}, PageSize)
	if err := d.ProgramPage(XIPBase+0x400, want); err != nil {
		t.Fatalf("ProgramPage: %v", err)
	}

	ok, err := Verify(d, XIPBase+0x400, want)
	if err != nil || !ok {
		t.Errorf("Verify = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = Verify(d, XIPBase+0x500, want)
	if err != nil || ok {
		t.Errorf("Verify of erased flash = (%v, %v), want (false, nil)", ok, err)
	}

	sum, err := ChecksumRange(d, XIPBase+0x400, PageSize)
	if err != nil {
		t.Fatalf("ChecksumRange: %v", err)
	}
	if want := crc32.ChecksumIEEE(want); sum != want {
		t.Errorf("checksum = 0x%08X, want 0x%08X", sum, want)
	}
}

func TestAlignmentHelpers(t *testing.T) {
	if got := SectorOf(XIPBase + 0x40200); got != XIPBase+0x40000 {
		t.Errorf("SectorOf = 0x%08X, want 0x%08X", got, uint32(XIPBase+0x40000))
	}
	if got := PageOf(XIPBase + 0x1FF); got != XIPBase+0x100 {
		t.Errorf("PageOf = 0x%08X, want 0x%08X", got, uint32(XIPBase+0x100))
	}
	if got := SectorAlignUp(1); got != SectorSize {
		t.Errorf("SectorAlignUp(1) = %d, want %d", got, SectorSize)
	}
	if got := SectorAlignUp(2 * SectorSize); got != 2*SectorSize {
		t.Errorf("SectorAlignUp on a boundary = %d, want unchanged", got)
	}
}

func TestObserver(t *testing.T) {
	d := NewMemDevice(XIPBase, 64*1024)
	var ops []string
	d.Observer = func(op string, addr, size uint32) { ops = append(ops, op) }

	_ = d.EraseRange(XIPBase, SectorSize)
	_ = d.ProgramPage(XIPBase, make([]byte, PageSize))
	_ = d.ReadAt(make([]byte, 16), XIPBase)

	if len(ops) != 2 || ops[0] != "erase" || ops[1] != "program" {
		t.Errorf("observed ops = %v, want [erase program]", ops)
	}
}
