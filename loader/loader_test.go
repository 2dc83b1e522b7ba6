package loader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uf2boot/go-uf2boot/flash"
	"github.com/uf2boot/go-uf2boot/proginfo"
	"github.com/uf2boot/go-uf2boot/uf2"
)

const (
	testFlashEnd = 0x10100000 // 1 MiB application area, loader above
	appBase      = 0x10040000
	vectorBase   = 0x10000100 // canonical application base on the RP2040
)

func newDevice() *flash.MemDevice {
	d := flash.NewMemDevice(flash.XIPBase, 2<<20)
	d.Protect(testFlashEnd)
	return d
}

func stubPattern() []byte {
	stub := make([]byte, flash.StubSize)
	for i := range stub {
		stub[i] = byte(i) ^ 0x5A
	}
	return stub
}

// installStub programs the second-stage boot stub the way the device ships.
func installStub(t *testing.T, d *flash.MemDevice) []byte {
	t.Helper()
	stub := stubPattern()
	if err := d.ProgramPage(flash.XIPBase, stub); err != nil {
		t.Fatalf("install stub: %v", err)
	}
	return stub
}

// installProgInfo plants a live record, simulating an already-flashed app.
func installProgInfo(t *testing.T, d *flash.MemDevice) {
	t.Helper()
	page := bytes.Repeat([]byte{0xFF}, flash.PageSize)
	proginfo.LayoutRP2040.SetInBuf(page, proginfo.LayoutRP2040.Page(), testFlashEnd, "OLD.UF2")
	if err := d.ProgramPage(proginfo.LayoutRP2040.Page(), page); err != nil {
		t.Fatalf("install proginfo: %v", err)
	}
}

func pageOf(b byte) []byte {
	return bytes.Repeat([]byte{b}, flash.PageSize)
}

// imageBlocks builds the blocks of a well-formed image.
func imageBlocks(base uint32, family uint32, payloads ...[]byte) []*uf2.Block {
	n := uint32(len(payloads))
	blocks := make([]*uf2.Block, 0, n)
	for i, p := range payloads {
		blocks = append(blocks, uf2.NewBlock(uint32(i), n, base+uint32(i)*flash.PageSize, p, family))
	}
	return blocks
}

func uf2File(t *testing.T, blocks ...*uf2.Block) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, b := range blocks {
		raw, err := b.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal block: %v", err)
		}
		buf.Write(raw)
	}
	return buf.Bytes()
}

func load(t *testing.T, d *flash.MemDevice, file []byte, opts ...Option) (Result, error) {
	t.Helper()
	l := New(d, NewRP2040Target(testFlashEnd), opts...)
	return l.Load(context.Background(), bytes.NewReader(file), "APP.UF2")
}

func TestLoadWholeImage(t *testing.T) {
	d := newDevice()
	payloads := [][]byte{pageOf(0x40), pageOf(0x41), pageOf(0x42), pageOf(0x43)}
	file := uf2File(t, imageBlocks(appBase, uf2.FamilyRP2040, payloads...)...)

	result, err := load(t, d, file)
	if result != Loaded || err != nil {
		t.Fatalf("Load = (%v, %v), want (loaded, nil)", result, err)
	}

	got := make([]byte, 4*flash.PageSize)
	if err := d.ReadAt(got, appBase); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, bytes.Join(payloads, nil)) {
		t.Error("flash content does not match the concatenated payloads")
	}

	info, ok, err := proginfo.LayoutRP2040.Read(d)
	if err != nil || !ok {
		t.Fatalf("proginfo after load = (%v, %v, %v), want live record", info, ok, err)
	}
	if info.FlashEnd != testFlashEnd {
		t.Errorf("recorded flash end = 0x%08X, want 0x%08X", info.FlashEnd, uint32(testFlashEnd))
	}
	if info.Filename != "APP.UF2" {
		t.Errorf("recorded filename = %q, want APP.UF2", info.Filename)
	}
}

func TestLoadFileRecordsBaseName(t *testing.T) {
	d := newDevice()
	file := uf2File(t, imageBlocks(appBase, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41))...)

	// the UI hands over the full path of the file on the card; only the
	// name itself fits the record
	path := filepath.Join(t.TempDir(), "sd", "firmware", "APP.UF2")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, file, 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(d, NewRP2040Target(testFlashEnd))
	result, err := l.LoadFile(context.Background(), path)
	if result != Loaded || err != nil {
		t.Fatalf("LoadFile = (%v, %v), want (loaded, nil)", result, err)
	}

	info, ok, err := proginfo.LayoutRP2040.Read(d)
	if err != nil || !ok {
		t.Fatalf("proginfo after load = (%v, %v, %v), want live record", info, ok, err)
	}
	if info.Filename != "APP.UF2" {
		t.Errorf("recorded filename = %q, want %q", info.Filename, "APP.UF2")
	}
}

func TestLoadCorruptBlock(t *testing.T) {
	d := newDevice()
	blocks := imageBlocks(appBase, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41), pageOf(0x42), pageOf(0x43))
	blocks[2].MagicEnd = 0xDEADBEEF

	result, err := load(t, d, uf2File(t, blocks...))
	if result != Bad || err == nil {
		t.Fatalf("Load = (%v, %v), want (bad, magic error)", result, err)
	}

	if proginfo.LayoutRP2040.Valid(d) {
		t.Error("program-info record live after a failed load")
	}
}

func TestLoadWrongPlatform(t *testing.T) {
	d := newDevice()
	var mutations int
	d.Observer = func(op string, addr, size uint32) { mutations++ }

	file := uf2File(t, imageBlocks(appBase, 0x00000001,
		pageOf(0x40), pageOf(0x41), pageOf(0x42), pageOf(0x43))...)

	result, err := load(t, d, file)
	if result != WrongPlatform {
		t.Fatalf("Load = (%v, %v), want wrong platform", result, err)
	}
	if mutations != 0 {
		t.Errorf("%d flash mutations for a foreign-platform file, want 0", mutations)
	}
}

func TestLoadMalformedErratumPrefix(t *testing.T) {
	d := newDevice()

	var buf bytes.Buffer
	// workaround block with the payload blocks folded into its numbering
	if err := uf2.WriteErratumBlock(&buf, 3); err != nil {
		t.Fatalf("WriteErratumBlock: %v", err)
	}
	for i, p := range [][]byte{pageOf(0x11), pageOf(0x22)} {
		b := uf2.NewBlock(uint32(i+1), 3, appBase+uint32(i)*flash.PageSize, p, uf2.FamilyRP2040)
		raw, _ := b.MarshalBinary()
		buf.Write(raw)
	}

	result, err := load(t, d, buf.Bytes())
	if result != Loaded || err != nil {
		t.Fatalf("Load = (%v, %v), want (loaded, nil)", result, err)
	}

	got := make([]byte, 2*flash.PageSize)
	_ = d.ReadAt(got, appBase)
	if !bytes.Equal(got[:flash.PageSize], pageOf(0x11)) || !bytes.Equal(got[flash.PageSize:], pageOf(0x22)) {
		t.Error("payload blocks after the workaround block landed wrong")
	}
}

func TestLoadRangePastLoader(t *testing.T) {
	d := newDevice()
	var programs int
	d.Observer = func(op string, addr, size uint32) {
		if op == "program" {
			programs++
		}
	}

	// two blocks, the second of which would land exactly at the loader
	// boundary
	file := uf2File(t, imageBlocks(testFlashEnd-flash.PageSize, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41))...)

	result, err := load(t, d, file)
	if result != Bad || err == nil {
		t.Fatalf("Load = (%v, %v), want (bad, range error)", result, err)
	}
	if programs != 0 {
		t.Errorf("%d pages programmed, want 0", programs)
	}
	if proginfo.LayoutRP2040.Valid(d) {
		t.Error("program-info record live after rejected load")
	}
}

func TestLoadTruncatedStream(t *testing.T) {
	d := newDevice()
	installStub(t, d)
	installProgInfo(t, d)

	file := uf2File(t, imageBlocks(vectorBase, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41), pageOf(0x42), pageOf(0x43))...)

	// the SD card vanishes after two blocks
	result, err := load(t, d, file[:2*uf2.BlockSize])
	if result != Bad || err == nil {
		t.Fatalf("Load = (%v, %v), want (bad, truncated)", result, err)
	}
	if proginfo.LayoutRP2040.Valid(d) {
		t.Error("program-info record live after a truncated load; device would boot garbage")
	}
}

func TestStubPreservedAcrossSectorZeroErase(t *testing.T) {
	d := newDevice()
	stub := installStub(t, d)

	file := uf2File(t, imageBlocks(vectorBase, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41), pageOf(0x42), pageOf(0x43))...)

	result, err := load(t, d, file)
	if result != Loaded || err != nil {
		t.Fatalf("Load = (%v, %v), want (loaded, nil)", result, err)
	}

	got := make([]byte, flash.StubSize)
	_ = d.ReadAt(got, flash.XIPBase)
	if !bytes.Equal(got, stub) {
		t.Error("second-stage boot stub was not preserved across the sector 0 erase")
	}
}

func TestProgInfoInvalidUntilCommit(t *testing.T) {
	d := newDevice()
	installStub(t, d)
	installProgInfo(t, d)

	var validity []bool
	d.Observer = func(op string, addr, size uint32) {
		validity = append(validity, proginfo.LayoutRP2040.Valid(d))
	}

	file := uf2File(t, imageBlocks(vectorBase, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41), pageOf(0x42), pageOf(0x43))...)

	result, err := load(t, d, file)
	if result != Loaded || err != nil {
		t.Fatalf("Load = (%v, %v), want (loaded, nil)", result, err)
	}

	if len(validity) < 3 {
		t.Fatalf("only %d flash operations observed", len(validity))
	}
	for i, v := range validity[:len(validity)-1] {
		if v {
			t.Errorf("record reads live after operation %d, before commit", i)
		}
	}
	if !validity[len(validity)-1] {
		t.Error("record not live after commit")
	}
}

func TestProgramAlignmentAndBounds(t *testing.T) {
	d := newDevice()
	installStub(t, d)
	d.Observer = func(op string, addr, size uint32) {
		if addr < flash.XIPBase || addr+size > testFlashEnd {
			t.Errorf("%s [0x%08X, 0x%08X) outside the application area", op, addr, addr+size)
		}
		switch op {
		case "program":
			if addr%flash.PageSize != 0 || size != flash.PageSize {
				t.Errorf("program at 0x%08X size %d violates page contract", addr, size)
			}
		case "erase":
			if addr%flash.SectorSize != 0 || size%flash.SectorSize != 0 {
				t.Errorf("erase at 0x%08X size %d violates sector contract", addr, size)
			}
		}
	}

	file := uf2File(t, imageBlocks(vectorBase, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41), pageOf(0x42), pageOf(0x43))...)
	if result, err := load(t, d, file); result != Loaded {
		t.Fatalf("Load = (%v, %v)", result, err)
	}
}

func TestEraseStartsAtContainingSector(t *testing.T) {
	d := newDevice()

	var erases [][2]uint32
	d.Observer = func(op string, addr, size uint32) {
		if op == "erase" {
			erases = append(erases, [2]uint32{addr, size})
		}
	}

	// image base is page aligned but sits two pages into its sector
	base := uint32(appBase + 2*flash.PageSize)
	file := uf2File(t, imageBlocks(base, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41))...)

	result, err := load(t, d, file)
	if result != Loaded || err != nil {
		t.Fatalf("Load = (%v, %v), want (loaded, nil)", result, err)
	}

	if len(erases) != 1 {
		t.Fatalf("%d erases observed, want 1", len(erases))
	}
	if erases[0][0] != appBase {
		t.Errorf("erase starts at 0x%08X, want the containing sector 0x%08X",
			erases[0][0], uint32(appBase))
	}

	got := make([]byte, 2*flash.PageSize)
	_ = d.ReadAt(got, base)
	if !bytes.Equal(got[:flash.PageSize], pageOf(0x40)) || !bytes.Equal(got[flash.PageSize:], pageOf(0x41)) {
		t.Error("payload did not land at the image base")
	}
}

func TestProgramSequenceIsContiguous(t *testing.T) {
	d := newDevice()
	var programs []uint32
	d.Observer = func(op string, addr, size uint32) {
		if op == "program" {
			programs = append(programs, addr)
		}
	}

	payloads := [][]byte{pageOf(0x40), pageOf(0x41), pageOf(0x42)}
	file := uf2File(t, imageBlocks(appBase, uf2.FamilyRP2040, payloads...)...)
	if result, err := load(t, d, file); result != Loaded {
		t.Fatalf("Load = (%v, %v)", result, err)
	}

	// image pages in file order, then the commit reprogram
	if len(programs) != len(payloads)+1 {
		t.Fatalf("%d programs observed, want %d", len(programs), len(payloads)+1)
	}
	for i := range payloads {
		if want := uint32(appBase + i*flash.PageSize); programs[i] != want {
			t.Errorf("program %d at 0x%08X, want 0x%08X", i, programs[i], want)
		}
	}
	if programs[len(programs)-1] != proginfo.LayoutRP2040.Page() {
		t.Errorf("final program at 0x%08X, want the record page", programs[len(programs)-1])
	}
}

func TestLoadStatusStrings(t *testing.T) {
	d := newDevice()
	var statuses []string
	file := uf2File(t, imageBlocks(appBase, uf2.FamilyRP2040,
		pageOf(0x40), pageOf(0x41), pageOf(0x42), pageOf(0x43))...)

	result, err := load(t, d, file,
		WithStatus(func(s string) { statuses = append(statuses, s) }),
		WithStatusInterval(2),
	)
	if result != Loaded || err != nil {
		t.Fatalf("Load = (%v, %v)", result, err)
	}

	joined := strings.Join(statuses, "\n")
	if !strings.Contains(joined, "Loading 2/4...") {
		t.Errorf("progress string missing, got %q", joined)
	}
	if statuses[len(statuses)-1] != "Load complete" {
		t.Errorf("final status = %q", statuses[len(statuses)-1])
	}
}

func TestLoadWithoutFlashEnd(t *testing.T) {
	d := newDevice()
	l := New(d, NewRP2040Target(0))

	result, err := l.Load(context.Background(), bytes.NewReader(nil), "X.UF2")
	if result != Unknown || err != ErrInvalidLoader {
		t.Fatalf("Load = (%v, %v), want (unknown, invalid loader)", result, err)
	}
}

func TestLoadRP2350Partition(t *testing.T) {
	const (
		partOffset = 1 << 20
		partSize   = 1 << 20
	)

	phys := flash.NewMemDevice(flash.XIPBase, 4<<20)
	window, err := flash.NewWindow(phys, partOffset, partSize)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}

	l := New(window, NewRP2350Target(partSize))

	payloads := [][]byte{pageOf(0x40), pageOf(0x41), pageOf(0x42)}
	file := uf2File(t, imageBlocks(flash.XIPBase, uf2.FamilyRP2350ARMS, payloads...)...)

	result, lerr := l.Load(context.Background(), bytes.NewReader(file), "APP2350.UF2")
	if result != Loaded || lerr != nil {
		t.Fatalf("Load = (%v, %v), want (loaded, nil)", result, lerr)
	}

	// the first page carries the vector hole, masked to all-ones
	want := append([]byte{}, payloads[0]...)
	proginfo.LayoutRP2350.ClearInBuf(want, flash.XIPBase)

	got := make([]byte, flash.PageSize)
	if err := phys.ReadAt(got, flash.XIPBase+partOffset); err != nil {
		t.Fatalf("physical ReadAt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("first page did not land at the partition offset with the hole masked")
	}

	got2 := make([]byte, flash.PageSize)
	_ = phys.ReadAt(got2, flash.XIPBase+partOffset+flash.PageSize)
	if !bytes.Equal(got2, payloads[1]) {
		t.Error("second page content wrong")
	}
}
