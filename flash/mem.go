package flash

// MemDevice is a NOR-accurate in-memory flash device. Erase sets bytes to
// 0xFF; programming can only clear bits, exactly like the real part, so a
// caller that programs without erasing first gets the ANDed garbage it
// deserves rather than a silent overwrite.
//
// MemDevice backs the host-side tools and the test suite.
type MemDevice struct {
	base uint32
	mem  []byte

	// protected is the first address of the self-protected high region
	// (the loader's own home); zero means no protection.
	protected uint32

	// Observer, when set, is called after every successful mutating
	// operation. Tests use it to sample invariants at operation
	// boundaries.
	Observer func(op string, addr, size uint32)
}

// NewMemDevice returns a device of the given size mapped at base, fully
// erased.
func NewMemDevice(base, size uint32) *MemDevice {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &MemDevice{base: base, mem: mem}
}

// Protect marks [start, end-of-device) as off limits for erase and program.
func (d *MemDevice) Protect(start uint32) { d.protected = start }

// Base returns the device's mapped base address.
func (d *MemDevice) Base() uint32 { return d.base }

// Size returns the device size in bytes.
func (d *MemDevice) Size() uint32 { return uint32(len(d.mem)) }

// Bytes returns the backing store. Callers must treat it as read-only.
func (d *MemDevice) Bytes() []byte { return d.mem }

// Restore overwrites the backing store, for loading a saved image. The
// image must be exactly the device size.
func (d *MemDevice) Restore(img []byte) error {
	if len(img) != len(d.mem) {
		return &BoundsError{Op: "restore", Addr: d.base, Size: uint32(len(img))}
	}
	copy(d.mem, img)
	return nil
}

func (d *MemDevice) checkRange(op string, addr, size uint32) error {
	if addr < d.base || addr+size > d.base+uint32(len(d.mem)) || addr+size < addr {
		return &BoundsError{Op: op, Addr: addr, Size: size}
	}
	if d.protected != 0 && addr+size > d.protected {
		return &ProtectedRangeError{Op: op, Addr: addr, Size: size, Start: d.protected}
	}
	return nil
}

func (d *MemDevice) EraseRange(addr, size uint32) error {
	if addr%SectorSize != 0 {
		return &AlignmentError{Op: "erase", Addr: addr, Align: SectorSize}
	}
	size = SectorAlignUp(size)
	if err := d.checkRange("erase", addr, size); err != nil {
		return err
	}
	off := addr - d.base
	for i := off; i < off+size; i++ {
		d.mem[i] = 0xFF
	}
	if d.Observer != nil {
		d.Observer("erase", addr, size)
	}
	return nil
}

func (d *MemDevice) ProgramPage(addr uint32, page []byte) error {
	if len(page) != PageSize {
		return &PageSizeError{Got: len(page)}
	}
	if addr%PageSize != 0 {
		return &AlignmentError{Op: "program", Addr: addr, Align: PageSize}
	}
	if err := d.checkRange("program", addr, PageSize); err != nil {
		return err
	}
	off := addr - d.base
	for i, b := range page {
		d.mem[off+uint32(i)] &= b
	}
	if d.Observer != nil {
		d.Observer("program", addr, PageSize)
	}
	return nil
}

func (d *MemDevice) ReadAt(buf []byte, addr uint32) error {
	if err := d.checkRange("read", addr, uint32(len(buf))); err != nil {
		// reads may cross into the protected region; only bounds matter
		if _, ok := err.(*BoundsError); ok {
			return err
		}
	}
	copy(buf, d.mem[addr-d.base:])
	return nil
}
