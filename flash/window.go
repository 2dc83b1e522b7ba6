package flash

// Window is an address-translation view of a device, modelling the QMI
// address-translation unit of the larger parts: the boot path programs the
// translation once so that XIPBase maps onto the partition holding the
// application, and every later flash operation works in virtual addresses.
//
// The translation is fixed at construction and never altered during a flash
// operation.
type Window struct {
	dev    Device
	offset uint32
	size   uint32
}

// NewWindow returns a view of dev where [XIPBase, XIPBase+size) maps onto
// the physical range starting at XIPBase+offset. offset and size must be
// sector aligned, matching the 4-KB granularity of the translation unit.
func NewWindow(dev Device, offset, size uint32) (*Window, error) {
	if offset%SectorSize != 0 {
		return nil, &AlignmentError{Op: "window", Addr: offset, Align: SectorSize}
	}
	if size%SectorSize != 0 {
		return nil, &AlignmentError{Op: "window", Addr: size, Align: SectorSize}
	}
	return &Window{dev: dev, offset: offset, size: size}, nil
}

// Size returns the size of the window in bytes.
func (w *Window) Size() uint32 { return w.size }

func (w *Window) translate(op string, addr, size uint32) (uint32, error) {
	if addr < XIPBase || addr+size > XIPBase+w.size || addr+size < addr {
		return 0, &BoundsError{Op: op, Addr: addr, Size: size}
	}
	return addr + w.offset, nil
}

func (w *Window) EraseRange(addr, size uint32) error {
	phys, err := w.translate("erase", addr, SectorAlignUp(size))
	if err != nil {
		return err
	}
	return w.dev.EraseRange(phys, size)
}

func (w *Window) ProgramPage(addr uint32, page []byte) error {
	phys, err := w.translate("program", addr, uint32(len(page)))
	if err != nil {
		return err
	}
	return w.dev.ProgramPage(phys, page)
}

func (w *Window) ReadAt(buf []byte, addr uint32) error {
	phys, err := w.translate("read", addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	return w.dev.ReadAt(buf, phys)
}
