package uf2

import (
	"encoding/binary"
	"io"
)

// Writer packs a byte stream into consecutive UF2 blocks and writes them to
// the underlying writer. The payload of every block is pageSize bytes; the
// final partial block is zero-padded by Flush.
type Writer struct {
	w    io.Writer
	b    Block
	page uint32
}

// NewWriter returns a Writer emitting blocks for the given start address,
// flags and family. size is the total number of payload bytes that will be
// written; it determines the NumBlocks field stamped into every block.
func NewWriter(w io.Writer, addr, flags, family uint32, pageSize, size int) *Writer {
	u := &Writer{w: w, page: uint32(pageSize)}
	u.b.MagicStart0 = MagicStart0
	u.b.MagicStart1 = MagicStart1
	u.b.Flags = flags
	u.b.TargetAddr = addr
	u.b.NumBlocks = uint32((size + pageSize - 1) / pageSize)
	u.b.FileSizeOrFamily = family
	u.b.MagicEnd = MagicEnd
	return u
}

func (u *Writer) Write(p []byte) (n int, err error) {
	b := &u.b
	for len(p) != 0 {
		m := copy(b.Data[b.PayloadSize:u.page], p)
		n += m
		p = p[m:]
		b.PayloadSize += uint32(m)
		if b.PayloadSize == u.page {
			if err = u.emit(); err != nil {
				return
			}
		}
	}
	return
}

// Flush zero-pads and emits the in-progress block, if any.
func (u *Writer) Flush() error {
	b := &u.b
	if b.PayloadSize == 0 {
		return nil
	}
	for i := b.PayloadSize; i < u.page; i++ {
		b.Data[i] = 0
	}
	b.PayloadSize = u.page
	return u.emit()
}

func (u *Writer) emit() error {
	b := &u.b
	if err := binary.Write(u.w, binary.LittleEndian, b); err != nil {
		return err
	}
	b.TargetAddr += b.PayloadSize
	b.BlockNo++
	b.PayloadSize = 0
	b.Data = [DataSize]byte{}
	return nil
}

// WriteErratumBlock emits the RP2350-E10 workaround block that picotool
// places in front of RP2350 images. numBlocks must count the workaround
// block itself plus the payload blocks that follow.
func WriteErratumBlock(w io.Writer, numBlocks uint32) error {
	b := Block{
		MagicStart0:      MagicStart0,
		MagicStart1:      MagicStart1,
		Flags:            FlagFamilyIDPresent,
		TargetAddr:       ErratumBlockAddr,
		PayloadSize:      256,
		BlockNo:          0,
		NumBlocks:        numBlocks,
		FileSizeOrFamily: FamilyAbsolute,
		MagicEnd:         MagicEnd,
	}
	for i := range b.Data[:256] {
		b.Data[i] = 0xEF
	}
	return binary.Write(w, binary.LittleEndian, &b)
}
