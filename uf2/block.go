package uf2

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Block and payload sizes per the UF2 specification. Every block is exactly
// one filesystem sector; the payload carried by the firmware this library
// handles is always one flash page.
const (
	// BlockSize is the size of a UF2 block on the wire (one SD sector)
	BlockSize = 512

	// DataSize is the size of the data field inside a block
	DataSize = 476
)

// UF2 block magic numbers (normative).
const (
	// MagicStart0 is the first magic word of every block
	MagicStart0 = 0x0A324655

	// MagicStart1 is the second magic word of every block
	MagicStart1 = 0x9E5D5157

	// MagicEnd is the trailing magic word of every block
	MagicEnd = 0x0AB16F30
)

// Block flag bits.
const (
	// FlagNotMainFlash marks a block that must not be written to flash
	FlagNotMainFlash = 0x00000001

	// FlagFileContainer marks a file-container block
	FlagFileContainer = 0x00001000

	// FlagFamilyIDPresent indicates FileSizeOrFamily holds a family ID
	FlagFamilyIDPresent = 0x00002000

	// FlagMD5ChecksumPresent indicates an MD5 checksum trails the payload
	FlagMD5ChecksumPresent = 0x00004000

	// FlagExtensionTagsPresent indicates extension tags trail the payload
	FlagExtensionTagsPresent = 0x00008000
)

// Family IDs for the chips this loader runs on.
const (
	// FamilyRP2040 is the RP2040 family ID
	FamilyRP2040 = 0xE48BFF56

	// FamilyAbsolute marks blocks flashed at their absolute address
	// regardless of partitioning; used by the RP2350-E10 workaround block
	FamilyAbsolute = 0xE48BFF57

	// FamilyRP2350ARMS is the RP2350 Arm secure family ID
	FamilyRP2350ARMS = 0xE48BFF59

	// FamilyRP2350RISCV is the RP2350 RISC-V family ID
	FamilyRP2350RISCV = 0xE48BFF5A

	// FamilyRP2350ARMNS is the RP2350 Arm non-secure family ID
	FamilyRP2350ARMNS = 0xE48BFF5B
)

// ErratumBlockAddr is the target address of the RP2350-E10 workaround block
// that picotool prepends to RP2350 UF2 files. The block carries the
// FamilyAbsolute family ID and block number zero.
const ErratumBlockAddr = 0x10FFFF00

// Block is a single UF2 block. The field order matches the 512-byte
// little-endian wire layout exactly, so the struct can be moved to and from
// the wire with encoding/binary.
type Block struct {
	// MagicStart0 must equal the MagicStart0 constant
	MagicStart0 uint32

	// MagicStart1 must equal the MagicStart1 constant
	MagicStart1 uint32

	// Flags is the block flag bitfield
	Flags uint32

	// TargetAddr is the absolute flash address the payload lands at
	TargetAddr uint32

	// PayloadSize is the number of valid bytes in Data
	PayloadSize uint32

	// BlockNo is the index of this block within the file, starting at 0
	BlockNo uint32

	// NumBlocks is the total number of blocks in the file
	NumBlocks uint32

	// FileSizeOrFamily holds the family ID when FlagFamilyIDPresent is
	// set, otherwise the total file size
	FileSizeOrFamily uint32

	// Data is the payload; only the first PayloadSize bytes are live
	Data [DataSize]byte

	// MagicEnd must equal the MagicEnd constant
	MagicEnd uint32
}

// NewBlock builds a well-formed block with the family-ID flag set.
// The payload is copied into the data field; anything past it stays zero.
func NewBlock(blockNo, numBlocks, targetAddr uint32, payload []byte, family uint32) *Block {
	b := &Block{
		MagicStart0:      MagicStart0,
		MagicStart1:      MagicStart1,
		Flags:            FlagFamilyIDPresent,
		TargetAddr:       targetAddr,
		PayloadSize:      uint32(len(payload)),
		BlockNo:          blockNo,
		NumBlocks:        numBlocks,
		FileSizeOrFamily: family,
		MagicEnd:         MagicEnd,
	}
	copy(b.Data[:], payload)
	return b
}

// Family returns the family ID and true when the family-ID flag is set.
func (b *Block) Family() (uint32, bool) {
	if b.Flags&FlagFamilyIDPresent == 0 {
		return 0, false
	}
	return b.FileSizeOrFamily, true
}

// Payload returns the live portion of the data field.
func (b *Block) Payload() []byte {
	n := b.PayloadSize
	if n > DataSize {
		n = DataSize
	}
	return b.Data[:n]
}

// MarshalBinary encodes the block into its 512-byte wire form.
func (b *Block) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, BlockSize))
	if err := binary.Write(buf, binary.LittleEndian, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a 512-byte wire block. Only the length is checked
// here; magic validation is the validator's job so that a corrupt block can
// be reported as a rejection rather than a decode failure.
func (b *Block) UnmarshalBinary(data []byte) error {
	if len(data) != BlockSize {
		return fmt.Errorf("uf2 block must be exactly %d bytes, got %d", BlockSize, len(data))
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, b)
}
