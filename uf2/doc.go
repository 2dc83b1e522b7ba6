// Package uf2 implements the UF2 firmware container format.
//
// # UF2 File Format
//
// A UF2 file is a sequence of self-describing 512-byte blocks, sized so
// that one block occupies exactly one filesystem sector. Each block carries
// its own target address, payload, position within the file and the family
// ID of the chip it is meant for.
//
// Block layout (little-endian, 512 bytes):
//
//	[MagicStart0(4)][MagicStart1(4)][Flags(4)][TargetAddr(4)]
//	[PayloadSize(4)][BlockNo(4)][NumBlocks(4)][FileSizeOrFamily(4)]
//	[Data(476)][MagicEnd(4)]
//
// # Usage
//
// Decode and validate a stream of blocks:
//
//	s := uf2.NewStream(familyValid, 256, 0x10000000, flashEnd)
//	var b uf2.Block
//	for {
//	    if _, err := io.ReadFull(r, buf); err != nil {
//	        break
//	    }
//	    b.UnmarshalBinary(buf)
//	    verdict, err := s.Check(&b)
//	    // program b.Payload() at b.TargetAddr on Accept
//	}
//	err := s.Finish()
//
// Build a UF2 file from a raw image:
//
//	w := uf2.NewWriter(f, 0x10000100, uf2.FlagFamilyIDPresent, uf2.FamilyRP2040, 256, len(img))
//	w.Write(img)
//	w.Flush()
//
// # Validation
//
// Check classifies every block as accepted, skipped (benign: wrong family,
// not-main-flash, the RP2350-E10 workaround block) or rejected (the file is
// malformed and must not be flashed). Rejection reasons are the exported
// Err* sentinels, wrapped with the offending block's index.
package uf2
