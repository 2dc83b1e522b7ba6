// Command mkuf2 converts a raw binary or Intel HEX image into a UF2 file
// that the on-device loader accepts.
//
// Usage:
//
//	mkuf2 -family rp2040 -base 0x10000100 -o app.uf2 app.bin
//	mkuf2 -family rp2350-arm-s -erratum -o app.uf2 app.hex
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"

	"github.com/uf2boot/go-uf2boot/flash"
	"github.com/uf2boot/go-uf2boot/uf2"
)

var families = map[string]uint32{
	"rp2040":        uf2.FamilyRP2040,
	"rp2350-arm-s":  uf2.FamilyRP2350ARMS,
	"rp2350-riscv":  uf2.FamilyRP2350RISCV,
	"rp2350-arm-ns": uf2.FamilyRP2350ARMNS,
	"absolute":      uf2.FamilyAbsolute,
}

func main() {
	out := flag.String("o", "", "output UF2 file (default: input with .uf2 extension)")
	base := flag.String("base", "0x10000100", "target address of the image (binary input only)")
	family := flag.String("family", "rp2040", "UF2 family: rp2040, rp2350-arm-s, rp2350-riscv, rp2350-arm-ns, absolute, or a hex ID")
	erratum := flag.Bool("erratum", false, "prepend the RP2350-E10 workaround block")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:\n  mkuf2 [OPTIONS] IMAGE\nOptions:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	in := flag.Arg(0)

	famID, err := parseFamily(*family)
	fatal(err)

	addr, img, err := readImage(in, *base)
	fatal(err)

	path := *out
	if path == "" {
		path = strings.TrimSuffix(in, filepath.Ext(in)) + ".uf2"
	}

	f, err := os.Create(path)
	fatal(errors.Wrap(err, "create output"))

	if *erratum {
		// the workaround block is a self-contained two-block file
		fatal(errors.Wrap(uf2.WriteErratumBlock(f, 2), "write workaround block"))
	}

	w := uf2.NewWriter(f, addr, uf2.FlagFamilyIDPresent, famID, flash.PageSize, len(img))
	if _, err := w.Write(img); err != nil {
		fatal(errors.Wrap(err, "write blocks"))
	}
	fatal(errors.Wrap(w.Flush(), "flush"))
	fatal(errors.Wrap(f.Close(), "close output"))

	blocks := (len(img) + flash.PageSize - 1) / flash.PageSize
	fmt.Printf("%s: %d bytes at 0x%08X, %d blocks\n", path, len(img), addr, blocks)
}

func parseFamily(s string) (uint32, error) {
	if id, ok := families[s]; ok {
		return id, nil
	}
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Errorf("unknown family %q", s)
	}
	return uint32(id), nil
}

// readImage loads a .hex or raw binary image and returns its base address
// and contents. Gaps between HEX segments are filled with 0xFF so the
// resulting UF2 is a single contiguous run, which is all the loader takes.
func readImage(path, base string) (uint32, []byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".hex") {
		return readHex(path)
	}

	addr, err := strconv.ParseUint(base, 0, 32)
	if err != nil {
		return 0, nil, errors.Wrap(err, "parse base address")
	}
	img, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, errors.Wrap(err, "read image")
	}
	return uint32(addr), img, nil
}

func readHex(path string) (uint32, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, errors.Wrap(err, "open hex")
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return 0, nil, errors.Wrap(err, "parse hex")
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return 0, nil, errors.New("hex file holds no data")
	}
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].Address < segments[j].Address
	})

	start := segments[0].Address
	last := segments[len(segments)-1]
	img := make([]byte, last.Address+uint32(len(last.Data))-start)
	for i := range img {
		img[i] = 0xFF
	}
	for _, seg := range segments {
		copy(img[seg.Address-start:], seg.Data)
	}
	return start, img, nil
}

func fatal(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "mkuf2:", err)
		os.Exit(1)
	}
}
