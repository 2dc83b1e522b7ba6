// Command uf2flash loads a UF2 file into a flash image file, exactly as the
// on-device loader would: same validation, same erase plan, same
// program-info commit. It is the host-side harness for inspecting what a
// given UF2 does to a device without a device.
//
// Usage:
//
//	uf2flash -img flash.img -flash-end 0x10100000 app.uf2
//	uf2flash -img flash.img -platform rp2350 -part-offset 0x100000 -part-size 0x200000 app.uf2
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/uf2boot/go-uf2boot/flash"
	"github.com/uf2boot/go-uf2boot/loader"
	"github.com/uf2boot/go-uf2boot/proginfo"
)

func main() {
	imgPath := flag.String("img", "flash.img", "flash image file; created erased if missing")
	size := flag.String("size", "0x200000", "flash device size in bytes")
	platform := flag.String("platform", "rp2040", "target platform: rp2040 or rp2350")
	flashEnd := flag.String("flash-end", "0x10100000", "application bound (rp2040)")
	partOffset := flag.String("part-offset", "0", "application partition offset (rp2350)")
	partSize := flag.String("part-size", "0", "application partition size (rp2350)")
	crc := flag.Bool("verify", false, "print the CRC32 of the flash image")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:\n  uf2flash [OPTIONS] FILE.uf2\nOptions:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	devSize, err := parseUint32(*size)
	fatal(log, err)

	dev, err := openImage(*imgPath, devSize)
	fatal(log, err)

	var (
		target loader.Target
		fdev   flash.Device = dev
		layout proginfo.Layout
	)
	switch *platform {
	case "rp2040":
		end, err := parseUint32(*flashEnd)
		fatal(log, err)
		dev.Protect(end)
		target = loader.NewRP2040Target(end)
		layout = proginfo.LayoutRP2040
	case "rp2350":
		offset, err := parseUint32(*partOffset)
		fatal(log, err)
		psize, err := parseUint32(*partSize)
		fatal(log, err)
		window, err := flash.NewWindow(dev, offset, psize)
		fatal(log, errors.Wrap(err, "partition window"))
		fdev = window
		target = loader.NewRP2350Target(psize)
		layout = proginfo.LayoutRP2350
	default:
		fatal(log, errors.Errorf("unknown platform %q", *platform))
	}

	l := loader.New(fdev, target,
		loader.WithLogger(&loader.LogrusLogger{L: log}),
		loader.WithStatus(func(s string) { log.Info(s) }),
		loader.WithStatusInterval(16),
	)

	result, err := l.LoadFile(context.Background(), flag.Arg(0))
	if err != nil {
		log.WithError(err).Errorf("load: %s", result)
	} else {
		log.Infof("load: %s", result)
	}

	// persist the image whatever happened; partial state is the point
	fatal(log, errors.Wrap(os.WriteFile(*imgPath, dev.Bytes(), 0o644), "write image"))

	if m := layout.Capture(fdev); m.Valid() {
		info := m.Info()
		log.Infof("program info: flash_end=0x%08X filename=%q", info.FlashEnd, info.Filename)
	} else {
		log.Info("program info: no valid record")
	}

	if *crc && result == loader.Loaded {
		sum, err := flash.ChecksumRange(dev, dev.Base(), dev.Size())
		fatal(log, err)
		log.Infof("image crc32: 0x%08X", sum)
	}

	if result != loader.Loaded {
		os.Exit(1)
	}
}

// openImage maps an existing image file as the flash device, or starts from
// erased flash when the file does not exist yet.
func openImage(path string, size uint32) (*flash.MemDevice, error) {
	dev := flash.NewMemDevice(flash.XIPBase, size)

	img, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return dev, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	if err := dev.Restore(img); err != nil {
		return nil, errors.Wrapf(err, "image %s does not match -size", path)
	}
	return dev, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %q", s)
	}
	return uint32(v), nil
}

func fatal(log *logrus.Logger, err error) {
	if err != nil {
		log.Fatal(err)
	}
}
