package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/uf2boot/go-uf2boot/flash"
	"github.com/uf2boot/go-uf2boot/uf2"
)

// Loader drives a complete firmware update: pull 512-byte UF2 blocks from a
// stream, validate each, erase and program the application region, and
// commit the program-info record once the whole file has landed.
//
// The safety contract is that the device is bootable when Load returns,
// whatever happened: either the record is live and points at a complete
// image, or it reads as "no app" and the next reset falls back into the
// loader UI.
type Loader struct {
	dev    flash.Device
	target Target
	config Config
}

// New creates a Loader for the given device and target strategy.
//
// Example:
//
//	l := loader.New(dev, loader.NewRP2040Target(flashEnd),
//	    loader.WithStatus(ui.SetStatus),
//	    loader.WithLogger(&loader.LogrusLogger{L: log}),
//	)
func New(dev flash.Device, target Target, opts ...Option) *Loader {
	if dev == nil {
		panic("device cannot be nil")
	}
	if target == nil {
		panic("target cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Loader{
		dev:    dev,
		target: target,
		config: cfg,
	}
}

// LoadFile opens path and loads it. The base name of the path is recorded
// in the program-info record on targets that keep one.
func (l *Loader) LoadFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		l.status("SD read error")
		return Unknown, errors.Wrap(err, "open uf2")
	}
	defer func() { _ = f.Close() }()

	return l.Load(ctx, f, filepath.Base(path))
}

// Load pulls UF2 blocks from r until it is exhausted and programs them. A
// short read is end of stream; whether that is success or truncation is
// decided by the block count. name is the human label stored in the
// program-info record.
func (l *Loader) Load(ctx context.Context, r io.Reader, name string) (Result, error) {
	flashEnd := l.target.FlashEnd()
	if flashEnd == 0 {
		l.status("Invalid bootloader!")
		return Unknown, ErrInvalidLoader
	}

	s := uf2.NewStream(l.target.FamilyValid, flash.PageSize, flash.XIPBase, flashEnd)

	var (
		blk     uf2.Block
		buf     = make([]byte, uf2.BlockSize)
		written uint32
	)

	for {
		if err := ctx.Err(); err != nil {
			return Unknown, errors.Wrap(err, "cancelled")
		}

		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			l.status("SD read error")
			return Unknown, errors.Wrap(err, "read block")
		}
		if err := blk.UnmarshalBinary(buf); err != nil {
			return Unknown, err
		}

		verdict, err := s.Check(&blk)
		switch verdict {
		case uf2.Reject:
			l.logDebug("block rejected", "err", err)
			l.status("Bad UF2 file")
			return Bad, err
		case uf2.Accept:
		default:
			l.logDebug("block skipped",
				"reason", verdict.String(),
				"block_no", blk.BlockNo,
				"target_addr", fmt.Sprintf("0x%08X", blk.TargetAddr),
			)
			continue
		}

		if written == 0 {
			if err := l.eraseTarget(s.FirstAddr(), s.NumBlocks()); err != nil {
				l.status("Flash erase error")
				return Unknown, err
			}
		} else if written%uint32(l.config.StatusInterval) == 0 {
			l.status(fmt.Sprintf("Loading %d/%d...", written, s.NumBlocks()))
		}

		if err := l.programBlock(&blk); err != nil {
			l.status("Flash write error")
			return Unknown, err
		}
		written++
	}

	if err := s.Finish(); err != nil {
		if errors.Is(err, uf2.ErrWrongPlatform) {
			l.status("Not for this device")
			return WrongPlatform, err
		}
		l.status("Bad UF2 file")
		return Bad, err
	}

	if err := l.target.Commit(l.dev, name); err != nil {
		l.status("Flash write error")
		return Unknown, err
	}

	l.logInfo("load complete",
		"blocks", s.NumBlocks(),
		"base", fmt.Sprintf("0x%08X", s.FirstAddr()),
		"name", name,
	)
	l.status("Load complete")
	return Loaded, nil
}

// eraseTarget erases the range the accepted image will occupy, preserving
// the second-stage boot stub when the plan covers sector 0 and the image
// does not bring its own stub.
func (l *Loader) eraseTarget(firstAddr, numBlocks uint32) error {
	size := numBlocks * flash.PageSize

	if l.target.PreserveStub() && firstAddr < flash.XIPBase+flash.SectorSize {
		// The stub is the first page of flash and is not part of UF2s
		// built by the usual toolchain, unless the image starts at the
		// very base of flash and so supplies its own.
		suppliesStub := firstAddr == flash.XIPBase

		var stub []byte
		if !suppliesStub {
			stub = make([]byte, flash.StubSize)
			if err := l.dev.ReadAt(stub, flash.XIPBase); err != nil {
				return err
			}
		}

		l.logDebug("erasing sector 0, reprogramming boot stub")
		if err := l.dev.EraseRange(flash.XIPBase, firstAddr-flash.XIPBase+size); err != nil {
			return err
		}
		if !suppliesStub {
			return l.dev.ProgramPage(flash.XIPBase, stub)
		}
		return nil
	}

	// firstAddr is only page aligned; erase starts at its containing sector
	base := flash.SectorOf(firstAddr)
	return l.dev.EraseRange(base, firstAddr-base+size)
}

// programBlock masks the program-info slot out of the payload and programs
// the page. Masking keeps the slot all-ones from erase until commit, so a
// power cut mid-update reads as "no app" on the next boot.
func (l *Loader) programBlock(blk *uf2.Block) error {
	page := make([]byte, flash.PageSize)
	copy(page, blk.Payload())
	l.target.Layout().ClearInBuf(page, blk.TargetAddr)

	if err := l.dev.ProgramPage(blk.TargetAddr, page); err != nil {
		return err
	}

	if l.config.VerifyAfterProgram {
		ok, err := flash.Verify(l.dev, blk.TargetAddr, page)
		if err != nil {
			return err
		}
		if !ok {
			return &VerificationError{Addr: blk.TargetAddr}
		}
	}
	return nil
}

func (l *Loader) status(message string) {
	if l.config.Status != nil {
		l.config.Status(message)
	}
}

func (l *Loader) logDebug(msg string, keysAndValues ...interface{}) {
	if l.config.Logger != nil {
		l.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (l *Loader) logInfo(msg string, keysAndValues ...interface{}) {
	if l.config.Logger != nil {
		l.config.Logger.Info(msg, keysAndValues...)
	}
}
