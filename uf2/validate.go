package uf2

import (
	"errors"
	"fmt"
)

// Verdict is the outcome of validating one block against the stream state.
type Verdict int

const (
	// Accept means the block's payload must be programmed at TargetAddr
	Accept Verdict = iota

	// SkipNotMainFlash means the block is not destined for main flash
	SkipNotMainFlash

	// SkipWrongFamily means the block targets a different chip family
	SkipWrongFamily

	// SkipErratumBlock means the block is the RP2350-E10 workaround block
	SkipErratumBlock

	// Reject means the file is malformed and the load must be aborted
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case SkipNotMainFlash:
		return "skip: not main flash"
	case SkipWrongFamily:
		return "skip: wrong family"
	case SkipErratumBlock:
		return "skip: erratum workaround block"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Rejection reasons. A Reject verdict always carries one of these, possibly
// wrapped with block context.
var (
	ErrMagic         = errors.New("invalid UF2 magic")
	ErrAlignment     = errors.New("target address is not page aligned")
	ErrPayloadSize   = errors.New("payload size does not match flash page size")
	ErrBlockCount    = errors.New("block count is zero or exceeded")
	ErrOutOfRange    = errors.New("target address outside the programmable area")
	ErrRangeTooLarge = errors.New("requested range exceeds the programmable area")
	ErrFirstMissing  = errors.New("first block of the image is missing")
	ErrSequence      = errors.New("block out of sequence")
	ErrTruncated     = errors.New("file ended before all blocks were seen")
	ErrWrongPlatform = errors.New("no blocks for this platform")
)

// Stream validates a sequence of UF2 blocks for one load. It carries the
// cross-block state: the base address and total set by the first accepted
// block, the running block counter, and whether the RP2350-E10 workaround
// block was stripped from the front of the numbering.
//
// Stream is a pure consumer; it never touches flash. The caller feeds each
// decoded block to Check, programs the payload on Accept, and calls Finish
// once the file is exhausted.
type Stream struct {
	familyValid func(uint32) bool
	pageSize    uint32
	xipBase     uint32
	flashEnd    uint32

	// stripped is set when the erratum block was folded into the main
	// image's numbering; every later block is then off by one.
	stripped bool

	started   bool
	firstAddr uint32
	numBlocks uint32
	accepted  uint32
	read      uint32
}

// NewStream returns the carried-forward state for one file. familyValid
// reports whether a family ID belongs to the running chip; blocks whose
// target lies outside [xipBase, flashEnd) are rejected.
func NewStream(familyValid func(uint32) bool, pageSize, xipBase, flashEnd uint32) *Stream {
	return &Stream{
		familyValid: familyValid,
		pageSize:    pageSize,
		xipBase:     xipBase,
		flashEnd:    flashEnd,
	}
}

// Started reports whether the first block has been accepted. The caller
// erases the target range between the first Accept and its program.
func (s *Stream) Started() bool { return s.started }

// FirstAddr returns the target address of the first accepted block.
func (s *Stream) FirstAddr() uint32 { return s.firstAddr }

// NumBlocks returns the effective total block count, valid once started.
func (s *Stream) NumBlocks() uint32 { return s.numBlocks }

// Accepted returns the number of blocks accepted so far.
func (s *Stream) Accepted() uint32 { return s.accepted }

// effective returns the block number and total with the erratum-block
// adjustment applied.
func (s *Stream) effective(b *Block) (blockNo, numBlocks uint32) {
	blockNo, numBlocks = b.BlockNo, b.NumBlocks
	if s.stripped {
		blockNo--
		numBlocks--
	}
	return
}

// Check validates one block. On Accept the stream state advances; the
// caller must program the payload before feeding the next block. A Reject
// verdict is fatal for the whole file and is accompanied by the reason.
func (s *Stream) Check(b *Block) (Verdict, error) {
	s.read++

	if b.MagicStart0 != MagicStart0 || b.MagicStart1 != MagicStart1 || b.MagicEnd != MagicEnd {
		return Reject, fmt.Errorf("block %d: %w", s.read-1, ErrMagic)
	}
	if b.Flags&FlagNotMainFlash != 0 {
		return SkipNotMainFlash, nil
	}
	if b.TargetAddr%s.pageSize != 0 {
		return Reject, fmt.Errorf("block %d: %w (0x%08X)", s.read-1, ErrAlignment, b.TargetAddr)
	}
	if b.PayloadSize != s.pageSize {
		return Reject, fmt.Errorf("block %d: %w (%d)", s.read-1, ErrPayloadSize, b.PayloadSize)
	}
	if b.NumBlocks == 0 || b.BlockNo >= b.NumBlocks {
		return Reject, fmt.Errorf("block %d: %w (%d/%d)", s.read-1, ErrBlockCount, b.BlockNo, b.NumBlocks)
	}

	if family, ok := b.Family(); ok {
		if family == FamilyAbsolute && b.BlockNo == 0 && b.TargetAddr == ErratumBlockAddr {
			// picotool emits the workaround block as a self-contained
			// two-block file. Any other count means it was folded into
			// the main image's numbering and everything after it is
			// shifted by one.
			if b.NumBlocks != 2 {
				s.stripped = true
			}
			return SkipErratumBlock, nil
		}
		if !s.familyValid(family) {
			return SkipWrongFamily, nil
		}
	}

	if b.TargetAddr < s.xipBase || b.TargetAddr >= s.flashEnd {
		return Reject, fmt.Errorf("block %d: %w (0x%08X not in [0x%08X, 0x%08X))",
			s.read-1, ErrOutOfRange, b.TargetAddr, s.xipBase, s.flashEnd)
	}

	blockNo, numBlocks := s.effective(b)

	if !s.started {
		if blockNo != 0 {
			return Reject, fmt.Errorf("block %d: %w", s.read-1, ErrFirstMissing)
		}
		if b.TargetAddr+s.pageSize*numBlocks > s.flashEnd {
			return Reject, fmt.Errorf("block %d: %w (%d blocks from 0x%08X)",
				s.read-1, ErrRangeTooLarge, numBlocks, b.TargetAddr)
		}
		s.started = true
		s.firstAddr = b.TargetAddr
		s.numBlocks = numBlocks
		s.accepted = 1
		return Accept, nil
	}

	if numBlocks != s.numBlocks {
		return Reject, fmt.Errorf("block %d: %w: total changed from %d to %d",
			s.read-1, ErrSequence, s.numBlocks, numBlocks)
	}
	if blockNo != s.accepted {
		return Reject, fmt.Errorf("block %d: %w: expected block %d, got %d",
			s.read-1, ErrSequence, s.accepted, blockNo)
	}
	if want := s.firstAddr + s.pageSize*s.accepted; b.TargetAddr != want {
		return Reject, fmt.Errorf("block %d: %w: expected address 0x%08X, got 0x%08X",
			s.read-1, ErrSequence, want, b.TargetAddr)
	}

	s.accepted++
	return Accept, nil
}

// Finish enforces the end-of-file contract: every expected block was
// accepted. A stream that produced no acceptable blocks at all is a
// wrong-platform file rather than a corrupt one, unless it was empty.
func (s *Stream) Finish() error {
	if s.accepted == 0 {
		if s.read == 0 {
			return fmt.Errorf("%w: empty file", ErrTruncated)
		}
		return ErrWrongPlatform
	}
	if s.accepted != s.numBlocks {
		return fmt.Errorf("%w: %d of %d blocks", ErrTruncated, s.accepted, s.numBlocks)
	}
	return nil
}
