package program

import (
	"errors"
	"fmt"
	"io"

	"github.com/greatnortherncircuits/ecpprog/spiflash"
)

// EraseStrategy selects how the erase pass of ProgramFlash and
// EraseOnly computes and executes erasure.
type EraseStrategy int

const (
	// EraseBlocks erases the minimal span of EraseBlockSize-aligned
	// blocks covering the programmed range (spec.md §4.F's default
	// strategy).
	EraseBlocks EraseStrategy = iota
	// EraseBulk issues a single chip erase regardless of range.
	EraseBulk
	// EraseNone skips erasure, matching the `-n` flag.
	EraseNone
)

// FlashOptions configures ProgramFlash's erase, protection and verify
// behaviour.
type FlashOptions struct {
	Offset         uint32
	EraseStrategy  EraseStrategy
	EraseBlockSize uint32 // one of 4096, 32768, 65536; required for EraseBlocks
	DisableProtect bool
	SkipVerify     bool
	Refresh        bool
}

// ErrVerifyMismatch is returned by Verify (and by ProgramFlash's implicit
// verify pass) the moment a byte differs from the expected data; it does
// not continue comparing past the first mismatch.
var ErrVerifyMismatch = errors.New("program: verify mismatch")

// readChunkSize is the verify and Read pass's I/O granularity.
const readChunkSize = 4096

func (p *Programmer) eraseRange(strategy EraseStrategy, offset uint32, length int, blockSize uint32) error {
	switch strategy {
	case EraseNone:
		return nil
	case EraseBulk:
		return p.flash.ChipErase()
	case EraseBlocks:
		begin, end := spiflash.AlignEraseRange(offset, length, blockSize)
		for addr := begin; addr < end; addr += blockSize {
			var err error
			switch blockSize {
			case 4 * 1024:
				err = p.flash.SectorErase4K(addr)
			case 32 * 1024:
				err = p.flash.BlockErase32K(addr)
			case 64 * 1024:
				err = p.flash.BlockErase64K(addr)
			default:
				err = fmt.Errorf("program: unsupported erase block size %d", blockSize)
			}
			if err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("program: unknown erase strategy %d", strategy)
	}
}

// ProgramFlash implements mode 3 (spec.md §4.F), the default mode:
// release the configuration interface and reset the attached flash,
// optionally disable write protection, erase per opts, program data at
// opts.Offset, then (unless opts.SkipVerify) verify by reading the
// programmed range back and comparing it byte for byte. opts.Refresh
// issues LSC_REFRESH afterward to reboot the device from flash.
func (p *Programmer) ProgramFlash(data []byte, opts FlashOptions) error {
	if _, err := p.ensureIdentity(); err != nil {
		return err
	}
	if _, err := p.resetToSPI(); err != nil {
		return err
	}
	if opts.DisableProtect {
		if _, err := p.flash.DisableProtection(); err != nil {
			return err
		}
	}
	if err := p.eraseRange(opts.EraseStrategy, opts.Offset, len(data), opts.EraseBlockSize); err != nil {
		return err
	}
	if err := p.flash.Program(opts.Offset, data); err != nil {
		return err
	}
	if !opts.SkipVerify {
		if err := p.Verify(data, opts.Offset); err != nil {
			return err
		}
	}
	if opts.Refresh {
		return p.Refresh()
	}
	return nil
}

// Verify implements the `-c` verify-only mode's comparison: start a
// streaming flash read at offset and compare it to data in
// readChunkSize bursts, returning ErrVerifyMismatch on the first
// differing byte without reading or comparing any further (spec.md §8's
// S4 scenario).
func (p *Programmer) Verify(data []byte, offset uint32) error {
	if err := p.flash.StartRead(offset); err != nil {
		return err
	}
	for off := 0; off < len(data); off += readChunkSize {
		n := readChunkSize
		if off+n > len(data) {
			n = len(data) - off
		}
		got, err := p.flash.ContinueRead(n)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if got[i] != data[off+i] {
				return fmt.Errorf("%w: at offset %#x: got %#02x want %#02x",
					ErrVerifyMismatch, offset+uint32(off+i), got[i], data[off+i])
			}
		}
	}
	return nil
}

// VerifyOnly implements the `-c` mode in full: release the
// configuration interface, reset the flash, then Verify data against
// what is already programmed at offset. No erase or program pass runs.
func (p *Programmer) VerifyOnly(data []byte, offset uint32) error {
	if _, err := p.ensureIdentity(); err != nil {
		return err
	}
	if _, err := p.resetToSPI(); err != nil {
		return err
	}
	return p.Verify(data, offset)
}

// Read implements mode 4: release the configuration interface, reset
// the flash, then stream size bytes starting at offset to w in
// readChunkSize bursts.
func (p *Programmer) Read(w io.Writer, offset uint32, size int) error {
	if _, err := p.ensureIdentity(); err != nil {
		return err
	}
	if _, err := p.resetToSPI(); err != nil {
		return err
	}
	if err := p.flash.StartRead(offset); err != nil {
		return err
	}
	for remaining := size; remaining > 0; {
		n := readChunkSize
		if n > remaining {
			n = remaining
		}
		buf, err := p.flash.ContinueRead(n)
		if err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// EraseOnly implements mode 5 (`-e <size>`): the same block- or
// bulk-erase computation ProgramFlash's erase pass uses, treating size
// as the file size that would have been written, but never programs or
// verifies anything.
func (p *Programmer) EraseOnly(size int, offset uint32, strategy EraseStrategy, blockSize uint32) error {
	if _, err := p.ensureIdentity(); err != nil {
		return err
	}
	if _, err := p.resetToSPI(); err != nil {
		return err
	}
	return p.eraseRange(strategy, offset, size, blockSize)
}
