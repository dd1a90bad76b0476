package spiflash

import (
	"errors"
	"fmt"
	"time"
)

// Opcodes of the Winbond W25Q-compatible serial NOR command set this
// layer implements.
const (
	opWriteEnable    byte = 0x06
	opReadStatus1    byte = 0x05
	opWriteStatus1   byte = 0x01
	opReadStatus2    byte = 0x35
	opJEDECID        byte = 0x9F
	opRead           byte = 0x03
	opPageProgram    byte = 0x02
	opSectorErase4K  byte = 0x20
	opBlockErase32K  byte = 0x52
	opBlockErase64K  byte = 0xD8
	opChipErase      byte = 0xC7
)

// PageSize is the serial NOR program granularity.
const PageSize = 256

// SPI is the narrow byte-transfer interface Flash depends on,
// implemented by Bridge.
type SPI interface {
	Xfer(buf []byte) ([]byte, error)
	Send(buf []byte) ([]byte, error)
}

// Flash drives a Winbond-W25Q-compatible serial NOR flash over an SPI
// interface.
type Flash struct {
	spi          SPI
	pollInterval time.Duration
	logf         func(string, ...interface{})
}

// NewFlash returns a Flash driving commands over spi, polling the busy
// bit every 1ms during Wait.
func NewFlash(spi SPI) *Flash {
	return &Flash{spi: spi, pollInterval: time.Millisecond, logf: func(string, ...interface{}) {}}
}

// SetLogf installs a hook invoked with diagnostic messages (protection
// residue warnings, etc). The default is a no-op.
func (f *Flash) SetLogf(logf func(string, ...interface{})) {
	f.logf = logf
}

// WriteEnable sets the write-enable latch. Every WriteEnable must be
// immediately followed, before the next WriteEnable, by exactly one
// program or erase command.
func (f *Flash) WriteEnable() error {
	_, err := f.spi.Xfer([]byte{opWriteEnable})
	return err
}

// ReadStatus1 reads Status Register 1; its bit 0 is the busy flag.
func (f *Flash) ReadStatus1() (byte, error) {
	r, err := f.spi.Xfer([]byte{opReadStatus1, 0x00})
	if err != nil {
		return 0, err
	}
	return r[1], nil
}

// ReadStatus2 reads Status Register 2.
func (f *Flash) ReadStatus2() (byte, error) {
	r, err := f.spi.Xfer([]byte{opReadStatus2, 0x00})
	if err != nil {
		return 0, err
	}
	return r[1], nil
}

// ReadStatus reads both status registers together, matching the
// original tool's combined status read.
func (f *Flash) ReadStatus() (sr1, sr2 byte, err error) {
	if sr1, err = f.ReadStatus1(); err != nil {
		return 0, 0, err
	}
	if sr2, err = f.ReadStatus2(); err != nil {
		return 0, 0, err
	}
	return sr1, sr2, nil
}

// WriteStatus1 writes Status Register 1, used to clear the BP protection
// bits.
func (f *Flash) WriteStatus1(v byte) error {
	_, err := f.spi.Xfer([]byte{opWriteStatus1, v})
	return err
}

// ReadJEDEC reads the 3-byte manufacturer/device ID.
func (f *Flash) ReadJEDEC() ([3]byte, error) {
	r, err := f.spi.Xfer([]byte{opJEDECID, 0, 0, 0})
	if err != nil {
		return [3]byte{}, err
	}
	var id [3]byte
	copy(id[:], r[1:4])
	return id, nil
}

// Wait polls Status Register 1 until the busy bit has been observed 0 on
// three consecutive polls, guarding against momentary false-idle during
// state transitions. There is no timeout: a genuinely stuck flash is
// expected to require a power cycle, not a retry.
func (f *Flash) Wait() error {
	idle := 0
	for idle < 3 {
		sr1, err := f.ReadStatus1()
		if err != nil {
			return err
		}
		if sr1&0x01 == 0 {
			idle++
		} else {
			idle = 0
		}
		if idle < 3 {
			time.Sleep(f.pollInterval)
		}
	}
	return nil
}

func addr3(addr uint32) []byte {
	return []byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// PageProgram writes up to PageSize bytes at addr. The caller is
// responsible for not crossing a 256-byte page boundary; use SplitPages
// to compute a conforming call sequence for an arbitrary range.
func (f *Flash) PageProgram(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) > PageSize {
		return fmt.Errorf("spiflash: page program of %d bytes exceeds page size %d", len(data), PageSize)
	}
	if (addr%PageSize)+uint32(len(data)) > PageSize {
		return errors.New("spiflash: page program crosses a 256-byte boundary")
	}
	if err := f.WriteEnable(); err != nil {
		return err
	}
	cmd := append([]byte{opPageProgram}, addr3(addr)...)
	cmd = append(cmd, data...)
	if _, err := f.spi.Xfer(cmd); err != nil {
		return err
	}
	return f.Wait()
}

// Program writes data at offset, splitting it into page-program calls
// with SplitPages.
func (f *Flash) Program(offset uint32, data []byte) error {
	for _, p := range SplitPages(offset, len(data)) {
		rel := p.Offset - offset
		if err := f.PageProgram(p.Offset, data[rel:rel+uint32(p.Length)]); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flash) erase(op byte, addr uint32) error {
	if err := f.WriteEnable(); err != nil {
		return err
	}
	cmd := append([]byte{op}, addr3(addr)...)
	if _, err := f.spi.Xfer(cmd); err != nil {
		return err
	}
	return f.Wait()
}

// SectorErase4K erases the 4KiB sector containing addr.
func (f *Flash) SectorErase4K(addr uint32) error { return f.erase(opSectorErase4K, addr) }

// BlockErase32K erases the 32KiB block containing addr.
func (f *Flash) BlockErase32K(addr uint32) error { return f.erase(opBlockErase32K, addr) }

// BlockErase64K erases the 64KiB block containing addr.
func (f *Flash) BlockErase64K(addr uint32) error { return f.erase(opBlockErase64K, addr) }

// ChipErase erases the entire flash.
func (f *Flash) ChipErase() error {
	if err := f.WriteEnable(); err != nil {
		return err
	}
	if _, err := f.spi.Xfer([]byte{opChipErase}); err != nil {
		return err
	}
	return f.Wait()
}

// StartRead begins a streaming read at addr, sending the RD opcode and
// address with Send so chip-select stays asserted for the following
// ContinueRead calls.
func (f *Flash) StartRead(addr uint32) error {
	cmd := append([]byte{opRead}, addr3(addr)...)
	_, err := f.spi.Send(cmd)
	return err
}

// ContinueRead clocks n zero bytes and returns the captured response,
// continuing a read started by StartRead. An arbitrarily long read is
// served by repeated ContinueRead calls following one StartRead.
func (f *Flash) ContinueRead(n int) ([]byte, error) {
	return f.spi.Send(make([]byte, n))
}

// DisableProtection clears Status Register 1 to disable write
// protection, waits for the write to complete, then reads SR1 back. A
// nonzero residual value is not treated as fatal here — some parts do
// not accept fully-cleared protection bits — the caller decides whether
// to escalate it.
func (f *Flash) DisableProtection() (residual byte, err error) {
	if err := f.WriteEnable(); err != nil {
		return 0, err
	}
	if err := f.WriteStatus1(0x00); err != nil {
		return 0, err
	}
	if err := f.Wait(); err != nil {
		return 0, err
	}
	sr1, err := f.ReadStatus1()
	if err != nil {
		return 0, err
	}
	if sr1 != 0 {
		f.logf("spiflash: status register 1 residue after disable-protection: %#02x", sr1)
	}
	return sr1, nil
}
