package program

import (
	"github.com/greatnortherncircuits/ecpprog/fpga"
	"github.com/greatnortherncircuits/ecpprog/jtag"
	"github.com/greatnortherncircuits/ecpprog/spiflash"
)

// Link is the byte-level primitive a Programmer drives: a jtag.Link for
// TMS/TDI/TDO shifting plus the idle-pulse capability the vendor JTAG
// commands need to settle. transport.Device implements both.
type Link interface {
	jtag.Link
	fpga.Clock
}

// Programmer owns one JTAG TAP for the duration of a run and composes
// the fpga and spiflash packages to drive it through the modes spec.md
// §4.F names. It is not safe for concurrent use; the whole core is
// single-threaded by design.
type Programmer struct {
	tap    *jtag.TAP
	dev    *fpga.Device
	bridge *spiflash.Bridge
	flash  *spiflash.Flash

	identified bool
	identity   fpga.Identity

	logf func(string, ...interface{})
}

// New returns a Programmer driving link. The TAP's tracked state starts
// at Test-Logic-Reset, matching the state a transport leaves the
// hardware in immediately after init.
func New(link Link) *Programmer {
	tap := jtag.New(link)
	p := &Programmer{
		tap:    tap,
		dev:    fpga.New(tap, link),
		bridge: spiflash.NewBridge(tap),
		logf:   func(string, ...interface{}) {},
	}
	p.flash = spiflash.NewFlash(p.bridge)
	p.flash.SetLogf(func(format string, args ...interface{}) { p.logf(format, args...) })
	return p
}

// SetLogf installs a hook invoked with diagnostic messages (protection
// residue warnings, etc). The default is a no-op.
func (p *Programmer) SetLogf(logf func(string, ...interface{})) {
	p.logf = logf
}

// Identity returns the device identity read during the most recent mode
// call, or the zero value if no mode has run yet.
func (p *Programmer) Identity() fpga.Identity {
	return p.identity
}

// ensureIdentity reads the IDCODE and an initial status register once
// per Programmer, matching the original tool's unconditional
// read_idcode()/read_status_register() prologue before dispatching on
// mode. A device whose IDCODE matches neither vendor table aborts here,
// before any vendor JTAG sequence is issued (spec.md §9's resolution of
// the "unknown IDCODE" open question).
func (p *Programmer) ensureIdentity() (fpga.Identity, error) {
	if p.identified {
		return p.identity, nil
	}
	id, err := fpga.Identify(p.tap)
	if err != nil {
		return fpga.Identity{}, err
	}
	if _, err := p.dev.ReadStatus(id.Family); err != nil {
		return fpga.Identity{}, err
	}
	p.identity = id
	p.identified = true
	return id, nil
}

// resetToSPI releases the configuration interface (ISC_ENABLE/ISC_ERASE/
// ISC_DISABLE), enters SPI background mode, resets the attached flash,
// and reads its JEDEC ID — the common prologue shared by every mode that
// talks to the flash (test, flash program+verify, read, erase-only).
func (p *Programmer) resetToSPI() ([3]byte, error) {
	if err := p.dev.ISCEnable(); err != nil {
		return [3]byte{}, err
	}
	if err := p.dev.ISCErase(); err != nil {
		return [3]byte{}, err
	}
	if err := p.dev.ISCDisable(); err != nil {
		return [3]byte{}, err
	}
	if err := p.dev.EnterSPIBackgroundMode(); err != nil {
		return [3]byte{}, err
	}
	if err := p.bridge.Reset(); err != nil {
		return [3]byte{}, err
	}
	return p.flash.ReadJEDEC()
}

// TestResult is the diagnostic data gathered by Test.
type TestResult struct {
	Identity fpga.Identity
	Status   uint64
	JEDEC    [3]byte
	SR1, SR2 byte
}

// Test implements mode 1 (spec.md §4.F): read IDCODE and status, release
// the configuration interface, enter SPI background mode, reset the
// flash, and read its JEDEC ID and status registers — a connectivity
// check with no write side effects.
func (p *Programmer) Test() (TestResult, error) {
	id, err := p.ensureIdentity()
	if err != nil {
		return TestResult{}, err
	}
	status, err := p.dev.ReadStatus(id.Family)
	if err != nil {
		return TestResult{}, err
	}
	jedec, err := p.resetToSPI()
	if err != nil {
		return TestResult{}, err
	}
	sr1, sr2, err := p.flash.ReadStatus()
	if err != nil {
		return TestResult{}, err
	}
	return TestResult{Identity: id, Status: status, JEDEC: jedec, SR1: sr1, SR2: sr2}, nil
}

// Refresh issues LSC_REFRESH, rebooting the device from its currently
// selected configuration source. Front-ends call this after any mode
// when the `-a` equivalent option is requested.
func (p *Programmer) Refresh() error {
	return p.dev.LSCRefresh()
}
