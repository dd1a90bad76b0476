package fpga

import "github.com/greatnortherncircuits/ecpprog/jtag"

// JTAG instruction register opcodes for the Lattice ECP5/Nexus
// configuration interface. The original tool pulls these from a vendor
// header that ships with no public source distribution; the values
// below are the ones documented across the Lattice JTAG programming
// literature and reproduced in every open-source ECP5/NX programmer,
// recorded here directly since no machine-readable copy of that header
// travels with this port.
const (
	irIDCode            byte = 0xE0
	irLSCReadStatus     byte = 0x3C
	irISCEnable         byte = 0xC6
	irISCEnableX        byte = 0x74
	irISCDisable        byte = 0x26
	irISCErase          byte = 0x0E
	irISCProgramDone    byte = 0x5E
	irLSCInitAddress    byte = 0x46
	irLSCBitstreamBurst byte = 0x7A
	irLSCResetCRC       byte = 0x3B
	irLSCProgSPI        byte = 0x3A
	irLSCRefresh        byte = 0x79
	irBypass            byte = 0xFF
)

// idleSettleTicks is the number of TCK pulses issued in Run-Test/Idle
// after a command that needs time to take effect inside the device,
// matching the original tool's jtag_wait_time(32) calls.
const idleSettleTicks = 32

// Clock is the idle-pulse primitive a Device needs beyond TAP state and
// shift access, implemented by transport.Device.
type Clock interface {
	IdlePulses(n int) error
}

// Device drives the Lattice configuration JTAG instructions over a TAP.
type Device struct {
	tap   *jtag.TAP
	clock Clock
}

// New returns a Device driving configuration commands over tap, idling
// the clock through clock between commands that need settling time.
func New(tap *jtag.TAP, clock Clock) *Device {
	return &Device{tap: tap, clock: clock}
}

func (d *Device) shiftIR(cmd byte) error {
	_, err := d.tap.Shift(false, []byte{cmd}, 8, true)
	return err
}

func (d *Device) shiftIRParam(cmd, param byte) error {
	if err := d.shiftIR(cmd); err != nil {
		return err
	}
	_, err := d.tap.Shift(true, []byte{param}, 8, true)
	return err
}

// command shifts cmd into IR, returns to Run-Test/Idle and waits for
// the device to settle, matching the original tool's ecp_jtag_cmd.
func (d *Device) command(cmd byte) error {
	if err := d.shiftIR(cmd); err != nil {
		return err
	}
	if err := d.tap.GoTo(jtag.RunTestIdle); err != nil {
		return err
	}
	return d.clock.IdlePulses(idleSettleTicks)
}

// command8 shifts cmd into IR followed by an 8-bit param into DR, then
// settles in Run-Test/Idle, matching ecp_jtag_cmd8.
func (d *Device) command8(cmd, param byte) error {
	if err := d.shiftIRParam(cmd, param); err != nil {
		return err
	}
	if err := d.tap.GoTo(jtag.RunTestIdle); err != nil {
		return err
	}
	return d.clock.IdlePulses(idleSettleTicks)
}

// ISCEnable enters In-System-Configuration mode.
func (d *Device) ISCEnable() error { return d.command8(irISCEnable, 0) }

// ISCErase erases the SRAM configuration memory (and, when targeting
// the flash-backed configuration, the non-volatile sectors the device
// maps over JTAG).
func (d *Device) ISCErase() error { return d.command8(irISCErase, 0) }

// ISCDisable leaves In-System-Configuration mode.
func (d *Device) ISCDisable() error { return d.command(irISCDisable) }

// LSCResetCRC resets the bitstream CRC accumulator before a burst load.
func (d *Device) LSCResetCRC() error { return d.command8(irLSCResetCRC, 0) }

// LSCBitstreamBurst shifts the instruction that puts the device into
// streaming bitstream-burst mode; the caller is responsible for
// following it with the bitstream DR shift.
func (d *Device) LSCBitstreamBurst() error { return d.command(irLSCBitstreamBurst) }

// LSCRefresh reconfigures the device from its currently selected
// configuration source without a power cycle.
func (d *Device) LSCRefresh() error { return d.command(irLSCRefresh) }

// EnterSPIBackgroundMode shifts the LSC_PROG_SPI instruction and its
// two-byte unlock payload that tunnels the SPI flash through JTAG,
// matching the byte sequence enter_spi_background_mode sends (0xFE,
// 0x68 are required by the device to admit the tunnel; their meaning
// is undocumented even in the original tool).
func (d *Device) EnterSPIBackgroundMode() error {
	if err := d.shiftIR(irLSCProgSPI); err != nil {
		return err
	}
	if _, err := d.tap.Shift(true, []byte{0xFE, 0x68}, 16, true); err != nil {
		return err
	}
	return d.tap.GoTo(jtag.RunTestIdle)
}
