package jtag

import "errors"

// Link is the byte/bit-level primitive a TAP drives. It is implemented
// by the transport package.
type Link interface {
	// ClockTMS drives a sequence of TMS values, TDI held low, and
	// discards TDO.
	ClockTMS(tms []bool) error
	// Shift clocks nBits of tdi out LSB-first, capturing nBits of tdo.
	// If advance is true, TMS is raised on the final bit.
	Shift(tdi []byte, nBits int, advance bool) ([]byte, error)
}

// TAP tracks the JTAG TAP's current state and drives it over a Link.
//
// The zero value is not usable; construct with New. A TAP is not safe
// for concurrent use — the entire core is single-threaded and
// synchronous by design.
type TAP struct {
	link  Link
	state State
}

// New returns a TAP whose tracked state is Test-Logic-Reset, matching
// the state a transport leaves the hardware in immediately after init.
func New(link Link) *TAP {
	return &TAP{link: link, state: TestLogicReset}
}

// State returns the TAP's last-known state. It is only ever written by
// GoTo and Shift, never read externally by this package.
func (t *TAP) State() State {
	return t.state
}

// GoTo drives the TAP to target using the precomputed shortest TMS
// sequence from the current state, never passing through Shift-DR or
// Shift-IR unless target is itself one of those states.
func (t *TAP) GoTo(target State) error {
	if target < 0 || target >= numStates {
		return errors.New("jtag: invalid target state")
	}
	tms := pathTable[t.state][target]
	if len(tms) > 0 {
		if err := t.link.ClockTMS(tms); err != nil {
			return err
		}
	}
	t.state = target
	return nil
}

// Shift performs a bit-accurate scan through the DR (dr=true) or IR
// (dr=false) column: moving into Shift-DR/IR if not already there,
// clocking nBits of tdi out and capturing nBits of tdo, then either
// leaving Shift-<X> into Exit1-<X> (advance=true) or remaining in
// Shift-<X> so a following Shift call continues the same scan.
func (t *TAP) Shift(dr bool, tdi []byte, nBits int, advance bool) ([]byte, error) {
	target := ShiftIR
	if dr {
		target = ShiftDR
	}
	if t.state != target {
		if err := t.GoTo(target); err != nil {
			return nil, err
		}
	}
	tdo, err := t.link.Shift(tdi, nBits, advance)
	if err != nil {
		return nil, err
	}
	if advance {
		if dr {
			t.state = Exit1DR
		} else {
			t.state = Exit1IR
		}
	}
	return tdo, nil
}
