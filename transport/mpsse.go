// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// MPSSE is Multi-Protocol Synchronous Serial Engine.
//
// MPSSE basics:
// http://www.ftdichip.com/Support/Documents/AppNotes/AN_135_MPSSE_Basics.pdf

package transport

import "errors"

const (
	dataOut     byte = 0x10 // enable TDI output, default on rising edge
	dataIn      byte = 0x20 // enable TDO input, default on rising edge
	dataOutFall byte = 0x01 // TDI changes on falling edge instead of rising
	dataLSBF    byte = 0x08 // LSB first instead of MSB first
	dataBit     byte = 0x02 // bit mode instead of byte mode

	// TMS operation: bits 6..0 go to the TMS pin LSB first; bit 7 is held
	// static on TDI for the duration of the TMS clocking.
	tmsOutLSBFFall byte = 0x4B
	tmsIOLSBInFall byte = 0x6B

	gpioSetD byte = 0x80

	internalLoopbackDisable byte = 0x85

	clockDivBy5Disable byte = 0x8A // 60MHz base clock (hi-speed)
	clockDivBy5Enable  byte = 0x8B // 6MHz base clock, matches TCK=6MHz/div
	clockSetDivisor    byte = 0x86
	clock2Phase        byte = 0x8D
	clockNormal        byte = 0x97
	clockOnShort       byte = 0x8E // enable clock [1,8] pulses, no data
	clockOnLong        byte = 0x8F // enable clock [8,524288] pulses in 8s

	flush byte = 0x87
)

// Shift clocks nBits of tdi out LSB-first and captures nBits of tdo back
// into the returned slice, LSB-first, with unused high bits of the last
// byte zero. If advance is true, TMS is raised on the very last bit so
// the TAP leaves Shift-<X> into Exit1-<X>; otherwise TMS stays low and
// the TAP remains in Shift-<X>.
func (d *Device) Shift(tdi []byte, nBits int, advance bool) ([]byte, error) {
	if nBits <= 0 {
		return nil, errors.New("transport: Shift requires nBits > 0")
	}
	if n := (nBits + 7) / 8; len(tdi) < n {
		return nil, errors.New("transport: tdi buffer shorter than nBits")
	}
	tdo := make([]byte, (nBits+7)/8)

	bitsForByteAndResidual := nBits
	if advance {
		bitsForByteAndResidual = nBits - 1
	}
	wholeBytes := bitsForByteAndResidual / 8
	residual := bitsForByteAndResidual % 8

	bitPos := 0
	if wholeBytes > 0 {
		out, err := d.shiftBytes(tdi[:wholeBytes], true)
		if err != nil {
			return nil, err
		}
		copy(tdo[:wholeBytes], out)
		bitPos = wholeBytes * 8
	}
	if residual > 0 {
		b := byteAt(tdi, bitPos, residual)
		r, err := d.shiftBits(b, residual, true)
		if err != nil {
			return nil, err
		}
		setBitsAt(tdo, bitPos, residual, r)
		bitPos += residual
	}
	if advance {
		lastBit := bitAt(tdi, nBits-1)
		r, err := d.shiftLastWithTMS(lastBit)
		if err != nil {
			return nil, err
		}
		setBitsAt(tdo, bitPos, 1, boolToByte(r))
	}
	return tdo, nil
}

// ClockTMS drives a sequence of TMS values (such as a path from the jtag
// package's precomputed transition table), TDI held low, and discards
// TDO. It issues one MPSSE TMS command per 7 values.
func (d *Device) ClockTMS(tms []bool) error {
	for len(tms) > 0 {
		n := len(tms)
		if n > 7 {
			n = 7
		}
		var b byte
		for i := 0; i < n; i++ {
			if tms[i] {
				b |= 1 << uint(i)
			}
		}
		cmd := []byte{tmsOutLSBFFall, byte(n - 1), b}
		if _, err := d.write(cmd); err != nil {
			return err
		}
		tms = tms[n:]
	}
	return nil
}

// IdlePulses clocks n TCK pulses with TMS/TDI held static, used after
// vendor JTAG commands that require an idle settle period.
func (d *Device) IdlePulses(n int) error {
	for n > 0 {
		if n <= 8 {
			cmd := []byte{clockOnShort, byte(n - 1)}
			if _, err := d.write(cmd); err != nil {
				return err
			}
			return nil
		}
		chunk := n
		if chunk > 524288 {
			chunk = 524288
		}
		chunk -= chunk % 8
		if chunk == 0 {
			chunk = 8
		}
		length := chunk/8 - 1
		cmd := []byte{clockOnLong, byte(length), byte(length >> 8)}
		if _, err := d.write(cmd); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// shiftBytes clocks whole bytes of TDI out LSB-first, capturing TDO.
func (d *Device) shiftBytes(w []byte, capture bool) ([]byte, error) {
	l := len(w)
	op := dataOut | dataOutFall | dataLSBF
	if capture {
		op |= dataIn
	}
	cmd := []byte{op, byte(l - 1), byte((l - 1) >> 8)}
	cmd = append(cmd, w...)
	if capture {
		cmd = append(cmd, flush)
	}
	if _, err := d.write(cmd); err != nil {
		return nil, err
	}
	if !capture {
		return nil, nil
	}
	r := make([]byte, l)
	ctx, cancel := ioTimeout()
	defer cancel()
	_, err := d.readAll(ctx, r)
	return r, err
}

// shiftBits clocks 1..8 bits of TDI (packed LSB-first in the low bits of
// w) out, capturing TDO into the returned byte's low bits.
func (d *Device) shiftBits(w byte, nBits int, capture bool) (byte, error) {
	op := dataBit | dataOut | dataOutFall | dataLSBF
	if capture {
		op |= dataIn
	}
	cmd := []byte{op, byte(nBits - 1), w}
	if capture {
		cmd = append(cmd, flush)
	}
	if _, err := d.write(cmd); err != nil {
		return 0, err
	}
	if !capture {
		return 0, nil
	}
	var b [1]byte
	ctx, cancel := ioTimeout()
	defer cancel()
	if _, err := d.readAll(ctx, b[:]); err != nil {
		return 0, err
	}
	// The FTDI MPSSE engine always left-justifies a partial-byte capture
	// (first bit clocked lands in bit 7) regardless of the LSBF flag, so
	// shift down to get an LSB-packed value matching the write side.
	return b[0] >> uint(8-nBits), nil
}

// shiftLastWithTMS clocks exactly one bit of TDI while raising TMS for
// one clock, capturing the TDO bit sampled on that clock. This is the
// standard MPSSE trick for leaving Shift-<X> on the final bit of a scan
// without an extra, separate TMS-only clock.
func (d *Device) shiftLastWithTMS(tdi bool) (bool, error) {
	b := byte(0x01) // TMS=1 for one clock
	if tdi {
		b |= 0x80
	}
	cmd := []byte{tmsIOLSBInFall, 0x00, b, flush}
	if _, err := d.write(cmd); err != nil {
		return false, err
	}
	var r [1]byte
	ctx, cancel := ioTimeout()
	defer cancel()
	if _, err := d.readAll(ctx, r[:]); err != nil {
		return false, err
	}
	// TDO is sampled into bit 7 of the reply for a 1-bit TMS-IO op.
	return r[0]&0x80 != 0, nil
}

func bitAt(b []byte, i int) bool {
	return b[i/8]&(1<<uint(i%8)) != 0
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// byteAt extracts n (<=8) bits starting at bit offset start from b,
// packed LSB-first into the returned byte.
func byteAt(b []byte, start, n int) byte {
	var out byte
	for i := 0; i < n; i++ {
		if bitAt(b, start+i) {
			out |= 1 << uint(i)
		}
	}
	return out
}

// setBitsAt writes the low n bits of v (LSB-first) into dst starting at
// bit offset start.
func setBitsAt(dst []byte, start, n int, v byte) {
	for i := 0; i < n; i++ {
		bit := v&(1<<uint(i)) != 0
		idx := start + i
		if bit {
			dst[idx/8] |= 1 << uint(idx%8)
		}
	}
}
