// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/d2xx"
)

// usbHandle is the subset of d2xx.Handle this package calls. It exists so
// tests can substitute a fake without a real FTDI device attached.
type usbHandle interface {
	Close() d2xx.Err
	GetDeviceInfo() (uint32, uint16, uint16, d2xx.Err)
	SetUSBParameters(in, out int) d2xx.Err
	SetTimeouts(read, write int) d2xx.Err
	SetChars(event byte, eventEn bool, errChar byte, errEn bool) d2xx.Err
	SetLatencyTimer(ms byte) d2xx.Err
	SetFlowControl() d2xx.Err
	ResetDevice() d2xx.Err
	SetBitMode(mask, mode byte) d2xx.Err
	GetBitMode() (byte, d2xx.Err)
	GetQueueStatus() (uint32, d2xx.Err)
	Read(b []byte) (int, d2xx.Err)
	Write(b []byte) (int, d2xx.Err)
	EEPROMRead(devType uint32, ee *d2xx.EEPROM) d2xx.Err
}

type bitMode uint8

const (
	bitModeReset bitMode = 0x00
	bitModeMpsse bitMode = 0x02
)

// Device is an FTDI USB bridge opened in MPSSE mode, ready to drive a
// JTAG TAP. It implements jtag.Link.
type Device struct {
	h        usbHandle
	venID    uint16
	devID    uint16
	clockHz  physic.Frequency
}

// Open resolves selector, opens the matching device on the given JTAG
// interface (0..3 for ports A..D), enters MPSSE mode and programs the
// clock divider so the effective TCK rate is 6 MHz / clockDiv.
func Open(selector string, interfaceIndex int, clockDiv int) (*Device, error) {
	return open(openD2XX, numDevices, selector, interfaceIndex, clockDiv)
}

// openD2XX adapts d2xx.Open to the narrower usbHandle interface this
// package depends on, so tests can substitute a fake without pulling in
// every d2xx.Handle method (EEPROM programming, UART baud rate, etc.)
// that this transport never calls.
func openD2XX(i int) (usbHandle, d2xx.Err) {
	return d2xx.Open(i)
}

func open(opener func(int) (usbHandle, d2xx.Err), numDev func() (int, error), selector string, interfaceIndex int, clockDiv int) (*Device, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	idx, err := candidate(opener, numDev, sel, interfaceIndex)
	if err != nil {
		return nil, err
	}
	h, e := opener(idx)
	if e != 0 {
		return nil, toErr("Open", e)
	}
	_, vid, did, ge := h.GetDeviceInfo()
	if ge != 0 {
		_ = h.Close()
		return nil, toErr("GetDeviceInfo", ge)
	}
	d := &Device{h: h, venID: vid, devID: did}
	if err := d.init(); err != nil {
		_ = h.Close()
		return nil, err
	}
	if err := d.initMPSSE(clockDiv); err != nil {
		_ = h.Close()
		return nil, err
	}
	return d, nil
}

func numDevices() (int, error) {
	n, e := d2xx.CreateDeviceInfoList()
	if e != 0 {
		return 0, toErr("CreateDeviceInfoList", e)
	}
	return n, nil
}

// init resets the device and purges, performs the common USB-level setup,
// then purges again.
func (d *Device) init() error {
	if e := d.h.ResetDevice(); e != 0 {
		return toErr("ResetDevice", e)
	}
	if err := d.SetBitMode(0, bitModeReset); err != nil {
		return err
	}
	_ = d.flush()
	if e := d.h.SetUSBParameters(65536, 0); e != 0 {
		return toErr("SetUSBParameters", e)
	}
	if e := d.h.SetTimeouts(15000, 15000); e != 0 {
		return toErr("SetTimeouts", e)
	}
	if e := d.h.SetChars(0, false, 0, false); e != 0 {
		return toErr("SetChars", e)
	}
	if e := d.h.SetLatencyTimer(1); e != 0 {
		return toErr("SetLatencyTimer", e)
	}
	if e := d.h.SetFlowControl(); e != 0 {
		return toErr("SetFlowControl", e)
	}
	return d.flush()
}

// initMPSSE enables MPSSE bit mode, purges, then programs the ×5 clock,
// divisor, and idle GPIO state per the bridge's init contract: low-byte
// value 0x08, direction 0x0B (TCK/TDI/TMS outputs, TDO input). It then
// clocks five TMS=1 cycles, which leaves the TAP in Test-Logic-Reset.
func (d *Device) initMPSSE(clockDiv int) error {
	if err := d.SetBitMode(0x0b, bitModeMpsse); err != nil {
		return err
	}
	if err := d.flush(); err != nil {
		return err
	}
	f, err := d.setClock(clockDiv)
	if err != nil {
		return err
	}
	d.clockHz = f
	cmd := []byte{clockDivBy5Enable, clockNormal, clock2Phase, internalLoopbackDisable, gpioSetD, 0x08, 0x0b,
		tmsOutLSBFFall, 0x04, 0x1f}
	_, err = d.write(cmd)
	return err
}

// setClock programs the clock divider so TCK runs at 6MHz/clockDiv and
// returns the resulting frequency.
func (d *Device) setClock(clockDiv int) (physic.Frequency, error) {
	if clockDiv < 1 || clockDiv > 65536 {
		return 0, errors.New("transport: clock divider out of range [1, 65536]")
	}
	div := clockDiv - 1
	cmd := []byte{clockSetDivisor, byte(div), byte(div >> 8)}
	if _, err := d.write(cmd); err != nil {
		return 0, err
	}
	return (6 * physic.MegaHertz) / physic.Frequency(clockDiv), nil
}

// Clock returns the effective TCK frequency programmed at Open.
func (d *Device) Clock() physic.Frequency {
	return d.clockHz
}

// Close closes the USB handle; it does not reset the bit mode. Per the
// backend's observed surface there is no latency-timer getter, so unlike
// a hypothetical save/restore this only releases the handle; see
// DESIGN.md.
func (d *Device) Close() error {
	return toErr("Close", d.h.Close())
}

// SetBitMode is exposed for the init sequence and tests; callers
// building on top of Device do not need it directly.
func (d *Device) SetBitMode(mask byte, mode bitMode) error {
	return toErr("SetBitMode", d.h.SetBitMode(mask, byte(mode)))
}

func (d *Device) flush() error {
	var buf [128]byte
	for {
		n, err := d.read(buf[:])
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// read returns as much as is already queued, without blocking.
func (d *Device) read(b []byte) (int, error) {
	p, e := d.h.GetQueueStatus()
	if p == 0 || e != 0 {
		return int(p), toErr("GetQueueStatus", e)
	}
	v := int(p)
	if v > len(b) {
		v = len(b)
	}
	n, e := d.h.Read(b[:v])
	return n, toErr("Read", e)
}

// readAll blocks until len(b) bytes have been read or ctx is done.
func (d *Device) readAll(ctx context.Context, b []byte) (int, error) {
	for offset := 0; offset != len(b); {
		if ctx.Err() != nil {
			return offset, ctx.Err()
		}
		chunk := len(b) - offset
		if chunk > 4096 {
			chunk = 4096
		}
		n, err := d.read(b[offset : offset+chunk])
		offset += n
		if err != nil {
			return offset, err
		}
	}
	return len(b), nil
}

// write blocks until all of b has been written.
func (d *Device) write(b []byte) (int, error) {
	logf("transport: write %d bytes: %x", len(b), b)
	for offset := 0; offset != len(b); {
		chunk := len(b) - offset
		if chunk > 4096 {
			chunk = 4096
		}
		n, e := d.h.Write(b[offset : offset+chunk])
		if e != 0 {
			return offset + n, toErr("Write", e)
		}
		if n != 0 {
			offset += n
		}
	}
	return len(b), nil
}

func toErr(op string, e d2xx.Err) error {
	if e == 0 {
		return nil
	}
	return errors.New("transport: " + op + ": " + e.String())
}

func ioTimeout() (context.Context, func()) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
