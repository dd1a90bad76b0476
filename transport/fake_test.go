// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package transport

import "periph.io/x/d2xx"

// fakeHandle is a minimal usbHandle stand-in, in the spirit of
// periph-host's d2xxtest.Fake, sized to what this package calls.
type fakeHandle struct {
	vid, pid uint16
	serial   string
	written  []byte
	toRead   []byte
	closed   bool
}

func (f *fakeHandle) Close() d2xx.Err { f.closed = true; return 0 }

func (f *fakeHandle) GetDeviceInfo() (uint32, uint16, uint16, d2xx.Err) {
	return 0, f.vid, f.pid, 0
}

func (f *fakeHandle) SetUSBParameters(in, out int) d2xx.Err                   { return 0 }
func (f *fakeHandle) SetTimeouts(read, write int) d2xx.Err                    { return 0 }
func (f *fakeHandle) SetChars(byte, bool, byte, bool) d2xx.Err                { return 0 }
func (f *fakeHandle) SetLatencyTimer(byte) d2xx.Err                           { return 0 }
func (f *fakeHandle) SetFlowControl() d2xx.Err                                { return 0 }
func (f *fakeHandle) ResetDevice() d2xx.Err                                   { return 0 }
func (f *fakeHandle) SetBitMode(mask, mode byte) d2xx.Err                     { return 0 }
func (f *fakeHandle) GetBitMode() (byte, d2xx.Err)                           { return 0, 0 }

func (f *fakeHandle) GetQueueStatus() (uint32, d2xx.Err) {
	return uint32(len(f.toRead)), 0
}

func (f *fakeHandle) Read(b []byte) (int, d2xx.Err) {
	n := copy(b, f.toRead)
	f.toRead = f.toRead[n:]
	return n, 0
}

func (f *fakeHandle) Write(b []byte) (int, d2xx.Err) {
	f.written = append(f.written, b...)
	return len(b), 0
}

func (f *fakeHandle) EEPROMRead(devType uint32, ee *d2xx.EEPROM) d2xx.Err {
	ee.Serial = f.serial
	return 0
}
