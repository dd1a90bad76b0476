// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package transport drives an FTDI USB bridge in MPSSE mode as the raw
// byte-level link underneath a JTAG TAP driver.
//
// It owns the USB device handle, device selection, MPSSE-mode entry and
// clocking, and the byte/bit-level shift primitives the jtag package
// composes into TAP transitions and scans. It does not know about JTAG
// states, SPI, or flash commands; see the jtag, spiflash and fpga
// packages for those layers.
package transport
