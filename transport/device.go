// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"periph.io/x/d2xx"
)

// defaultVIDPIDs are tried, in order, when no selector is given.
var defaultVIDPIDs = [][2]uint16{
	{0x0403, 0x6010},
	{0x0403, 0x6014},
}

// Selector picks one connected FTDI device among possibly several.
type Selector struct {
	// Kind is "", "d", "i" or "s".
	Kind   string
	Bus    int
	Addr   int
	VID    uint16
	PID    uint16
	Index  int
	Serial string
}

// ParseSelector parses the `-d` device selector grammar: `d:<bus>/<addr>`,
// `i:<vid>:<pid>`, `i:<vid>:<pid>:<index>`, or `s:<vid>:<pid>:<serial>`. An
// empty string selects the first device matching one of the two default
// FTDI VID:PID pairs.
func ParseSelector(s string) (Selector, error) {
	if s == "" {
		return Selector{Kind: ""}, nil
	}
	parts := strings.Split(s, ":")
	switch parts[0] {
	case "d":
		// No raw USB bus/address enumeration is exposed by the d2xx handle
		// surface this transport is built on; see DESIGN.md.
		return Selector{}, errors.New("transport: device selector \"d:<bus>/<addr>\" is not supported by this backend")
	case "i":
		if len(parts) != 3 && len(parts) != 4 {
			return Selector{}, fmt.Errorf("transport: malformed selector %q", s)
		}
		vid, err := parseHex16(parts[1])
		if err != nil {
			return Selector{}, err
		}
		pid, err := parseHex16(parts[2])
		if err != nil {
			return Selector{}, err
		}
		sel := Selector{Kind: "i", VID: vid, PID: pid}
		if len(parts) == 4 {
			idx, err := strconv.Atoi(parts[3])
			if err != nil {
				return Selector{}, fmt.Errorf("transport: malformed selector index %q: %w", parts[3], err)
			}
			sel.Index = idx
		}
		return sel, nil
	case "s":
		if len(parts) != 4 {
			return Selector{}, fmt.Errorf("transport: malformed selector %q", s)
		}
		vid, err := parseHex16(parts[1])
		if err != nil {
			return Selector{}, err
		}
		pid, err := parseHex16(parts[2])
		if err != nil {
			return Selector{}, err
		}
		return Selector{Kind: "s", VID: vid, PID: pid, Serial: parts[3]}, nil
	default:
		return Selector{}, fmt.Errorf("transport: unknown device selector prefix %q", parts[0])
	}
}

func parseHex16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("transport: malformed VID/PID %q: %w", s, err)
	}
	return uint16(v), nil
}

func (s Selector) matches(vid, pid uint16) bool {
	switch s.Kind {
	case "":
		for _, p := range defaultVIDPIDs {
			if vid == p[0] && pid == p[1] {
				return true
			}
		}
		return false
	case "i", "s":
		return vid == s.VID && pid == s.PID
	default:
		return false
	}
}

// candidate resolves a Selector plus a JTAG interface index into the
// enumerated d2xx device index to open.
//
// FTDI multi-channel chips (FT2232H/FT4232H) enumerate each port as a
// separate sequential d2xx device index immediately following the chip's
// other ports. There is no distinct "set interface" call in the d2xx
// surface this package uses, so interfaceIndex is applied as an offset
// from the matched device's own index.
func candidate(open func(int) (usbHandle, d2xx.Err), numDevices func() (int, error), sel Selector, interfaceIndex int) (int, error) {
	n, err := numDevices()
	if err != nil {
		return 0, err
	}
	matchNum := 0
	for i := 0; i < n; i++ {
		h, e := open(i)
		if e != 0 {
			continue
		}
		_, vid, pid, ge := h.GetDeviceInfo()
		if ge != 0 {
			_ = h.Close()
			continue
		}
		if !sel.matches(vid, pid) {
			_ = h.Close()
			continue
		}
		if sel.Kind == "s" {
			ee := d2xx.EEPROM{}
			se := h.EEPROMRead(uint32(vid)<<16|uint32(pid), &ee)
			serial := ee.Serial
			_ = h.Close()
			if se != 0 && se != 15 {
				continue
			}
			if serial != sel.Serial {
				continue
			}
			return i + interfaceIndex, nil
		}
		_ = h.Close()
		if matchNum == sel.Index {
			return i + interfaceIndex, nil
		}
		matchNum++
	}
	return 0, fmt.Errorf("transport: no FTDI device matches selector")
}
