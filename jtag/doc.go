// Package jtag implements the IEEE-1149.1 TAP (Test Access Port) state
// machine: tracking the current state, computing the shortest TMS
// sequence to reach any other state without incidentally clocking data
// through a Shift-DR/IR state, and performing bit-accurate TDI/TDO
// shifts.
//
// It depends on nothing below it but a small Link interface, implemented
// by the transport package, so it can be driven by any byte/bit-level
// MPSSE backend.
package jtag
