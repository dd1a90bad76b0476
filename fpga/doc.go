// Package fpga issues the Lattice ECP5/Nexus vendor JTAG command
// sequences: IDCODE read and family dispatch, status register read and
// decode (32-bit for ECP5, 64-bit for NX), SPI-background-mode entry,
// and the ISC/LSC configuration-access command family.
package fpga
