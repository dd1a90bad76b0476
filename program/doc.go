// Package program sequences the Lattice ECP5/NX programming modes (test,
// SRAM configuration, flash program+verify, read, erase-only) by composing
// the jtag, fpga and spiflash packages over a single owned link.
//
// Reading the bitstream or flash image, writing read-back data, managing
// temporary files for non-seekable input, argument parsing and progress
// reporting are all the caller's responsibility; this package only drives
// the JTAG/SPI state machines.
package program
