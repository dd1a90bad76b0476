// Package spiflash tunnels a Winbond W25Q-compatible SPI NOR flash
// protocol through a JTAG TAP in SPI-background mode: bit-reversing
// bytes between JTAG's LSB-first shift order and SPI's MSB-first wire
// order, and holding chip-select asserted across multi-burst transfers
// by keeping the TAP in Shift-DR.
package spiflash
