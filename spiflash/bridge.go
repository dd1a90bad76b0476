package spiflash

import "github.com/greatnortherncircuits/ecpprog/jtag"

// Reverse returns b with its bits in reverse order, used to adapt
// between JTAG's LSB-first shift order and SPI's MSB-first byte order.
func Reverse(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		if b&(1<<uint(i)) != 0 {
			out |= 1 << uint(7-i)
		}
	}
	return out
}

// ReverseBytes reverses the bits of every byte in buf in place and
// returns it.
func ReverseBytes(buf []byte) []byte {
	for i, b := range buf {
		buf[i] = Reverse(b)
	}
	return buf
}

func reversedCopy(buf []byte) []byte {
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = Reverse(b)
	}
	return out
}

// Bridge adapts a JTAG TAP already placed in SPI-background mode into a
// byte-oriented SPI link for the flash command layer.
type Bridge struct {
	tap *jtag.TAP
}

// NewBridge wraps a TAP. The caller must have already driven the FPGA
// into SPI-background mode (see the fpga package) before issuing any
// transfer.
func NewBridge(tap *jtag.TAP) *Bridge {
	return &Bridge{tap: tap}
}

// Xfer performs one complete SPI transaction: bit-reverses buf to
// MSB-first-on-the-wire order, shifts it through Shift-DR with
// advance=true so the final bit deasserts chip-select, then bit-reverses
// the captured response back into MSB-first order for the caller.
func (b *Bridge) Xfer(buf []byte) ([]byte, error) {
	return b.shift(buf, true)
}

// Send is identical to Xfer except it leaves the TAP in Shift-DR
// (advance=false), holding chip-select asserted so a following Send or
// Xfer continues the same transaction.
func (b *Bridge) Send(buf []byte) ([]byte, error) {
	return b.shift(buf, false)
}

func (b *Bridge) shift(buf []byte, advance bool) ([]byte, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	out := reversedCopy(buf)
	resp, err := b.tap.Shift(true, out, len(buf)*8, advance)
	if err != nil {
		return nil, err
	}
	return ReverseBytes(resp), nil
}

// Reset drives 64 all-ones bits then 2 bits then 8 bits in three
// separate Shift-DR bursts, clearing CRM mode, clearing QPI mode, and
// issuing a flash reset respectively. These are raw DR patterns, not SPI
// command bytes, so they bypass the bit-reversal the command layer uses.
func (b *Bridge) Reset() error {
	allOnes := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := b.tap.Shift(true, allOnes, 64, true); err != nil {
		return err
	}
	if _, err := b.tap.Shift(true, []byte{0x03}, 2, true); err != nil {
		return err
	}
	if _, err := b.tap.Shift(true, []byte{0xFF}, 8, true); err != nil {
		return err
	}
	return nil
}
