package program

import (
	"io"

	"github.com/greatnortherncircuits/ecpprog/spiflash"
)

// sramChunkSize is the original tool's bitstream-burst read buffer size.
const sramChunkSize = 16 * 1024

// ProgramSRAM implements mode 2 (spec.md §4.F): ISC_ENABLE, ISC_ERASE,
// LSC_RESET_CRC, a status read, then LSC_BITSTREAM_BURST followed by
// streaming bitstream in 16KiB chunks, bit-reversed, through DR shifts
// with advance=false on every chunk but the last so the scan continues
// across chunk boundaries. ISC_DISABLE and a final status read close out
// the sequence.
func (p *Programmer) ProgramSRAM(bitstream io.Reader) error {
	id, err := p.ensureIdentity()
	if err != nil {
		return err
	}
	if err := p.dev.ISCEnable(); err != nil {
		return err
	}
	if err := p.dev.ISCErase(); err != nil {
		return err
	}
	if err := p.dev.LSCResetCRC(); err != nil {
		return err
	}
	if _, err := p.dev.ReadStatus(id.Family); err != nil {
		return err
	}
	if err := p.dev.LSCBitstreamBurst(); err != nil {
		return err
	}
	if err := p.streamBitstream(bitstream); err != nil {
		return err
	}
	if err := p.dev.ISCDisable(); err != nil {
		return err
	}
	_, err = p.dev.ReadStatus(id.Family)
	return err
}

// streamBitstream reads bitstream in sramChunkSize chunks and shifts
// each, bit-reversed, into DR. It looks one chunk ahead so it knows
// whether the chunk currently in hand is the last one in the stream,
// since only the final chunk's shift may raise TMS and leave Shift-DR.
func (p *Programmer) streamBitstream(bitstream io.Reader) error {
	cur := make([]byte, sramChunkSize)
	n, err := readChunk(bitstream, cur)
	if err != nil {
		return err
	}
	for n > 0 {
		next := make([]byte, sramChunkSize)
		nn, err := readChunk(bitstream, next)
		if err != nil {
			return err
		}
		last := nn == 0
		spiflash.ReverseBytes(cur[:n])
		if _, err := p.tap.Shift(true, cur[:n], n*8, last); err != nil {
			return err
		}
		if last {
			return nil
		}
		cur, n = next, nn
	}
	return nil
}

// readChunk fills buf as full as a single Read pass allows, treating
// end-of-stream as a short but valid final read rather than an error —
// unlike io.ReadFull, which reports io.ErrUnexpectedEOF for a partial
// final chunk.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return n, nil
	}
	return n, err
}
