package program

import (
	"fmt"

	"github.com/greatnortherncircuits/ecpprog/jtag"
)

// Winbond-compatible opcodes, duplicated from spiflash's unexported table
// (spec.md §4.D) so the fake flash model below can interpret traffic
// without depending on spiflash's internals.
const (
	opWriteEnable   byte = 0x06
	opReadStatus1   byte = 0x05
	opWriteStatus1  byte = 0x01
	opReadStatus2   byte = 0x35
	opJEDECID       byte = 0x9F
	opRead          byte = 0x03
	opPageProgram   byte = 0x02
	opSectorErase4K byte = 0x20
	opBlockErase32K byte = 0x52
	opBlockErase64K byte = 0xD8
	opChipErase     byte = 0xC7
)

// IR opcodes, duplicated from fpga's unexported table (spec.md §4.E) so
// the fake link can recognize which vendor command is in flight.
const (
	irIDCode            byte = 0xE0
	irLSCReadStatus     byte = 0x3C
	irISCEnable         byte = 0xC6
	irISCDisable        byte = 0x26
	irISCErase          byte = 0x0E
	irLSCBitstreamBurst byte = 0x7A
	irLSCResetCRC       byte = 0x3B
	irLSCProgSPI        byte = 0x3A
	irLSCRefresh        byte = 0x79
)

// jtagEdge and jtagNext duplicate the IEEE-1149.1 transition graph so the
// fake link can track TAP state independent of the jtag package's
// unexported table, the same way jtag's own fakeLink does for its
// internal tests.
type jtagEdge struct{ zero, one jtag.State }

var jtagEdges = map[jtag.State]jtagEdge{
	jtag.TestLogicReset: {jtag.RunTestIdle, jtag.TestLogicReset},
	jtag.RunTestIdle:    {jtag.RunTestIdle, jtag.SelectDR},
	jtag.SelectDR:       {jtag.CaptureDR, jtag.SelectIR},
	jtag.CaptureDR:      {jtag.ShiftDR, jtag.Exit1DR},
	jtag.ShiftDR:        {jtag.ShiftDR, jtag.Exit1DR},
	jtag.Exit1DR:        {jtag.PauseDR, jtag.UpdateDR},
	jtag.PauseDR:        {jtag.PauseDR, jtag.Exit2DR},
	jtag.Exit2DR:        {jtag.ShiftDR, jtag.UpdateDR},
	jtag.UpdateDR:       {jtag.RunTestIdle, jtag.SelectDR},
	jtag.SelectIR:       {jtag.CaptureIR, jtag.TestLogicReset},
	jtag.CaptureIR:      {jtag.ShiftIR, jtag.Exit1IR},
	jtag.ShiftIR:        {jtag.ShiftIR, jtag.Exit1IR},
	jtag.Exit1IR:        {jtag.PauseIR, jtag.UpdateIR},
	jtag.PauseIR:        {jtag.PauseIR, jtag.Exit2IR},
	jtag.Exit2IR:        {jtag.ShiftIR, jtag.UpdateIR},
	jtag.UpdateIR:       {jtag.RunTestIdle, jtag.SelectDR},
}

func jtagNext(s jtag.State, tms bool) jtag.State {
	e := jtagEdges[s]
	if tms {
		return e.one
	}
	return e.zero
}

func reverseBit(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		if b&(1<<uint(i)) != 0 {
			out |= 1 << uint(7-i)
		}
	}
	return out
}

// flashSim is a minimal behavioral model of a Winbond-compatible flash,
// driven one SPI-over-JTAG transaction at a time.
type flashSim struct {
	mem        map[uint32]byte
	sr1        byte
	jedec      [3]byte
	readActive bool
	readAddr   uint32
	eraseCalls []uint32 // addresses passed to any erase opcode, in order
	pageCalls  [][]byte
}

func newFlashSim(jedec [3]byte) *flashSim {
	return &flashSim{mem: map[uint32]byte{}, jedec: jedec}
}

func (f *flashSim) memAt(addr uint32) byte {
	if b, ok := f.mem[addr]; ok {
		return b
	}
	return 0xFF
}

func addrOf(buf []byte) uint32 {
	return uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}

// transact handles one SPI transaction already decoded to real (MSB-first)
// SPI byte order, returning the real SPI response bytes.
func (f *flashSim) transact(buf []byte, advance bool) []byte {
	resp := make([]byte, len(buf))
	if f.readActive {
		for i := range buf {
			resp[i] = f.memAt(f.readAddr)
			f.readAddr++
		}
	} else if len(buf) > 0 {
		switch buf[0] {
		case opWriteEnable:
			f.sr1 |= 0x02
		case opReadStatus1:
			resp[1] = f.sr1
		case opReadStatus2:
			resp[1] = 0
		case opWriteStatus1:
			f.sr1 = 0
		case opJEDECID:
			copy(resp[1:], f.jedec[:])
		case opRead:
			f.readAddr = addrOf(buf)
			f.readActive = true
		case opPageProgram:
			addr := addrOf(buf)
			data := buf[4:]
			cp := append([]byte(nil), data...)
			f.pageCalls = append(f.pageCalls, append([]byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}, cp...))
			for i, b := range data {
				f.mem[addr+uint32(i)] = b
			}
		case opSectorErase4K:
			f.doErase(addrOf(buf), 4*1024)
		case opBlockErase32K:
			f.doErase(addrOf(buf), 32*1024)
		case opBlockErase64K:
			f.doErase(addrOf(buf), 64*1024)
		case opChipErase:
			f.mem = map[uint32]byte{}
		}
	}
	if advance {
		f.readActive = false
	}
	return resp
}

func (f *flashSim) doErase(addr, size uint32) {
	f.eraseCalls = append(f.eraseCalls, addr)
	for a := addr; a < addr+size; a++ {
		delete(f.mem, a)
	}
}

// fakeLink is a Link standing in for a real FTDI/MPSSE transport: it
// tracks TAP state the way real hardware would and, once the simulated
// device has been driven into SPI background mode, routes DR traffic
// into flashSim exactly as the real bridge would (bit-reversed on the
// wire, real SPI order inside).
type fakeLink struct {
	state jtag.State

	idcode     uint32
	statusBits int // 32 or 64
	status     uint64

	lastIR          byte
	awaitingUnlock  bool
	spiMode         bool
	iscEnableCalls  int
	iscEraseCalls   int
	iscDisableCalls int
	resetCRCCalls   int
	burstCalls      int
	refreshCalls    int
	sramBytes       []byte
	burstAdvances   []bool // advance flag of each bitstream DR shift

	flash *flashSim
}

func (l *fakeLink) ClockTMS(tms []bool) error {
	for _, b := range tms {
		l.state = jtagNext(l.state, b)
	}
	return nil
}

func (l *fakeLink) IdlePulses(int) error { return nil }

func (l *fakeLink) Shift(tdi []byte, nBits int, advance bool) ([]byte, error) {
	wasIR := l.state == jtag.ShiftIR
	for i := 0; i < nBits-1; i++ {
		l.state = jtagNext(l.state, false)
	}
	l.state = jtagNext(l.state, advance)

	if wasIR {
		l.lastIR = tdi[0]
		switch l.lastIR {
		case irISCEnable:
			l.iscEnableCalls++
		case irISCErase:
			l.iscEraseCalls++
		case irISCDisable:
			l.iscDisableCalls++
		case irLSCResetCRC:
			l.resetCRCCalls++
		case irLSCBitstreamBurst:
			l.burstCalls++
		case irLSCRefresh:
			l.refreshCalls++
		case irLSCProgSPI:
			l.awaitingUnlock = true
		}
		tdo := make([]byte, len(tdi))
		copy(tdo, tdi)
		return tdo, nil
	}

	switch l.lastIR {
	case irIDCode:
		resp := make([]byte, (nBits+7)/8)
		for i := range resp {
			resp[i] = byte(l.idcode >> uint(8*i))
		}
		return resp, nil
	case irLSCReadStatus:
		if nBits != l.statusBits {
			return nil, fmt.Errorf("fake: status read of %d bits, device register is %d bits", nBits, l.statusBits)
		}
		n := nBits / 8
		resp := make([]byte, n)
		for i := 0; i < n; i++ {
			resp[i] = byte(l.status >> uint(8*i))
		}
		return resp, nil
	case irISCEnable, irISCErase, irISCDisable, irLSCResetCRC:
		return make([]byte, len(tdi)), nil
	case irLSCBitstreamBurst:
		l.sramBytes = append(l.sramBytes, reversedCopyBuf(tdi[:(nBits+7)/8])...)
		l.burstAdvances = append(l.burstAdvances, advance)
		return make([]byte, (nBits+7)/8), nil
	case irLSCProgSPI:
		if l.awaitingUnlock {
			l.awaitingUnlock = false
			l.spiMode = true
			return make([]byte, len(tdi)), nil
		}
		// SPI-over-JTAG traffic: tdi is already bit-reversed (wire
		// order); decode to real SPI bytes, transact, re-reverse the
		// response so the bridge's own reversal recovers MSB-first data.
		real := reversedCopyBuf(tdi[:(nBits+7)/8])
		out := l.flash.transact(real, advance)
		return reversedCopyBuf(out), nil
	}
	return make([]byte, (nBits+7)/8), nil
}

func reversedCopyBuf(buf []byte) []byte {
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = reverseBit(b)
	}
	return out
}
