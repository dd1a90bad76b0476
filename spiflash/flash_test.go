package spiflash

import (
	"bytes"
	"testing"
)

type fakeSPI struct {
	xferCalls   [][]byte
	sendCalls   [][]byte
	statusQueue []byte
	statusIdx   int
	jedec       [3]byte
	readData    []byte
	readPos     int
}

func (f *fakeSPI) Xfer(buf []byte) ([]byte, error) {
	cp := append([]byte(nil), buf...)
	f.xferCalls = append(f.xferCalls, cp)
	resp := make([]byte, len(buf))
	switch buf[0] {
	case opReadStatus1:
		v := byte(0)
		if f.statusIdx < len(f.statusQueue) {
			v = f.statusQueue[f.statusIdx]
			f.statusIdx++
		}
		resp[1] = v
	case opReadStatus2:
		resp[1] = 0
	case opJEDECID:
		copy(resp[1:], f.jedec[:])
	}
	return resp, nil
}

func (f *fakeSPI) Send(buf []byte) ([]byte, error) {
	cp := append([]byte(nil), buf...)
	f.sendCalls = append(f.sendCalls, cp)
	if len(buf) > 0 && buf[0] == opRead {
		return make([]byte, len(buf)), nil
	}
	n := len(buf)
	end := f.readPos + n
	if end > len(f.readData) {
		end = len(f.readData)
	}
	out := append([]byte(nil), f.readData[f.readPos:end]...)
	f.readPos = end
	return out, nil
}

// TestJEDECScenario pins S1.
func TestJEDECScenario(t *testing.T) {
	spi := &fakeSPI{jedec: [3]byte{0xEF, 0x40, 0x18}}
	f := NewFlash(spi)
	id, err := f.ReadJEDEC()
	if err != nil {
		t.Fatal(err)
	}
	if id != ([3]byte{0xEF, 0x40, 0x18}) {
		t.Fatalf("got %v", id)
	}
}

// TestBusyWaitDebounce pins invariant 6: Wait only returns after three
// consecutive idle polls.
func TestBusyWaitDebounce(t *testing.T) {
	spi := &fakeSPI{statusQueue: []byte{1, 0, 1, 0, 0, 0}}
	f := NewFlash(spi)
	f.pollInterval = 0
	if err := f.Wait(); err != nil {
		t.Fatal(err)
	}
	if spi.statusIdx != 6 {
		t.Fatalf("expected 6 status polls, got %d", spi.statusIdx)
	}
}

// TestProgramPageSplitScenario pins S2: program 400 bytes at offset 100
// issues PP(100, 156 bytes) then PP(256, 244 bytes).
func TestProgramPageSplitScenario(t *testing.T) {
	spi := &fakeSPI{}
	f := NewFlash(spi)
	f.pollInterval = 0
	data := make([]byte, 400)
	for i := range data {
		data[i] = byte(i)
	}
	if err := f.Program(100, data); err != nil {
		t.Fatal(err)
	}
	var pp [][]byte
	for _, c := range spi.xferCalls {
		if c[0] == opPageProgram {
			pp = append(pp, c)
		}
	}
	if len(pp) != 2 {
		t.Fatalf("expected 2 page-program commands, got %d", len(pp))
	}
	wantAddr := []uint32{100, 256}
	wantLen := []int{156, 244}
	for i, c := range pp {
		addr := uint32(c[1])<<16 | uint32(c[2])<<8 | uint32(c[3])
		if addr != wantAddr[i] {
			t.Errorf("page %d addr = %d, want %d", i, addr, wantAddr[i])
		}
		if len(c)-4 != wantLen[i] {
			t.Errorf("page %d length = %d, want %d", i, len(c)-4, wantLen[i])
		}
	}
}

// TestReadContinuation pins invariant 5: StartRead + repeated
// ContinueRead returns the flash contents with no gaps and no command
// opcode bytes mixed in.
func TestReadContinuation(t *testing.T) {
	flashContents := bytes.Repeat([]byte{0xAA, 0x55, 0x10, 0x20}, 300) // 1200 bytes
	spi := &fakeSPI{readData: flashContents}
	f := NewFlash(spi)
	if err := f.StartRead(0x1234); err != nil {
		t.Fatal(err)
	}
	var got []byte
	chunks := []int{100, 400, 700}
	for _, n := range chunks {
		b, err := f.ContinueRead(n)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, b...)
	}
	if !bytes.Equal(got, flashContents) {
		t.Fatalf("read continuation mismatch")
	}
	if len(spi.sendCalls) == 0 || spi.sendCalls[0][0] != opRead {
		t.Fatal("expected StartRead to issue the RD opcode via Send")
	}
}

func TestDisableProtectionResidue(t *testing.T) {
	spi := &fakeSPI{statusQueue: []byte{0, 0, 0, 0x02, 0x02, 0x02}}
	f := NewFlash(spi)
	f.pollInterval = 0
	var logged string
	f.SetLogf(func(format string, v ...interface{}) { logged = format })
	residual, err := f.DisableProtection()
	if err != nil {
		t.Fatal(err)
	}
	if residual != 0x02 {
		t.Fatalf("residual = %#02x, want 0x02", residual)
	}
	if logged == "" {
		t.Fatal("expected a warning to be logged for nonzero residue")
	}
}
