package bus

import (
	"bytes"
	"testing"

	"nescore/internal/apu"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
	"nescore/internal/ppu"
)

func buildNROM(prgBanks uint8) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(prgBanks)
	buf.WriteByte(1)
	buf.Write(make([]byte, 10))
	buf.Write(make([]byte, int(prgBanks)*16384))
	buf.Write(make([]byte, 8192))
	return buf.Bytes()
}

func newTestBus(t *testing.T) (*Bus, *cpu.CPU) {
	t.Helper()
	cart, err := cartridge.LoadFromReader(bytes.NewReader(buildNROM(1)))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	b := New(ppu.NTSC)
	p := ppu.New(ppu.NTSC)
	a := apu.New()
	pad1, pad2 := input.New(), input.New()

	b.SetCartridge(cart)
	b.SetPPU(p)
	b.SetAPU(a)
	b.SetControllers(pad1, pad2)

	c := cpu.New(b)
	b.SetCPU(c)
	p.SetNMICallback(func(level bool) { c.SetNMILine(level) })
	a.SetDMCReader(b)

	return b, c
}

func TestRAMMirrorsAcrossFourPages(t *testing.T) {
	b, _ := newTestBus(t)
	b.WriteCycle(0x0042, 0x99)
	for _, addr := range []uint16{0x0842, 0x1042, 0x1842} {
		if got := b.ReadCycle(addr); got != 0x99 {
			t.Fatalf("read %#x = %#x, want 0x99 (RAM mirror)", addr, got)
		}
	}
}

func TestPPURegisterMirrorEveryEightBytes(t *testing.T) {
	b, _ := newTestBus(t)
	b.WriteCycle(0x2000, 0x80)
	b.WriteCycle(0x2006, 0x21)
	b.WriteCycle(0x2006, 0x08)
	b.WriteCycle(0x2007, 0xAB)
	b.WriteCycle(0x3FF6, 0x21) // mirrors $2006
	b.WriteCycle(0x3FF6, 0x08)
	b.ReadCycle(0x3FF7)               // mirrors $2007: primes the read buffer with 0xAB
	if got := b.ReadCycle(0x3FF7); got != 0xAB {
		t.Fatalf("$3FF7 buffered read = %#x, want 0xAB (written through $2007 earlier)", got)
	}
}

func TestControllerStrobeAndShiftThroughBus(t *testing.T) {
	b, _ := newTestBus(t)
	pad := input.New()
	b.SetControllers(pad, input.New())
	pad.SetButton(input.ButtonA, true)
	pad.SetButton(input.ButtonStart, true)

	b.WriteCycle(0x4016, 0x01)
	b.WriteCycle(0x4016, 0x00)
	if got := b.ReadCycle(0x4016) & 0x01; got != 1 {
		t.Fatalf("first bit = %d, want 1 (A pressed)", got)
	}
	b.ReadCycle(0x4016) // B
	b.ReadCycle(0x4016) // Select
	if got := b.ReadCycle(0x4016) & 0x01; got != 1 {
		t.Fatalf("fourth bit = %d, want 1 (Start pressed)", got)
	}
}

func TestControllerTwoReadHasBitSixSet(t *testing.T) {
	b, _ := newTestBus(t)
	if got := b.ReadCycle(0x4017) & 0x40; got == 0 {
		t.Fatal("$4017 reads should always report bit 6 set")
	}
}

func TestCartridgeVisibleAtPRGWindow(t *testing.T) {
	b, _ := newTestBus(t)
	if got := b.ReadCycle(0xFFFC); got != 0 {
		t.Fatalf("reset vector low byte = %#x, want 0 for an all-zero PRG image", got)
	}
}

func TestOAMDMAFillsOAMFromRAMPage(t *testing.T) {
	b, c := newTestBus(t)
	for i := 0; i < 256; i++ {
		b.WriteCycle(0x0200+uint16(i), uint8(i))
	}
	b.WriteCycle(0x2003, 0x00)
	b.WriteCycle(0x4014, 0x02)
	for i := 0; i < 514; i++ {
		c.StepCycle()
	}
	b.WriteCycle(0x2003, 0x05)
	if got := b.ReadCycle(0x2004); got != 5 {
		t.Fatalf("oam[5] = %d, want 5 after DMA from page $02", got)
	}
}

func TestPPUStepsThreeDotsPerCPUCycleOnNTSC(t *testing.T) {
	b, _ := newTestBus(t)
	for i := 0; i < 10; i++ {
		b.IdleCycle()
	}
	if b.TotalCycles() != 10 {
		t.Fatalf("TotalCycles = %d, want 10", b.TotalCycles())
	}
	// A 262x341 = 89342-dot frame (rendering off) completes on CPU cycle
	// 29781 (89343 dots), not on cycle 29780 (89340 dots).
	for b.TotalCycles() < 29780 {
		b.IdleCycle()
	}
	if got := b.PPUFrame(); got != 0 {
		t.Fatalf("frame = %d after 29780 cycles, want 0 (89340 dots)", got)
	}
	b.IdleCycle()
	if got := b.PPUFrame(); got != 1 {
		t.Fatalf("frame = %d after 29781 cycles, want 1 (89343 dots)", got)
	}
}

func TestPALCyclePatternAveragesToPointTwo(t *testing.T) {
	b := New(ppu.PAL)
	p := ppu.New(ppu.PAL)
	b.SetPPU(p)
	for i := 0; i < 5; i++ {
		b.IdleCycle()
	}
	// 3+3+3+3+4 = 16 dots over 5 CPU cycles, averaging 3.2 dots/cycle.
	if got := p.Frame(); got != 0 {
		t.Fatalf("frame = %d, want 0 (16 dots never completes a 312-scanline frame)", got)
	}
	if b.palCounter != 5 {
		t.Fatalf("palCounter = %d, want 5 after five cycles", b.palCounter)
	}
	// A 312x341 = 106392-dot frame: 33245 cycles give 6649x16 = 106384
	// dots, then 3 more per cycle reach 106390 at cycle 33247 and complete
	// the frame on cycle 33248.
	for i := 5; i < 33247; i++ {
		b.IdleCycle()
	}
	if got := p.Frame(); got != 0 {
		t.Fatalf("frame = %d after 33247 cycles, want 0 (106390 dots)", got)
	}
	b.IdleCycle()
	if got := p.Frame(); got != 1 {
		t.Fatalf("frame = %d after 33248 cycles, want 1 (106393 dots)", got)
	}
}
