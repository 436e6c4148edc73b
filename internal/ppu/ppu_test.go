package ppu

import "testing"

type fakeMapper struct {
	chr    [0x2000]uint8
	mirror MirrorMode
	a12Rises int
}

func (m *fakeMapper) ReadCHR(addr uint16) uint8      { return m.chr[addr] }
func (m *fakeMapper) WriteCHR(addr uint16, v uint8)  { m.chr[addr] = v }
func (m *fakeMapper) Mirror() MirrorMode             { return m.mirror }
func (m *fakeMapper) ClockA12(rising bool) {
	if rising {
		m.a12Rises++
	}
}

func newTestPPU() (*PPU, *fakeMapper) {
	p := New(NTSC)
	m := &fakeMapper{mirror: MirrorVertical}
	p.SetMapper(m)
	return p, m
}

func stepN(p *PPU, n int) {
	for i := 0; i < n; i++ {
		p.Step()
	}
}

func TestPPUCTRLWriteUpdatesTNametableBits(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0, 0x03)
	if p.t&0x0C00 != 0x0C00 {
		t.Fatalf("t = %#x, want nametable select bits set", p.t)
	}
}

func TestPPUSCROLLWriteSequence(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(5, 0x7D) // first write: coarse X + fine X
	if p.x != 0x05 {
		t.Fatalf("fine X = %d, want 5", p.x)
	}
	p.WriteRegister(5, 0x5E) // second write: coarse Y + fine Y
	if p.w {
		t.Fatal("write toggle should be false after second write")
	}
}

func TestPPUADDRSetsVOnSecondWrite(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(6, 0x21)
	p.WriteRegister(6, 0x08)
	if p.v != 0x2108 {
		t.Fatalf("v = %#x, want 0x2108", p.v)
	}
}

func TestPPUDATAReadIsBufferedExceptPalette(t *testing.T) {
	p, m := newTestPPU()
	m.chr[0x0010] = 0xAB
	p.WriteRegister(6, 0x00)
	p.WriteRegister(6, 0x10)
	first := p.ReadRegister(7) // returns stale buffer (0), primes buffer with 0xAB
	if first != 0 {
		t.Fatalf("first buffered read = %#x, want 0 (stale)", first)
	}
	second := p.ReadRegister(7)
	if second != 0xAB {
		t.Fatalf("second read = %#x, want 0xAB", second)
	}
	p.writePalette(0x3F00, 0x21)
	p.WriteRegister(6, 0x3F)
	p.WriteRegister(6, 0x00)
	if got := p.ReadRegister(7); got != 0x21 {
		t.Fatalf("palette read = %#x, want 0x21 (returned directly, not buffered)", got)
	}
}

func TestPaletteMirrorAliasesBackgroundEntries(t *testing.T) {
	p, _ := newTestPPU()
	p.writePalette(0x3F00, 0x16)
	if got := p.readPalette(0x3F10); got != 0x16 {
		t.Fatalf("$3F10 = %#x, want 0x16 (aliases $3F00)", got)
	}
}

func TestVBlankFlagSetsAndNMIFires(t *testing.T) {
	p, _ := newTestPPU()
	var nmiLevel bool
	p.SetNMICallback(func(level bool) { nmiLevel = level })
	p.WriteRegister(0, ctrlNMI)
	stepN(p, 241*341+2)
	if p.status&statusVBlank == 0 {
		t.Fatal("VBlank flag should be set at scanline 241 dot 1")
	}
	if !nmiLevel {
		t.Fatal("NMI line should be asserted once CTRL.7 and STATUS.7 are both set")
	}
}

func TestStatusReadClearsVBlankAndToggle(t *testing.T) {
	p, _ := newTestPPU()
	p.status |= statusVBlank
	p.w = true
	v := p.ReadRegister(2)
	if v&statusVBlank == 0 {
		t.Fatal("read should return the VBlank bit that was set")
	}
	if p.status&statusVBlank != 0 {
		t.Fatal("reading $2002 should clear VBlank")
	}
	if p.w {
		t.Fatal("reading $2002 should reset the write toggle")
	}
}

func TestSpriteEvaluationFindsSpriteZero(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = maskShowSpr
	p.oam[0] = 10 // Y
	p.oam[1] = 0  // tile
	p.oam[2] = 0  // attr
	p.oam[3] = 20 // X
	p.scanline = 9
	p.evaluateSprites()
	if !p.spriteZeroActive {
		t.Fatal("sprite 0 should be found in range for scanline 10")
	}
	if p.activeN != 1 {
		t.Fatalf("activeN = %d, want 1", p.activeN)
	}
}

func TestSpriteZeroHitSetsStatusFlagOnOverlap(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = maskShowBG | maskShowSpr | maskShowBGLeft | maskShowSprLeft
	p.scanline = 0
	p.dot = 1 // about to render x = 0

	p.bgShiftLo = 0x8000 // opaque background pixel at x = 0
	p.activeN = 1
	p.spriteZeroActive = true
	p.active[0] = sprite{x: 0, patternLo: 0x80}

	p.Step()

	if p.status&statusSprite0 == 0 {
		t.Fatal("overlapping opaque background and sprite-0 pixels should set STATUS.6")
	}
}

func TestSpriteZeroHitExcludesDot256(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = maskShowBG | maskShowSpr
	p.scanline = 0
	p.dot = 256 // about to render x = 255, the documented hit exclusion

	p.bgShiftLo = 0x8000
	p.activeN = 1
	p.spriteZeroActive = true
	p.active[0] = sprite{x: 255, patternLo: 0x80}

	p.Step()

	if p.status&statusSprite0 != 0 {
		t.Fatal("x = 255 must never set the sprite-0 hit flag, even on overlap")
	}
}

func TestSpriteZeroHitPersistsUntilPreRenderClear(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = maskShowBG | maskShowSpr
	p.status |= statusSprite0
	p.scanline = 100
	p.dot = 1

	p.Step()
	if p.status&statusSprite0 == 0 {
		t.Fatal("sprite-0 hit flag should persist across ordinary visible-line dots")
	}

	p.scanline = p.scanlinesPerFrame() - 1
	p.dot = 1
	p.Step()
	if p.status&statusSprite0 != 0 {
		t.Fatal("pre-render dot 1 should clear the sprite-0 hit flag")
	}
}

func TestA12FilterSuppressesShortLowPulses(t *testing.T) {
	p, m := newTestPPU()
	p.readCHR(0x1000) // high
	p.readCHR(0x0000) // low (1 dot)
	p.readCHR(0x1000) // rises again too soon: filtered
	if m.a12Rises != 0 {
		t.Fatalf("a12Rises = %d, want 0 (pulse too short)", m.a12Rises)
	}
	p.readCHR(0x0000)
	for i := 0; i < a12FilterDots; i++ {
		p.readCHR(0x0000)
	}
	p.readCHR(0x1000)
	if m.a12Rises != 1 {
		t.Fatalf("a12Rises = %d, want 1 after a long enough low pulse", m.a12Rises)
	}
}

func TestOddFrameSkipsLastPreRenderDot(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = maskShowBG
	p.odd = true
	p.scanline = p.scanlinesPerFrame() - 1
	p.dot = 339
	before := p.frame
	stepN(p, 2) // dot 339 -> would normally go 340 -> 0, but odd+rendering skips 340
	if p.frame != before+1 {
		t.Fatal("odd-frame pre-render line should end one dot early")
	}
}
