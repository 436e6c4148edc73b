// Package ppu implements the NES picture processing unit as a
// dot-stepped pipeline: background and sprite pattern shift registers,
// the loopy v/t/x/w scroll model, sprite evaluation, open-bus decay, and
// the A12-edge hook mapper IRQ counters are clocked from.
package ppu

// Region selects the scanline layout and vblank timing that differ
// between television standards.
type Region int

const (
	NTSC Region = iota
	PAL
	Dendy
)

const (
	ctrlNMI         = 0x80
	ctrlSpriteSize  = 0x20
	ctrlBGTable     = 0x10
	ctrlSpriteTable = 0x08
	ctrlIncrement   = 0x04

	maskShowBGLeft  = 0x02
	maskShowSprLeft = 0x04
	maskShowBG      = 0x08
	maskShowSpr     = 0x10

	statusOverflow = 0x20
	statusSprite0  = 0x40
	statusVBlank   = 0x80

	a12FilterDots = 8 // consecutive low-A12 CHR accesses (not elapsed dots) required before a rise is recognized
)

// Mapper is everything the PPU needs from the cartridge: CHR access, the
// current nametable mirroring mode, and the filtered A12-edge IRQ hook.
type Mapper interface {
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, v uint8)
	Mirror() MirrorMode
	ClockA12(rising bool)
}

// MirrorMode mirrors cartridge.MirrorMode's values without an import
// cycle; the bus translates between the two at construction time.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

type sprite struct {
	y, tile, attr, x    uint8
	patternLo, patternHi uint8
}

// PPU is the NES 2C02. Step advances exactly one dot (pixel clock tick).
type PPU struct {
	ctrl, mask, status uint8
	oamAddr            uint8
	oam                [256]uint8

	v, t uint16
	x    uint8
	w    bool

	readBuffer uint8

	ntByte, atByte, bgLo, bgHi uint8
	bgShiftLo, bgShiftHi       uint16
	atShiftLo, atShiftHi       uint8
	atLatchLo, atLatchHi       bool

	secondary             [8]sprite
	secondaryN            int
	spriteZeroInSecondary bool
	active                [8]sprite
	activeN               int
	spriteZeroActive      bool

	scanline int
	dot      int
	frame    uint64
	odd      bool
	region   Region

	frameBuffer [256 * 240]uint32

	vram       [0x1000]uint8
	paletteRAM [32]uint8

	mapper Mapper

	openBus      uint8
	openBusDecayAt [8]uint64
	dotCounter   uint64

	a12Level   bool
	a12LowDots int

	nmiLineFn func(bool)
	frameDone func()
}

// New creates a PPU with no mapper attached; SetMapper must be called
// before Step accesses CHR or nametable data.
func New(region Region) *PPU {
	return &PPU{region: region}
}

func (p *PPU) SetMapper(m Mapper) { p.mapper = m }

// SetNMICallback registers the function invoked whenever the logical NMI
// product (CTRL.7 & STATUS.7) changes; the caller (the bus) forwards the
// new level to the CPU's edge detector.
func (p *PPU) SetNMICallback(fn func(bool)) { p.nmiLineFn = fn }

// SetFrameCompleteCallback registers a callback fired once per completed
// frame, after the frame buffer has been fully written.
func (p *PPU) SetFrameCompleteCallback(fn func()) { p.frameDone = fn }

// FrameBuffer exposes the packed-RGB pixel grid for presentation.
func (p *PPU) FrameBuffer() *[256 * 240]uint32 { return &p.frameBuffer }

// Frame returns the number of frames fully rendered so far.
func (p *PPU) Frame() uint64 { return p.frame }

func (p *PPU) scanlinesPerFrame() int {
	if p.region == PAL || p.region == Dendy {
		return 312
	}
	return 262
}

// vblankStartScanline is the scanline whose dot 1 raises the vblank flag.
func (p *PPU) vblankStartScanline() int {
	switch p.region {
	case PAL:
		return 240
	case Dendy:
		return 290
	}
	return 241
}

// Step advances the PPU by one dot. The bus calls this 3 times per CPU
// cycle on NTSC/Dendy; PAL's fractional 3.2 dots-per-cycle is accumulated
// by the bus, which calls Step an extra time every 5th CPU cycle.
func (p *PPU) Step() {
	p.dotCounter++
	visible := p.scanline >= 0 && p.scanline <= 239
	preRender := p.scanline == p.scanlinesPerFrame()-1
	rendering := p.mask&(maskShowBG|maskShowSpr) != 0

	if visible && p.dot >= 1 && p.dot <= 256 {
		p.renderPixel()
	}
	if (visible || preRender) && rendering {
		p.runBackgroundPipeline()
	}
	if (visible || preRender) && p.dot == 257 && rendering {
		p.evaluateSprites()
	}
	if p.scanline == p.vblankStartScanline() && p.dot == 1 {
		p.status |= statusVBlank
		p.updateNMILine()
	}
	if preRender && p.dot == 1 {
		p.status &^= statusVBlank | statusSprite0 | statusOverflow
		p.updateNMILine()
	}
	if preRender && p.dot >= 280 && p.dot <= 304 && rendering {
		p.v = p.v&^0x7BE0 | p.t&0x7BE0
	}
	if (visible || preRender) && rendering && p.dot == 257 {
		p.v = p.v&^0x041F | p.t&0x041F
	}

	p.advanceDot(preRender, rendering)
}

func (p *PPU) advanceDot(preRender, rendering bool) {
	p.dot++
	if preRender && p.odd && rendering && p.dot == 340 {
		p.dot = 341 // short frame: skip the last dot of the pre-render line
	}
	if p.dot > 340 {
		p.dot = 0
		p.scanline++
		if p.scanline >= p.scanlinesPerFrame() {
			p.scanline = 0
			p.frame++
			p.odd = !p.odd
			if p.frameDone != nil {
				p.frameDone()
			}
		}
	}
}

// updateNMILine recomputes (CTRL.7 & STATUS.7) and notifies the callback.
// The callback itself (CPU.SetNMILine) only latches on the 0->1 edge, so
// calling this unconditionally on every potential change is harmless.
func (p *PPU) updateNMILine() {
	if p.nmiLineFn != nil {
		p.nmiLineFn(p.ctrl&ctrlNMI != 0 && p.status&statusVBlank != 0)
	}
}

func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = p.v&^0x03E0 | y<<5
}

func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// runBackgroundPipeline fetches nametable/attribute/pattern bytes in the
// hardware's 8-dot groups and shifts the background registers every dot.
func (p *PPU) runBackgroundPipeline() {
	fetching := p.dot >= 1 && p.dot <= 256 || p.dot >= 321 && p.dot <= 336
	if fetching {
		switch p.dot % 8 {
		case 1:
			p.reloadShiftRegisters()
			p.ntByte = p.readVRAM(0x2000 | p.v&0x0FFF)
		case 3:
			addr := 0x23C0 | p.v&0x0C00 | (p.v>>4)&0x38 | (p.v>>2)&0x07
			at := p.readVRAM(addr)
			shift := (p.v >> 4 & 0x04) | (p.v & 0x02)
			p.atByte = (at >> shift) & 0x03
		case 5:
			p.bgLo = p.readCHR(p.bgPatternAddr())
		case 7:
			p.bgHi = p.readCHR(p.bgPatternAddr() + 8)
		case 0:
			p.incrementCoarseX()
		}
	}
	if p.dot == 256 {
		p.incrementY()
	}
	p.bgShiftLo <<= 1
	p.bgShiftHi <<= 1
	p.atShiftLo = p.atShiftLo<<1 | b2u8(p.atLatchLo)
	p.atShiftHi = p.atShiftHi<<1 | b2u8(p.atLatchHi)
}

func (p *PPU) bgPatternAddr() uint16 {
	table := uint16(0)
	if p.ctrl&ctrlBGTable != 0 {
		table = 0x1000
	}
	fine := (p.v >> 12) & 0x07
	return table + uint16(p.ntByte)*16 + fine
}

func (p *PPU) reloadShiftRegisters() {
	p.bgShiftLo = p.bgShiftLo&0xFF00 | uint16(p.bgLo)
	p.bgShiftHi = p.bgShiftHi&0xFF00 | uint16(p.bgHi)
	p.atLatchLo = p.atByte&0x01 != 0
	p.atLatchHi = p.atByte&0x02 != 0
}

func (p *PPU) renderPixel() {
	x := p.dot - 1
	var bgPixel, bgPalette uint8
	if p.mask&maskShowBG != 0 && (x >= 8 || p.mask&maskShowBGLeft != 0) {
		shift := uint(15 - p.x)
		lo := uint8(p.bgShiftLo>>shift) & 1
		hi := uint8(p.bgShiftHi>>shift) & 1
		bgPixel = lo | hi<<1
		ashift := uint(7 - p.x)
		alo := (p.atShiftLo >> ashift) & 1
		ahi := (p.atShiftHi >> ashift) & 1
		bgPalette = alo | ahi<<1
	}

	sprPixel, sprPalette, sprBehind, sprZero := p.spritePixelAt(x)

	var paletteIndex uint8
	switch {
	case sprPixel != 0 && (bgPixel == 0 || !sprBehind):
		paletteIndex = 0x10 + sprPalette*4 + sprPixel
	case bgPixel != 0:
		paletteIndex = bgPalette*4 + bgPixel
	default:
		paletteIndex = 0
	}

	if bgPixel != 0 && sprPixel != 0 && sprZero && x != 255 {
		p.status |= statusSprite0
	}

	p.frameBuffer[p.scanline*256+x] = nesPalette[p.readPalette(uint16(paletteIndex))&0x3F]
}

// evaluateSprites runs the 64-sprite OAM scan for the scanline that will
// be rendered next, including the classic sprite-overflow detection bug
// (the buggy scan continues reading OAM with a non-resetting offset once
// eight sprites have already been found).
func (p *PPU) evaluateSprites() {
	target := p.scanline + 1
	if preRender := p.scanline == p.scanlinesPerFrame()-1; preRender {
		target = 0
	}
	height := 8
	if p.ctrl&ctrlSpriteSize != 0 {
		height = 16
	}

	p.secondaryN = 0
	p.spriteZeroInSecondary = false
	lastScanned := -1
	for i := 0; i < 64; i++ {
		y := int(p.oam[i*4])
		if target >= y && target < y+height {
			if p.secondaryN < 8 {
				p.secondary[p.secondaryN] = sprite{y: p.oam[i*4], tile: p.oam[i*4+1], attr: p.oam[i*4+2], x: p.oam[i*4+3]}
				if i == 0 {
					p.spriteZeroInSecondary = true
				}
				p.secondaryN++
			}
		}
		lastScanned = i
		if p.secondaryN == 8 {
			break
		}
	}
	if p.secondaryN == 8 {
		m := 0
		for i := lastScanned + 1; i < 64; i++ {
			y := int(p.oam[i*4+m])
			if target >= y && target < y+height {
				p.status |= statusOverflow
				break
			}
			m = (m + 1) % 4
		}
	}

	p.activeN = p.secondaryN
	p.spriteZeroActive = p.spriteZeroInSecondary
	for i := 0; i < p.secondaryN; i++ {
		s := p.secondary[i]
		row := target - int(s.y)
		if s.attr&0x80 != 0 { // vertical flip
			row = height - 1 - row
		}
		var table uint16
		tile := int(s.tile)
		if height == 16 {
			table = uint16(s.tile&0x01) * 0x1000
			tile = int(s.tile &^ 0x01)
			if row >= 8 {
				tile++
				row -= 8
			}
		} else if p.ctrl&ctrlSpriteTable != 0 {
			table = 0x1000
		}
		addr := table + uint16(tile)*16 + uint16(row)
		s.patternLo = p.readCHR(addr)
		s.patternHi = p.readCHR(addr + 8)
		p.active[i] = s
	}
}

// spritePixelAt returns the highest-priority opaque sprite pixel at x, if
// any: its 2-bit color index, palette number, whether it renders behind
// the background, and whether it came from OAM slot 0.
func (p *PPU) spritePixelAt(x int) (pixel, palette uint8, behind, isZero bool) {
	if p.mask&maskShowSpr == 0 || (x < 8 && p.mask&maskShowSprLeft == 0) {
		return 0, 0, false, false
	}
	for i := 0; i < p.activeN; i++ {
		s := p.active[i]
		offset := x - int(s.x)
		if offset < 0 || offset > 7 {
			continue
		}
		bit := 7 - offset
		if s.attr&0x40 != 0 { // horizontal flip
			bit = offset
		}
		lo := (s.patternLo >> uint(bit)) & 1
		hi := (s.patternHi >> uint(bit)) & 1
		px := lo | hi<<1
		if px == 0 {
			continue
		}
		return px, s.attr & 0x03, s.attr&0x20 != 0, i == 0 && p.spriteZeroActive
	}
	return 0, 0, false, false
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
