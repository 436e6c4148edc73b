package bus

import (
	"nescore/internal/cartridge"
	"nescore/internal/ppu"
)

// ppuMapper adapts *cartridge.Cartridge to ppu.Mapper. Both packages
// declare their own MirrorMode to avoid importing each other, so this is
// the one place that translates between them.
type ppuMapper struct {
	cart *cartridge.Cartridge
}

func (m ppuMapper) ReadCHR(addr uint16) uint8     { return m.cart.ReadCHR(addr) }
func (m ppuMapper) WriteCHR(addr uint16, v uint8) { m.cart.WriteCHR(addr, v) }
func (m ppuMapper) ClockA12(rising bool)          { m.cart.ClockA12(rising) }

func (m ppuMapper) Mirror() ppu.MirrorMode {
	switch m.cart.Mirror() {
	case cartridge.MirrorVertical:
		return ppu.MirrorVertical
	case cartridge.MirrorSingleScreen0:
		return ppu.MirrorSingleScreen0
	case cartridge.MirrorSingleScreen1:
		return ppu.MirrorSingleScreen1
	case cartridge.MirrorFourScreen:
		return ppu.MirrorFourScreen
	default:
		return ppu.MirrorHorizontal
	}
}
