// Package bus implements the NES system bus: the synchronous coordinator
// that owns CPU-visible RAM directly and exposes the three timing-visible
// primitives (ReadCycle, WriteCycle, IdleCycle) the CPU drives one
// instruction micro-op at a time. Each primitive ticks the PPU and APU by
// exactly the dots/cycles a single CPU cycle represents, and samples the
// aggregated interrupt lines once per call.
package bus

import (
	"nescore/internal/apu"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
	"nescore/internal/ppu"
)

// Bus wires the CPU, PPU, APU, controllers, and cartridge together. It
// owns RAM outright; every other component is a non-owning reference set
// by the coordinator once all pieces exist (breaking the CPU<->Bus and
// PPU<->Bus construction-order cycles).
type Bus struct {
	ram [0x0800]uint8

	cpu  *cpu.CPU
	ppu  *ppu.PPU
	apu  *apu.APU
	cart *cartridge.Cartridge
	pad1 *input.Controller
	pad2 *input.Controller

	region     ppu.Region
	palCounter int

	totalCycles uint64
}

// New creates a Bus with RAM initialized to the power-up pattern observed
// on real hardware (mostly 0xFF with a few 0x00 bytes), matching the
// other components' own power-up conventions.
func New(region ppu.Region) *Bus {
	b := &Bus{region: region}
	b.initializePowerUpRAM()
	return b
}

func (b *Bus) initializePowerUpRAM() {
	for i := range b.ram {
		b.ram[i] = 0xFF
	}
	for _, addr := range []int{0x0008, 0x0009, 0x000A, 0x000F} {
		b.ram[addr] = 0x00
	}
}

// SetCPU, SetPPU, SetAPU, SetCartridge, and SetControllers wire the rest
// of the console after construction.
func (b *Bus) SetCPU(c *cpu.CPU) { b.cpu = c }

func (b *Bus) SetPPU(p *ppu.PPU) {
	b.ppu = p
	if b.cart != nil {
		p.SetMapper(ppuMapper{cart: b.cart})
	}
}

func (b *Bus) SetAPU(a *apu.APU) { b.apu = a }

func (b *Bus) SetCartridge(c *cartridge.Cartridge) {
	b.cart = c
	if b.ppu != nil {
		b.ppu.SetMapper(ppuMapper{cart: c})
	}
}

func (b *Bus) SetControllers(p1, p2 *input.Controller) { b.pad1, b.pad2 = p1, p2 }

// TotalCycles returns the number of CPU cycles executed since power-on;
// WriteCycle uses the same count for OAM DMA's odd/even parity.
func (b *Bus) TotalCycles() uint64 { return b.totalCycles }

// PPUFrame returns the number of frames the PPU has completed, letting
// the coordinator detect frame boundaries without importing ppu itself.
func (b *Bus) PPUFrame() uint64 {
	if b.ppu == nil {
		return 0
	}
	return b.ppu.Frame()
}

// FrameBuffer returns the PPU's current (possibly in-progress) frame
// buffer for presentation.
func (b *Bus) FrameBuffer() *[256 * 240]uint32 {
	if b.ppu == nil {
		return nil
	}
	return b.ppu.FrameBuffer()
}

// Controllers returns the two wired controllers for direct manipulation
// by the input layer.
func (b *Bus) Controllers() (*input.Controller, *input.Controller) {
	return b.pad1, b.pad2
}

// ReadDMCSample lets the APU's DMC channel pull sample bytes out of
// cartridge space directly, bypassing CPU cycle accounting: this call
// only resolves the address, and the CPU cycles the real DMA unit steals
// for each fetch are not modeled.
func (b *Bus) ReadDMCSample(addr uint16) uint8 {
	if b.cart == nil {
		return 0
	}
	return b.cart.ReadPRG(addr)
}

// ReadCycle performs one CPU read access: it decodes addr against the
// memory map, then ticks PPU/APU for the dots this CPU cycle represents.
func (b *Bus) ReadCycle(addr uint16) uint8 {
	v := b.read(addr)
	b.tickCycle()
	return v
}

// WriteCycle performs one CPU write access, including recognizing writes
// to $4014 as the trigger for an OAM-DMA stall.
func (b *Bus) WriteCycle(addr uint16, data uint8) {
	b.write(addr, data)
	if addr == 0x4014 && b.cpu != nil {
		b.cpu.BeginOAMDMA(data, b.totalCycles%2 == 1)
	}
	b.tickCycle()
}

// IdleCycle performs a CPU cycle that makes no bus access at all (dummy
// cycles inside RMW/branch/interrupt sequences).
func (b *Bus) IdleCycle() { b.tickCycle() }

// tickCycle advances the PPU by the dots one CPU cycle represents (3 on
// NTSC/Dendy, a 3/3/3/3/4 pattern averaging 3.2 on PAL) and the APU by
// one CPU cycle, then recomputes and forwards the shared IRQ line.
// Interrupt lines are sampled between the 2nd and 3rd PPU dot of the
// cycle, matching the hardware's mid-cycle recognition point.
func (b *Bus) tickCycle() {
	b.totalCycles++
	dots := 3
	if b.region == ppu.PAL {
		b.palCounter++
		if b.palCounter%5 == 0 {
			dots = 4
		}
	}
	for i := 0; i < dots; i++ {
		if b.ppu != nil {
			b.ppu.Step()
		}
		if i == 1 {
			b.sampleIRQLine()
		}
	}
	if b.apu != nil {
		b.apu.Tick()
	}
}

func (b *Bus) sampleIRQLine() {
	if b.cpu == nil {
		return
	}
	irq := false
	if b.apu != nil {
		irq = irq || b.apu.IRQPending()
	}
	if b.cart != nil {
		irq = irq || b.cart.IRQPending()
	}
	b.cpu.SetIRQLine(irq)
}

func (b *Bus) read(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return b.ram[addr&0x07FF]
	case addr < 0x4000:
		if b.ppu == nil {
			return 0
		}
		return b.ppu.ReadRegister(uint8(addr & 0x0007))
	case addr == 0x4016:
		if b.pad1 == nil {
			return 0
		}
		return b.pad1.Read()
	case addr == 0x4017:
		if b.pad2 == nil {
			return 0x40
		}
		return b.pad2.Read() | 0x40
	case addr < 0x4018:
		if b.apu == nil {
			return 0
		}
		return b.apu.Read(addr)
	case addr < 0x6000:
		return 0 // open bus: unused I/O and expansion ROM region
	default:
		if b.cart == nil {
			return 0
		}
		return b.cart.ReadPRG(addr)
	}
}

func (b *Bus) write(addr uint16, v uint8) {
	switch {
	case addr < 0x2000:
		b.ram[addr&0x07FF] = v
	case addr < 0x4000:
		if b.ppu != nil {
			b.ppu.WriteRegister(uint8(addr&0x0007), v)
		}
	case addr == 0x4016:
		if b.pad1 != nil {
			b.pad1.Write(v)
		}
		if b.pad2 != nil {
			b.pad2.Write(v)
		}
	case addr < 0x4018:
		if b.apu != nil {
			b.apu.Write(addr, v)
		}
	case addr < 0x6000:
		// open bus: writes to unused I/O and expansion ROM are silently dropped
	default:
		if b.cart != nil {
			b.cart.WritePRG(addr, v)
		}
	}
}
