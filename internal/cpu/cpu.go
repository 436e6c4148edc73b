// Package cpu implements the 6502 CPU used by the NES as a per-cycle
// state machine: one call to StepCycle advances exactly one CPU cycle
// and performs exactly one bus access (read, write, or idle).
package cpu

// AddressingMode identifies how an opcode's operand is located.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
	Special         // JMP/JSR/RTS/RTI/BRK/PHx/PLx/branches: hand-built sequences
)

// Class tags how an operation touches its operand, per §4.1 of the design:
// the addressing-mode sequencer uses this to decide on dummy reads,
// page-crossing fix-ups, and write-back cycles.
type Class int

const (
	Read Class = iota
	Write
	RMW
	ClassImplicit
)

const (
	stackBase   = 0x0100
	nFlagMask   = 0x80
	vFlagMask   = 0x40
	unusedMask  = 0x20
	bFlagMask   = 0x10
	dFlagMask   = 0x08
	iFlagMask   = 0x04
	zFlagMask   = 0x02
	cFlagMask   = 0x01
	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// SystemBus is the three timing-visible primitives the CPU may use.
// Implemented by internal/bus.Bus; kept local to avoid an import cycle.
type SystemBus interface {
	ReadCycle(addr uint16) uint8
	WriteCycle(addr uint16, data uint8)
	IdleCycle()
}

// Instruction is a single opcode's dispatch entry: addressing mode, access
// class, and the semantic function matching that class.
type Instruction struct {
	Name       string
	Mode       AddressingMode
	Class      Class
	ReadOp     func(c *CPU, v uint8)
	WriteOp    func(c *CPU) uint8
	RMWOp      func(c *CPU, v uint8) uint8
	ImplicitOp func(c *CPU)
	BranchCond func(c *CPU) bool
	Special    func(c *CPU) // builds the hand-sequenced opcode (JSR, RTS, ...)
}

type step func(c *CPU)

// CPU is a 6502 (no decimal mode) wired to a SystemBus.
type CPU struct {
	A, X, Y, S uint8
	PC         uint16

	C, Z, I, D, B, V, N bool

	bus SystemBus

	instructions [256]*Instruction

	queue []step
	cur   *Instruction

	// scratch used while building/running a micro-op sequence
	ea, base uint16
	lo, hi   uint8
	zp       uint8

	// interrupt lines, sampled by the bus once per CPU cycle
	nmiLine    bool
	nmiLatched bool
	irqLine    bool

	// OAM DMA, injected mid-instruction by the bus on a $4014 write
	dmaCycles uint16
}

// New creates a CPU wired to bus. bus must be non-nil before StepCycle is called.
func New(bus SystemBus) *CPU {
	c := &CPU{bus: bus}
	c.initInstructions()
	return c
}

// SetBus rewires the CPU to a different bus; used by the coordinator to
// break the construction-order cycle between Bus and CPU.
func (c *CPU) SetBus(bus SystemBus) { c.bus = bus }

// Reset performs the 6502 reset sequence: 7 bus cycles culminating in
// PC loaded from $FFFC/$FFFD. A, X, Y are left unchanged, matching real
// reset behavior (only S, flags, and PC are defined by reset).
func (c *CPU) Reset() {
	c.S = 0xFD
	c.C, c.Z, c.D, c.V, c.N = false, false, false, false, false
	c.B = true
	c.I = true
	c.queue = c.queue[:0]
	c.nmiLatched = false
	c.dmaCycles = 0

	for i := 0; i < 3; i++ {
		c.bus.ReadCycle(stackBase + uint16(c.S))
		c.S--
	}
	c.bus.IdleCycle()
	c.bus.IdleCycle()
	lo := uint16(c.bus.ReadCycle(resetVector))
	hi := uint16(c.bus.ReadCycle(resetVector + 1))
	c.PC = hi<<8 | lo
}

// SetNMILine reports the current level of (PPUCTRL.7 & PPUSTATUS.7). The
// edge detector latches a pending NMI on the 0->1 transition of that
// product (electrically the falling edge of the NMI pin), per §4.2/§6.
func (c *CPU) SetNMILine(level bool) {
	if level && !c.nmiLine {
		c.nmiLatched = true
	}
	c.nmiLine = level
}

// SetIRQLine reports the level-sensitive OR of all IRQ sources (APU frame
// counter, mapper scanline counters). IRQ is masked by the I flag.
func (c *CPU) SetIRQLine(level bool) { c.irqLine = level }

// BeginOAMDMA is called by the bus when it observes a write to $4014. It
// injects the 513/514-cycle stall directly into the CPU's micro-op queue,
// suspending interrupt recognition until the DMA drains.
func (c *CPU) BeginOAMDMA(page uint8, startedOnOddCycle bool) {
	total := uint16(513)
	if startedOnOddCycle {
		total = 514
	}
	c.dmaCycles = total
	steps := make([]step, 0, total)
	if startedOnOddCycle {
		steps = append(steps, func(c *CPU) { c.bus.IdleCycle() })
	}
	steps = append(steps, func(c *CPU) { c.bus.IdleCycle() })
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		addr := base + i
		steps = append(steps,
			func(c *CPU) { c.lo = c.bus.ReadCycle(addr) },
			func(c *CPU) { c.bus.WriteCycle(0x2004, c.lo) },
		)
	}
	c.queue = append(c.queue, steps...)
}

// StepCycle advances exactly one CPU cycle and performs exactly one bus
// access, satisfying the per-cycle invariant the bus relies on.
func (c *CPU) StepCycle() {
	if len(c.queue) > 0 {
		s := c.queue[0]
		c.queue = c.queue[1:]
		s(c)
		return
	}
	c.fetchAndDecode()
}

func (c *CPU) fetchAndDecode() {
	if c.nmiLatched {
		c.nmiLatched = false
		c.beginInterrupt(nmiVector, false)
		return
	}
	if c.irqLine && !c.I {
		c.beginInterrupt(irqVector, false)
		return
	}

	opcode := c.bus.ReadCycle(c.PC)
	c.PC++
	instr := c.instructions[opcode]
	c.cur = instr

	if instr.Mode == Special {
		instr.Special(c)
		return
	}
	c.buildAddressingSequence(instr)
}

// beginInterrupt runs the 7-cycle NMI/IRQ sequence; brk==true pushes B=1.
// Every caller passes false: the BRK opcode builds its own sequence.
func (c *CPU) beginInterrupt(vector uint16, brk bool) {
	c.bus.ReadCycle(c.PC)
	c.queue = append(c.queue,
		func(c *CPU) { c.bus.ReadCycle(c.PC) },
		func(c *CPU) { c.push(uint8(c.PC >> 8)) },
		func(c *CPU) { c.push(uint8(c.PC)) },
		func(c *CPU) {
			status := c.statusByte()
			if brk {
				status |= bFlagMask
			} else {
				status &^= bFlagMask
			}
			c.push(status)
		},
		func(c *CPU) { c.lo = c.bus.ReadCycle(vector) },
		func(c *CPU) {
			c.hi = c.bus.ReadCycle(vector + 1)
			c.PC = uint16(c.hi)<<8 | uint16(c.lo)
			c.I = true
		},
	)
}

func (c *CPU) push(v uint8) {
	c.bus.WriteCycle(stackBase+uint16(c.S), v)
	c.S--
}

func (c *CPU) pop() uint8 {
	c.S++
	return c.bus.ReadCycle(stackBase + uint16(c.S))
}

func (c *CPU) statusByte() uint8 {
	var s uint8
	if c.N {
		s |= nFlagMask
	}
	if c.V {
		s |= vFlagMask
	}
	s |= unusedMask
	if c.D {
		s |= dFlagMask
	}
	if c.I {
		s |= iFlagMask
	}
	if c.Z {
		s |= zFlagMask
	}
	if c.C {
		s |= cFlagMask
	}
	return s
}

func (c *CPU) setStatusByte(s uint8) {
	c.N = s&nFlagMask != 0
	c.V = s&vFlagMask != 0
	c.D = s&dFlagMask != 0
	c.I = s&iFlagMask != 0
	c.Z = s&zFlagMask != 0
	c.C = s&cFlagMask != 0
}

func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&nFlagMask != 0
}

// GetStatusByte and SetStatusByte expose the packed P register for tests
// and trace tooling built on top of the core.
func (c *CPU) GetStatusByte() uint8       { return c.statusByte() }
func (c *CPU) SetStatusByte(status uint8) { c.setStatusByte(status) }

// buildAddressingSequence queues the remaining cycles for instr once the
// opcode byte has been fetched, following the per-mode cycle tables in §4.1.
func (c *CPU) buildAddressingSequence(instr *Instruction) {
	switch instr.Mode {
	case Implied, Accumulator:
		c.queue = append(c.queue, func(c *CPU) {
			c.bus.ReadCycle(c.PC)
			instr.ImplicitOp(c)
		})

	case Immediate:
		c.queue = append(c.queue, func(c *CPU) {
			v := c.bus.ReadCycle(c.PC)
			c.PC++
			instr.ReadOp(c, v)
		})

	case ZeroPage:
		c.queue = append(c.queue, func(c *CPU) {
			c.ea = uint16(c.bus.ReadCycle(c.PC))
			c.PC++
		})
		c.appendFinal(instr, func() uint16 { return c.ea })

	case ZeroPageX:
		c.appendIndexedZeroPage(instr, func(c *CPU) uint8 { return c.X })

	case ZeroPageY:
		c.appendIndexedZeroPage(instr, func(c *CPU) uint8 { return c.Y })

	case Absolute:
		c.queue = append(c.queue,
			func(c *CPU) { c.lo = c.bus.ReadCycle(c.PC); c.PC++ },
			func(c *CPU) { c.hi = c.bus.ReadCycle(c.PC); c.PC++; c.ea = uint16(c.hi)<<8 | uint16(c.lo) },
		)
		c.appendFinal(instr, func() uint16 { return c.ea })

	case AbsoluteX:
		c.appendIndexedAbsolute(instr, func(c *CPU) uint8 { return c.X })

	case AbsoluteY:
		c.appendIndexedAbsolute(instr, func(c *CPU) uint8 { return c.Y })

	case IndexedIndirect:
		c.queue = append(c.queue,
			func(c *CPU) { c.zp = c.bus.ReadCycle(c.PC); c.PC++ },
			func(c *CPU) { c.bus.ReadCycle(uint16(c.zp)) },
			func(c *CPU) { c.lo = c.bus.ReadCycle(uint16(c.zp + c.X)) },
			func(c *CPU) {
				c.hi = c.bus.ReadCycle(uint16(c.zp + c.X + 1))
				c.ea = uint16(c.hi)<<8 | uint16(c.lo)
			},
		)
		c.appendFinal(instr, func() uint16 { return c.ea })

	case IndirectIndexed:
		c.queue = append(c.queue,
			func(c *CPU) { c.zp = c.bus.ReadCycle(c.PC); c.PC++ },
			func(c *CPU) { c.lo = c.bus.ReadCycle(uint16(c.zp)) },
			func(c *CPU) {
				c.hi = c.bus.ReadCycle(uint16(c.zp + 1))
				c.base = uint16(c.hi)<<8 | uint16(c.lo)
				c.ea = c.base + uint16(c.Y)
			},
		)
		c.appendIndexedFixup(instr)
	}
}

func (c *CPU) appendIndexedZeroPage(instr *Instruction, index func(c *CPU) uint8) {
	c.queue = append(c.queue,
		func(c *CPU) { c.zp = c.bus.ReadCycle(c.PC); c.PC++ },
		func(c *CPU) { c.bus.ReadCycle(uint16(c.zp)); c.ea = uint16(c.zp + index(c)) },
	)
	c.appendFinal(instr, func() uint16 { return c.ea })
}

func (c *CPU) appendIndexedAbsolute(instr *Instruction, index func(c *CPU) uint8) {
	c.queue = append(c.queue,
		func(c *CPU) { c.lo = c.bus.ReadCycle(c.PC); c.PC++ },
		func(c *CPU) {
			c.hi = c.bus.ReadCycle(c.PC)
			c.PC++
			c.base = uint16(c.hi)<<8 | uint16(c.lo)
			c.ea = c.base + uint16(index(c))
		},
	)
	c.appendIndexedFixup(instr)
}

// appendIndexedFixup implements the shared Absolute,X/Y and (zp),Y rule:
// reads always speculate at the uncorrected (wrapped-low-byte) address and
// only pay the fix-up cycle on a page cross; writes/RMW always pay it.
func (c *CPU) appendIndexedFixup(instr *Instruction) {
	uncorrected := func() uint16 { return c.base&0xFF00 | c.ea&0x00FF }
	crossed := func() bool { return c.base&0xFF00 != c.ea&0xFF00 }
	switch instr.Class {
	case Read:
		c.queue = append(c.queue, func(c *CPU) {
			v := c.bus.ReadCycle(uncorrected())
			if crossed() {
				c.queue = append(c.queue, func(c *CPU) {
					instr.ReadOp(c, c.bus.ReadCycle(c.ea))
				})
				return
			}
			instr.ReadOp(c, v)
		})
	case Write:
		c.queue = append(c.queue,
			func(c *CPU) { c.bus.ReadCycle(uncorrected()) },
			func(c *CPU) { c.bus.WriteCycle(c.ea, instr.WriteOp(c)) },
		)
	case RMW:
		c.queue = append(c.queue,
			func(c *CPU) { c.bus.ReadCycle(uncorrected()) },
			func(c *CPU) { c.lo = c.bus.ReadCycle(c.ea) },
			func(c *CPU) { c.bus.WriteCycle(c.ea, c.lo) },
			func(c *CPU) { c.bus.WriteCycle(c.ea, instr.RMWOp(c, c.lo)) },
		)
	}
}

// appendFinal queues the class-specific cycle(s) once an effective address
// is known: one cycle for Read/Write, three (read, write-back, write-new)
// for RMW.
func (c *CPU) appendFinal(instr *Instruction, addr func() uint16) {
	switch instr.Class {
	case Read:
		c.queue = append(c.queue, func(c *CPU) { instr.ReadOp(c, c.bus.ReadCycle(addr())) })
	case Write:
		c.queue = append(c.queue, func(c *CPU) { c.bus.WriteCycle(addr(), instr.WriteOp(c)) })
	case RMW:
		c.queue = append(c.queue,
			func(c *CPU) { c.lo = c.bus.ReadCycle(addr()) },
			func(c *CPU) { c.bus.WriteCycle(addr(), c.lo) },
			func(c *CPU) { c.bus.WriteCycle(addr(), instr.RMWOp(c, c.lo)) },
		)
	}
}
