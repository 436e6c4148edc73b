// Package app provides emulator integration for the main application.
package app

import (
	"time"

	"nescore/internal/bus"
	"nescore/internal/cpu"
)

// Emulator drives the console one CPU cycle at a time until the PPU
// completes a frame, then hands the finished frame buffer back to the
// application. All cycle-level timing lives in bus/cpu/ppu/apu; this
// type only owns frame pacing.
type Emulator struct {
	bus *bus.Bus
	cpu *cpu.CPU

	config *Config

	targetFrameTime time.Duration
	lastFrame       uint64

	running bool
}

// NewEmulator creates an emulator driving the given console. The bus
// must already have its CPU, PPU, APU, cartridge, and controllers wired.
func NewEmulator(b *bus.Bus, c *cpu.CPU, config *Config) *Emulator {
	rate := config.Emulation.FrameRate
	if rate <= 0 {
		rate = 60.0
	}
	return &Emulator{
		bus:             b,
		cpu:             c,
		config:          config,
		targetFrameTime: time.Duration(float64(time.Second) / rate),
	}
}

// Start begins emulation from a cold reset.
func (e *Emulator) Start() {
	e.cpu.Reset()
	e.lastFrame = 0
	e.running = true
}

// Reset performs the 6502 reset sequence, matching a console power
// cycle's reset line rather than a full power-on.
func (e *Emulator) Reset() {
	e.cpu.Reset()
	e.lastFrame = e.bus.PPUFrame()
}

// Update steps the console until exactly one PPU frame completes,
// returning once the frame buffer behind FrameBuffer() holds fresh
// pixels. A hung opcode decoder or runaway IRQ storm cannot wedge this
// loop past cpuCyclesPerFrameCeiling cycles.
func (e *Emulator) Update() error {
	if !e.running {
		return nil
	}
	target := e.lastFrame + 1
	const cpuCyclesPerFrameCeiling = 40000
	for i := 0; i < cpuCyclesPerFrameCeiling && e.bus.PPUFrame() < target; i++ {
		e.cpu.StepCycle()
	}
	e.lastFrame = e.bus.PPUFrame()
	return nil
}

// Cleanup releases emulator-owned resources. There are none beyond the
// wired components, which the application owns and cleans up itself.
func (e *Emulator) Cleanup() error {
	e.running = false
	return nil
}
