package apu

import "testing"

func TestPulseLengthCounterLoadsFromTable(t *testing.T) {
	a := New()
	a.Write(0x4000, 0x00)
	a.Write(0x4003, 0x08) // length index 1 -> 254
	if a.pulse1.lengthCounter != 254 {
		t.Fatalf("lengthCounter = %d, want 254", a.pulse1.lengthCounter)
	}
}

func TestChannelEnableClearsLengthCounters(t *testing.T) {
	a := New()
	a.Write(0x4003, 0x08)
	a.Write(0x4015, 0x00) // disable pulse1
	if a.pulse1.lengthCounter != 0 {
		t.Fatal("disabling a channel should clear its length counter")
	}
}

func TestStatusReflectsLengthCounters(t *testing.T) {
	a := New()
	a.Write(0x4015, 0x01) // enable pulse1
	a.Write(0x4003, 0x08)
	if a.Read(0x4015)&0x01 == 0 {
		t.Fatal("status bit 0 should be set while pulse1's length counter is nonzero")
	}
}

func TestFrameIRQFiresInFourStepMode(t *testing.T) {
	a := New()
	a.Write(0x4017, 0x00) // 4-step mode, IRQ enabled
	for i := 0; i < 29830; i++ {
		a.Tick()
	}
	if !a.IRQPending() {
		t.Fatal("4-step frame sequencer should assert IRQ at step 29830")
	}
	a.Read(0x4015)
	if a.IRQPending() {
		t.Fatal("reading $4015 should clear the frame IRQ flag")
	}
}

func TestFrameIRQSuppressedWhenDisabled(t *testing.T) {
	a := New()
	a.Write(0x4017, 0x40) // 4-step mode, IRQ disabled
	for i := 0; i < 29830; i++ {
		a.Tick()
	}
	if a.IRQPending() {
		t.Fatal("frame IRQ should not fire once disabled via $4017 bit 6")
	}
}

func TestFiveStepModeNeverFiresFrameIRQ(t *testing.T) {
	a := New()
	a.Write(0x4017, 0x80)
	for i := 0; i < 40000; i++ {
		a.Tick()
	}
	if a.IRQPending() {
		t.Fatal("5-step mode has no frame IRQ step")
	}
}

type stubDMCReader struct{ data [2]uint8 }

func (s *stubDMCReader) ReadDMCSample(addr uint16) uint8 { return s.data[addr&1] }

func TestDMCPullsSamplesThroughReader(t *testing.T) {
	a := New()
	r := &stubDMCReader{data: [2]uint8{0xFF, 0x00}}
	a.SetDMCReader(r)
	a.Write(0x4012, 0x00) // sample address -> $C000
	a.Write(0x4013, 0x00) // sample length -> 1 byte
	a.Write(0x4010, 0x00)
	a.Write(0x4015, 0x10) // enable DMC, starts playback
	for i := 0; i < 500; i++ {
		a.Tick()
	}
	if a.dmc.bytesRemaining != 0 {
		t.Fatalf("bytesRemaining = %d, want 0 after the single sample byte drains", a.dmc.bytesRemaining)
	}
}
