package input

import "testing"

func TestReadReturnsBitsInOrder(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, false, true, false, false, false, false}) // A, Start

	c.Write(0x01)
	c.Write(0x00)

	want := []uint8{1, 0, 0, 1, 0, 0, 0, 0}
	for i, w := range want {
		if got := c.Read() & 0x01; got != w {
			t.Fatalf("bit %d = %d, want %d", i, got, w)
		}
	}
}

func TestReadPastEighthBitReturnsOnes(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, true, true, true, true, true, true, true})

	c.Write(0x01)
	c.Write(0x00)
	for i := 0; i < 8; i++ {
		c.Read()
	}
	for i := 0; i < 3; i++ {
		if got := c.Read() & 0x01; got != 1 {
			t.Fatalf("read %d past the 8th bit = %d, want 1 (open bus)", i, got)
		}
	}
}

func TestStrobeHighContinuouslyReflectsLiveState(t *testing.T) {
	c := New()
	c.Write(0x01) // strobe high

	c.SetButton(ButtonA, true)
	if got := c.Read() & 0x01; got != 1 {
		t.Fatalf("A = %d, want 1 while strobe is high", got)
	}
	c.SetButton(ButtonA, false)
	if got := c.Read() & 0x01; got != 0 {
		t.Fatalf("A = %d, want 0 after release while strobe is high", got)
	}
}

func TestSetButtonsWhileStrobedReloadsShiftRegister(t *testing.T) {
	c := New()
	c.Write(0x01)
	c.SetButtons([8]bool{false, true, false, false, false, false, false, false}) // B
	c.Write(0x00)

	if got := c.Read() & 0x01; got != 0 {
		t.Fatalf("A = %d, want 0", got)
	}
	if got := c.Read() & 0x01; got != 1 {
		t.Fatalf("B = %d, want 1", got)
	}
}

func TestIsPressedReflectsSetButton(t *testing.T) {
	c := New()
	if c.IsPressed(ButtonStart) {
		t.Fatal("Start should start unpressed")
	}
	c.SetButton(ButtonStart, true)
	if !c.IsPressed(ButtonStart) {
		t.Fatal("Start should be pressed after SetButton(true)")
	}
}
