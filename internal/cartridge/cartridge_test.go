package cartridge

import (
	"bytes"
	"testing"
)

func buildINES(mapperID uint8, prgBanks, chrBanks uint8, vertical bool) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(prgBanks)
	buf.WriteByte(chrBanks)
	flags6 := (mapperID & 0x0F) << 4
	if vertical {
		flags6 |= 0x01
	}
	buf.WriteByte(flags6)
	buf.WriteByte((mapperID >> 4) << 4)
	buf.Write(make([]byte, 8)) // PRGRAMSize, TVSystem1/2, padding
	buf.Write(make([]byte, int(prgBanks)*16384))
	buf.Write(make([]byte, int(chrBanks)*8192))
	return buf.Bytes()
}

func TestLoadFromReaderRejectsBadMagic(t *testing.T) {
	data := buildINES(0, 1, 1, false)
	data[0] = 'X'
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for bad magic number")
	}
}

func TestLoadFromReaderRejectsZeroPRG(t *testing.T) {
	data := buildINES(0, 0, 1, false)
	if _, err := LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for zero PRG ROM size")
	}
}

func TestLoadFromReaderUnsupportedMapper(t *testing.T) {
	data := buildINES(255, 1, 1, false)
	_, err := LoadFromReader(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected unsupported mapper error")
	}
	var target *UnsupportedMapperError
	if _, ok := err.(*UnsupportedMapperError); !ok {
		t.Fatalf("err = %v (%T), want *UnsupportedMapperError", err, err)
	}
	_ = target
}

func TestMapper000MirrorsSixteenKBRom(t *testing.T) {
	data := buildINES(0, 1, 1, false)
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	cart.prgROM[0] = 0xAB
	if got := cart.ReadPRG(0x8000); got != 0xAB {
		t.Fatalf("ReadPRG(0x8000) = %#x, want 0xAB", got)
	}
	if got := cart.ReadPRG(0xC000); got != 0xAB {
		t.Fatalf("ReadPRG(0xC000) = %#x, want 0xAB (16KB mirrored)", got)
	}
}

func TestMapper000SRAMRoundTrips(t *testing.T) {
	data := buildINES(0, 1, 1, false)
	cart, _ := LoadFromReader(bytes.NewReader(data))
	cart.WritePRG(0x6100, 0x42)
	if got := cart.ReadPRG(0x6100); got != 0x42 {
		t.Fatalf("SRAM round-trip = %#x, want 0x42", got)
	}
}

func TestMapper004PRGBankSwitching(t *testing.T) {
	data := buildINES(4, 8, 1, false) // 8 * 16KB = 16 * 8KB banks
	cart, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	cart.prgROM[3*0x2000] = 0x11 // bank 3
	cart.WritePRG(0x8000, 6)     // select register R6
	cart.WritePRG(0x8001, 3)     // R6 = bank 3
	if got := cart.ReadPRG(0x8000); got != 0x11 {
		t.Fatalf("ReadPRG(0x8000) = %#x, want 0x11", got)
	}
}

func TestMapper004IRQFiresOnReload(t *testing.T) {
	data := buildINES(4, 8, 1, false)
	cart, _ := LoadFromReader(bytes.NewReader(data))
	cart.WritePRG(0xC000, 4) // latch = 4
	cart.WritePRG(0xC001, 0) // reload
	cart.WritePRG(0xE001, 0) // enable
	cart.ClockA12(true)      // reload from latch (4), not zero yet
	if cart.IRQPending() {
		t.Fatal("IRQ should not be pending immediately after reload to nonzero")
	}
	for i := 0; i < 4; i++ {
		cart.ClockA12(true)
	}
	if !cart.IRQPending() {
		t.Fatal("IRQ should be pending once the counter reaches 0")
	}
}
