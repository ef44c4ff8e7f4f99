package fm

import (
	"testing"

	"github.com/sergev/floppy/crc"
	"github.com/sergev/floppy/disk"
)

// feedByte drives a Parser with the 16 PLL cells a data byte occupies
// (the registers only settle to the final (clock, data) pair once every
// 16 cells; the intervening calls matter only for bitPhase bookkeeping).
func feedByte(t *testing.T, p *Parser, tick int64, clockByte, dataByte byte) bool {
	t.Helper()
	var last bool
	for i := 0; i < 16; i++ {
		last = p.Parse(tick, clockByte, dataByte)
		if !last {
			return false
		}
	}
	return true
}

func TestParser_IDAMRecognition(t *testing.T) {
	// spec §8 concrete scenario 1: track=0, side=1, sector=1, size code 0
	// (128 bytes), three index marks 8,333,333 ticks apart.
	indexTimes := []int64{0, 8_333_333, 16_666_666}

	dst := &disk.DecodedTrack{}
	p := NewParser(0, indexTimes, 100.0, dst, 1_000_000)

	track, side, sector, sizeCode := byte(0), byte(1), byte(1), byte(0)
	header := []byte{0xFE, track, side, sector, sizeCode}
	idamCRC := crc.Compute(header, 0xFFFF)

	tick := int64(1_000_000)
	if !feedByte(t, p, tick, 0xFF, track) {
		t.Fatalf("parser died on track byte")
	}
	if !feedByte(t, p, tick, 0xFF, side) {
		t.Fatalf("parser died on side byte")
	}
	if !feedByte(t, p, tick, 0xFF, sector) {
		t.Fatalf("parser died on sector byte")
	}
	if !feedByte(t, p, tick, 0xFF, sizeCode) {
		t.Fatalf("parser died on size byte")
	}
	if !feedByte(t, p, tick, 0xFF, byte(idamCRC>>8)) {
		t.Fatalf("parser died on CRC hi byte")
	}

	// after the 6th IDAM byte the parser validates the address CRC and
	// moves to DAM search; it must still be alive.
	alive := feedByte(t, p, tick, 0xFF, byte(idamCRC))
	if !alive {
		t.Fatalf("parser died after valid IDAM, expected to continue waiting for DAM")
	}

	if p.sector != 1 {
		t.Fatalf("sector = %d, want 1", p.sector)
	}
	if p.sectorSize != 128 {
		t.Fatalf("sector_size = %d, want 128", p.sectorSize)
	}
	if p.computedAddressCRC != p.recordedAddressCRC {
		t.Fatalf("computed_address_crc %04X != recorded_address_crc %04X", p.computedAddressCRC, p.recordedAddressCRC)
	}
}

func TestParser_TrackMismatchDrops(t *testing.T) {
	indexTimes := []int64{0, 8_333_333, 16_666_666}
	dst := &disk.DecodedTrack{}
	p := NewParser(5, indexTimes, 100.0, dst, 0)

	if !feedByte(t, p, 0, 0xFF, 0x00) { // track byte 0, but parser expects track 5
		t.Fatalf("unexpectedly died before track mismatch check")
	}
	if !feedByte(t, p, 0, 0xFF, 0x00) {
		t.Fatalf("unexpectedly died before track mismatch check")
	}
	if !feedByte(t, p, 0, 0xFF, 0x01) {
		t.Fatalf("unexpectedly died before track mismatch check")
	}
	if !feedByte(t, p, 0, 0xFF, 0x00) {
		t.Fatalf("unexpectedly died before track mismatch check")
	}
	if !feedByte(t, p, 0, 0xFF, 0x00) {
		t.Fatalf("unexpectedly died before track mismatch check")
	}
	if feedByte(t, p, 0, 0xFF, 0x00) {
		t.Fatalf("expected parser to drop on track mismatch")
	}
}

func TestParser_BadAddressCRCEmitsPlaceholder(t *testing.T) {
	indexTimes := []int64{0, 8_333_333, 16_666_666}
	dst := &disk.DecodedTrack{}
	p := NewParser(0, indexTimes, 100.0, dst, 0)

	tick := int64(1_000_000)
	feedByte(t, p, tick, 0xFF, 0x00) // track
	feedByte(t, p, tick, 0xFF, 0x01) // side
	feedByte(t, p, tick, 0xFF, 0x01) // sector
	feedByte(t, p, tick, 0xFF, 0x00) // size
	feedByte(t, p, tick, 0xFF, 0xAA) // bogus CRC hi
	feedByte(t, p, tick, 0xFF, 0xBB) // bogus CRC lo -> triggers placeholder + death

	if len(dst.Sectors) != 1 {
		t.Fatalf("expected one placeholder sector, got %d", len(dst.Sectors))
	}
	sec := dst.Sectors[0]
	if sec.RecordedAddressCRC == sec.ComputedAddressCRC {
		t.Fatalf("placeholder sector should record the CRC mismatch")
	}
	for _, b := range sec.Data {
		if b != 0 {
			t.Fatalf("placeholder payload should be all zero, got %v", sec.Data)
		}
	}
}
