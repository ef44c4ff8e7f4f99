package trackenc

import (
	"testing"

	"github.com/sergev/floppy/gcr"
)

func TestEncodeByteFM_AllOnesEmitsClockAndDataTransitions(t *testing.T) {
	e := NewSectorEncoder()
	e.BitCellTime = NominalFMBitCellTime
	e.EncodeByteFM(0xFF)

	// every clock bit and every data bit is 1, so 16 transitions total.
	if got := len(e.Stream); got != 16 {
		t.Fatalf("expected 16 transitions, got %d", got)
	}
	if e.Time != uint32(NominalFMBitCellTime)*16 {
		t.Fatalf("unexpected time advance: %d", e.Time)
	}
}

func TestEncodeByteFM_ZeroDataOnlyClockTransitions(t *testing.T) {
	e := NewSectorEncoder()
	e.BitCellTime = NominalFMBitCellTime
	e.EncodeByteFM(0x00)

	if got := len(e.Stream); got != 8 {
		t.Fatalf("expected 8 clock-only transitions, got %d", got)
	}
}

func TestEncodeByteMFM_RunOfZerosInsertsClockBits(t *testing.T) {
	e := NewSectorEncoder()
	e.BitCellTime = 1000
	e.EncodeByteMFM(0x00)
	e.EncodeByteMFM(0x00)

	// MFM never leaves two bit cells without a transition; encoding two
	// all-zero bytes back to back must still produce some transitions from
	// the inserted clock bits.
	if len(e.Stream) == 0 {
		t.Fatalf("expected clock-bit transitions for a run of zero data bits")
	}
}

func TestEncodeByteMFM_PrecompKeepsTransitionCount(t *testing.T) {
	plain := NewSectorEncoder()
	plain.BitCellTime = 1000
	plain.EncodeByteMFM(0xAA)

	precomp := NewSectorEncoder()
	precomp.BitCellTime = 1000
	precomp.PrecompEnabled = true
	precomp.EncodeByteMFM(0xAA)

	if len(plain.Stream) != len(precomp.Stream) {
		t.Fatalf("precompensation must not change transition count: plain=%d precomp=%d",
			len(plain.Stream), len(precomp.Stream))
	}
}

func TestFlushMFM_DrainsTrailingClockBits(t *testing.T) {
	e := NewSectorEncoder()
	e.BitCellTime = 1000
	e.EncodeByteMFM(0x01)
	before := e.Time
	e.FlushMFM()
	if e.Time <= before {
		t.Fatalf("FlushMFM should advance the clock by the two flushed bit cells")
	}
}

func TestEncodeByteGCR_SelfClockingNoDoubleRate(t *testing.T) {
	e := NewSectorEncoder()
	e.BitCellTime = NominalA2GCRBitCellTime
	e.EncodeByteGCR(0xFF)

	if got := len(e.Stream); got != 8 {
		t.Fatalf("expected one transition per set bit, got %d", got)
	}
	if e.Time != uint32(NominalA2GCRBitCellTime)*8 {
		t.Fatalf("unexpected time advance: %d", e.Time)
	}
}

func TestEncodeSyncByteGCR_AddsTwoSlipCells(t *testing.T) {
	e := NewSectorEncoder()
	e.BitCellTime = NominalA2GCRBitCellTime
	e.EncodeSyncByteGCR()

	want := uint32(NominalA2GCRBitCellTime) * 10
	if e.Time != want {
		t.Fatalf("expected time %d after one sync byte, got %d", want, e.Time)
	}
}

func TestEncodeGCR62_OutputLengthAndAlphabet(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	out := EncodeGCR62(data)
	if len(out) != 343 {
		t.Fatalf("expected 343 on-disk bytes, got %d", len(out))
	}
	for _, b := range out {
		if b < 0x96 {
			t.Fatalf("byte %#x is not a valid GCR-6 disk byte", b)
		}
	}
}

func TestEncodeGCR62_ChecksumChainZeroesOut(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i * 7)
	}
	out := EncodeGCR62(data)

	var chksum byte
	for _, b := range out {
		v := gcr.Decode6(b)
		if v == 0xFF {
			t.Fatalf("encoder produced an illegal GCR byte %#x", b)
		}
		chksum ^= v
	}
	if chksum != 0 {
		t.Fatalf("expected the running checksum to end at zero, got %#x", chksum)
	}
}

func TestEncodeGCR62_RoundTripsThroughDecoder(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i*3 + 11)
	}
	out := EncodeGCR62(data)

	var decbuf [342]byte
	var prev byte
	for i := 0; i < 342; i++ {
		v := gcr.Decode6(out[i])
		decbuf[i] = prev ^ v
		prev = decbuf[i]
	}

	got := make([]byte, 256)
	for i := 0; i < 256; i++ {
		c := decbuf[i+86] << 2
		var d byte
		switch {
		case i >= 172:
			d = (decbuf[i-172] >> 4) & 3
		case i >= 86:
			d = (decbuf[i-86] >> 2) & 3
		default:
			d = decbuf[i] & 3
		}
		got[i] = c + ((d & 2) >> 1) + ((d & 1) << 1)
	}

	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("round trip mismatch at %d: want %#x got %#x", i, data[i], got[i])
		}
	}
}
