package gcr

import (
	"testing"

	"github.com/sergev/floppy/disk"
)

func TestKGCR6Decoder_IllegalBytesMarked(t *testing.T) {
	if kGCR6Decoder[0x00] != 255 {
		t.Fatalf("0x00 should be illegal in the 6-and-2 alphabet")
	}
	if kGCR6Decoder[0x96] != 0 {
		t.Fatalf("0x96 should decode to 0, got %d", kGCR6Decoder[0x96])
	}
	if kGCR6Decoder[0xFF] != 63 {
		t.Fatalf("0xFF should decode to 63, got %d", kGCR6Decoder[0xFF])
	}
}

func TestKGCR6Decoder_RoundTripsAllLegalValues(t *testing.T) {
	seen := make(map[byte]int)
	for _, v := range kGCR6Decoder {
		if v != 255 {
			seen[v]++
		}
	}
	// Every one of the 64 payload values must be reachable from some legal
	// disk byte.
	for v := byte(0); v < 64; v++ {
		if seen[v] == 0 {
			t.Fatalf("value %d never appears in decode table", v)
		}
	}
}

func TestByteStream_EmptyTransitions(t *testing.T) {
	s := newByteStream(nil, 32, 10)
	if _, _, ok := s.next(); ok {
		t.Fatalf("expected no bytes from an empty transition list")
	}
}

func TestDecodeTrackApple2_EmptyTrack(t *testing.T) {
	track := &disk.FluxTrack{PhysTrack: 0, Side: 0, SamplesPerRev: 1000000}
	dst := DecodeTrackApple2(track, 1.0, 1, false)
	if len(dst.Sectors) != 0 {
		t.Fatalf("expected no sectors from an empty track, got %d", len(dst.Sectors))
	}
}

func TestDecodeTrackMac_EmptyTrack(t *testing.T) {
	track := &disk.FluxTrack{PhysTrack: 0, Side: 0, SamplesPerRev: 1000000}
	dst := DecodeTrackMac(track, 1.0)
	if len(dst.Sectors) != 0 {
		t.Fatalf("expected no sectors from an empty track, got %d", len(dst.Sectors))
	}
}
