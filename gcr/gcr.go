// Package gcr implements the two group-coded-recording sector state
// machines: Apple II 6-and-2 GCR (C5) and Macintosh/Lisa 6-and-2 GCR (C6).
// Unlike the FM and MFM families, GCR is self-clocking; both state machines
// recover bit cells directly with their own integer shift timer rather than
// the shared pll.Decoder.
package gcr

// kGCR6Decoder maps a raw on-disk GCR byte back to its 6-bit payload value;
// 255 marks a byte that is not a legal member of the 6-and-2 alphabet.
var kGCR6Decoder = [256]byte{
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255,
	// $90
	255, 255, 255, 255, 255, 255, 0, 1, 255, 255, 2, 3, 255, 4, 5, 6,
	// $A0
	255, 255, 255, 255, 255, 255, 7, 8, 255, 255, 255, 9, 10, 11, 12, 13,
	// $B0
	255, 255, 14, 15, 16, 17, 18, 19, 255, 20, 21, 22, 23, 24, 25, 26,
	// $C0
	255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 255, 27, 255, 28, 29, 30,
	// $D0
	255, 255, 255, 31, 255, 255, 32, 33, 255, 34, 35, 36, 37, 38, 39, 40,
	// $E0
	255, 255, 255, 255, 255, 41, 42, 43, 255, 44, 45, 46, 47, 48, 49, 50,
	// $F0
	255, 255, 51, 52, 53, 54, 55, 56, 255, 57, 58, 59, 60, 61, 62, 63,
}

// Decode6 maps a raw on-disk GCR byte back to its 6-bit payload value, or
// 0xFF if b is not a legal member of the 6-and-2 alphabet. Exported for
// trackenc's encoder, which needs the same table in the opposite direction.
func Decode6(b byte) byte {
	return kGCR6Decoder[b]
}

// byteStream recovers raw GCR bytes directly from flux transition timings:
// unlike pll.Decoder it carries no separate clock/data split, just a single
// shift register advanced at a fixed cell rate and clocked in whenever a
// transition lands inside the tolerance window around the next cell
// boundary.
type byteStream struct {
	transitions []int64
	pos         int

	timeLeft, timeBasis int64
	cellLen, cellRange  int64
	cellTimer           int64
	shifter             byte
	bitState            int
}

func newByteStream(transitions []int64, cellLen, cellRange int64) *byteStream {
	return &byteStream{transitions: transitions, cellLen: cellLen, cellRange: cellRange}
}

// next returns the next recovered byte, the flux tick at which its final bit
// landed, and false once the transition list is exhausted.
func (s *byteStream) next() (b byte, tick int64, ok bool) {
	for {
		for s.timeLeft <= 0 {
			if s.pos+1 >= len(s.transitions) {
				return 0, 0, false
			}
			s.timeLeft += s.transitions[s.pos+1] - s.transitions[s.pos]
			s.timeBasis = s.transitions[s.pos+1]
			s.pos++
		}

		if s.shifter == 0 {
			s.timeLeft = 0
			s.cellTimer = s.cellLen
			s.shifter = 1
			s.bitState = 0
			continue
		}

		transDelta := s.timeLeft - s.cellTimer
		s.shifter += s.shifter

		if transDelta <= s.cellRange {
			s.cellTimer = s.cellLen - transDelta/3
			s.timeLeft = 0
			s.shifter++
		} else {
			s.timeLeft -= s.cellTimer
			s.cellTimer = s.cellLen
		}

		if s.bitState != 0 {
			s.bitState++
			if s.bitState == 8 {
				s.bitState = 0
			}
			continue
		}

		if s.shifter&0x80 == 0 {
			continue
		}
		s.bitState = 1
		return s.shifter, s.timeBasis - s.timeLeft, true
	}
}
