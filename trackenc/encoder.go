package trackenc

// Nominal cell times at 5ns/tick, 360 RPM (SectorEncoder's own clock basis;
// scaled per-track by the caller's periodMultiplier).
const (
	NominalFMBitCellTime    = 640
	NominalA2GCRBitCellTime = 667
)

// kGCR6Encoder maps a 6-bit payload value to its on-disk GCR byte; the
// inverse of gcr.kGCR6Decoder.
var kGCR6Encoder = [64]byte{
	0x96, 0x97, 0x9A, 0x9B, 0x9D, 0x9E, 0x9F, 0xA6,
	0xA7, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF, 0xB2, 0xB3,
	0xB4, 0xB5, 0xB6, 0xB7, 0xB9, 0xBA, 0xBB, 0xBC,
	0xBD, 0xBE, 0xBF, 0xCB, 0xCD, 0xCE, 0xCF, 0xD3,
	0xD6, 0xD7, 0xD9, 0xDA, 0xDB, 0xDC, 0xDD, 0xDE,
	0xDF, 0xE5, 0xE6, 0xE7, 0xE9, 0xEA, 0xEB, 0xEC,
	0xED, 0xEE, 0xEF, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6,
	0xF7, 0xF9, 0xFA, 0xFB, 0xFC, 0xFD, 0xFE, 0xFF,
}

// kExpand4 spreads the low 4 bits of its index across one bit every two
// positions, used to interleave data/clock bits for MFM encoding.
var kExpand4 = [16]uint32{
	0x00, 0x01, 0x04, 0x05,
	0x10, 0x11, 0x14, 0x15,
	0x40, 0x41, 0x44, 0x45,
	0x50, 0x51, 0x54, 0x55,
}

// SectorEncoder accumulates flux transitions for one encoded sector (or
// contiguous run of sectors), grounded on encode.cpp's SectorEncoder. It
// supports FM, MFM (with optional write precompensation), and Apple II GCR
// output; callers append one encoder's Stream per sector, positioned and
// merged by the track assembler.
type SectorEncoder struct {
	Stream []uint32
	Time   uint32

	CriticalStart, CriticalEnd uint32

	BitCellTime      uint32
	PrecompEnabled   bool
	mfmShifter       uint32
}

// NewSectorEncoder returns an encoder with no critical region marked yet.
func NewSectorEncoder() *SectorEncoder {
	return &SectorEncoder{CriticalStart: ^uint32(0), CriticalEnd: ^uint32(0)}
}

// BeginCritical/EndCritical bracket a region of the stream (an address or
// data mark) that a caller may want to protect from post-compensation or
// splice placement.
func (e *SectorEncoder) BeginCritical() { e.CriticalStart = e.Time }
func (e *SectorEncoder) EndCritical()   { e.CriticalEnd = e.Time }

// EncodeByteFM emits one FM byte with all-ones clock bits.
func (e *SectorEncoder) EncodeByteFM(v byte) {
	e.EncodePartialByteFM(0xFF, v, 8)
}

// EncodeByteFMClocked emits one FM byte with an explicit clock byte, used
// for address/data marks whose missing clock bits carry the sync marker.
func (e *SectorEncoder) EncodeByteFMClocked(clock, data byte) {
	e.EncodePartialByteFM(clock, data, 8)
}

// EncodePartialByteFM emits the top bits clock/data bits worth of an FM
// byte, interleaving a clock transition and a data transition per bit cell.
func (e *SectorEncoder) EncodePartialByteFM(clock, data byte, bits int) {
	for i := 0; i < bits; i++ {
		if clock&0x80 != 0 {
			e.Stream = append(e.Stream, e.Time)
		}
		if data&0x80 != 0 {
			e.Stream = append(e.Stream, e.Time+e.BitCellTime)
		}
		clock += clock
		data += data
		e.Time += e.BitCellTime * 2
	}
}

// EncodeWeakByteFM emits a deliberately out-of-spec bit cell pattern that
// reads back unstable (neither reliably 0 nor 1), used to encode copy
// protection weak sectors.
func (e *SectorEncoder) EncodeWeakByteFM() {
	for i := 0; i < 5; i++ {
		e.Stream = append(e.Stream, e.Time)
		e.Time += (e.BitCellTime * 3) >> 1
		e.Stream = append(e.Stream, e.Time)
		e.Time += (e.BitCellTime*3 + 1) >> 1
	}
	e.Time += e.BitCellTime
}

// EncodeByteMFM emits one MFM byte with all data bits enabled for clock
// computation (the normal case for payload bytes).
func (e *SectorEncoder) EncodeByteMFM(v byte) {
	e.EncodeByteMFMBits(0xFF, v, 8)
}

// EncodeByteMFMBits emits the top bits worth of an MFM byte. clockMask
// forces specific clock bit positions on regardless of the run-length rule
// (used for A1/C2 sync marks with missing clock transitions).
func (e *SectorEncoder) EncodeByteMFMBits(clockMask, data byte, bits int) {
	e.mfmShifter = (e.mfmShifter & 0xFF0000) + kExpand4[data>>4]<<8 + kExpand4[data&15]

	clockMask32 := kExpand4[clockMask>>4]<<8 + kExpand4[clockMask&15]
	e.mfmShifter += ^((e.mfmShifter << 1) | (e.mfmShifter >> 1)) & (clockMask32 << 1)

	bits2 := bits * 2

	if e.PrecompEnabled {
		for i := 0; i < bits2; i++ {
			if e.mfmShifter&0x8000 != 0 {
				adjacent := e.mfmShifter & 0x22000
				switch adjacent {
				case 0x20000:
					e.Stream = append(e.Stream, e.Time)
				case 0x2000:
					e.Stream = append(e.Stream, e.Time+(e.BitCellTime>>3))
				default:
					e.Stream = append(e.Stream, e.Time+(e.BitCellTime>>4))
				}
			}
			e.mfmShifter += e.mfmShifter
			e.Time += e.BitCellTime
		}
		return
	}

	for i := 0; i < bits2; i++ {
		if e.mfmShifter&0x8000 != 0 {
			e.Stream = append(e.Stream, e.Time)
		}
		e.mfmShifter += e.mfmShifter
		e.Time += e.BitCellTime
	}
}

// EncodeWeakByteMFM is EncodeWeakByteFM's MFM-timing twin.
func (e *SectorEncoder) EncodeWeakByteMFM() {
	for i := 0; i < 5; i++ {
		e.Stream = append(e.Stream, e.Time)
		e.Time += (e.BitCellTime * 3) >> 1
		e.Stream = append(e.Stream, e.Time)
		e.Time += (e.BitCellTime*3 + 1) >> 1
	}
	e.Time += e.BitCellTime
}

// FlushMFM drains the two pending clock-only bits left in the shift
// register after the last real data byte, needed before starting the next
// unrelated field.
func (e *SectorEncoder) FlushMFM() {
	e.EncodeByteMFMBits(0xFF, 0, 2)
}

// EncodeByteGCR emits one GCR byte with no clock interleaving (GCR bytes are
// self-clocking; the encoder only ever sets a single transition per `1` bit).
func (e *SectorEncoder) EncodeByteGCR(data byte) {
	for i := 0; i < 8; i++ {
		if data&0x80 != 0 {
			e.Stream = append(e.Stream, e.Time)
		}
		data <<= 1
		e.Time += e.BitCellTime
	}
}

// EncodeSyncByteGCR emits one $FF self-sync byte plus its two slip bits.
func (e *SectorEncoder) EncodeSyncByteGCR() {
	e.EncodeByteGCR(0xFF)
	e.Time += e.BitCellTime * 2
}

// EncodeSyncBytesGCR repeats EncodeSyncByteGCR count times.
func (e *SectorEncoder) EncodeSyncBytesGCR(count int) {
	for ; count > 0; count-- {
		e.EncodeSyncByteGCR()
	}
}

// EncodeGCR62 prenibbles 256 payload bytes and encodes them into the 343-byte
// 6-and-2 GCR stream that Apple II data fields carry, the inverse of
// gcr.DecodeTrackApple2's unpacking. Each fragment byte packs the low two
// bits of three payload bytes 86 apart, with the bits of each fragment
// swapped in place (matching the decoder's own (d&2)>>1 + (d&1)<<1 undo);
// the base bytes carry the remaining six bits directly. Framing the whole
// 344-entry buffer with a zero at each end makes the adjacent-XOR chain that
// follows telescope to zero, which is what stands in for a data checksum.
func EncodeGCR62(data []byte) []byte {
	var nibblebuf [344]byte

	for j := 0; j < 84; j++ {
		a := data[j] & 0x03
		b := data[j+86] & 0x03
		c := data[j+172] & 0x03
		v := a + (b << 2) + (c << 4)
		nibblebuf[j+1] = ((v >> 1) & 0x15) + ((v << 1) & 0x2A)
	}
	for j := 84; j < 86; j++ {
		a := data[j] & 0x03
		b := data[j+86] & 0x03
		v := a + (b << 2)
		nibblebuf[j+1] = ((v >> 1) & 0x15) + ((v << 1) & 0x2A)
	}
	for j := 0; j < 256; j++ {
		nibblebuf[j+87] = data[j] >> 2
	}

	out := make([]byte, 343)
	for j := 0; j < 343; j++ {
		out[j] = kGCR6Encoder[nibblebuf[j]^nibblebuf[j+1]]
	}
	return out
}
