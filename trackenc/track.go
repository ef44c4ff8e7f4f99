package trackenc

import (
	"sort"

	"github.com/sergev/floppy/crc"
	"github.com/sergev/floppy/disk"
	"github.com/sergev/floppy/sifter"
)

// samplesPerSynthRev is the 5ns-tick sample basis for a synthesized track at
// its nominal 360 RPM, shared by KryoFlux (40ns) and SuperCard Pro (25ns)
// output alike.
const samplesPerSynthRev = 200000000.0 / 6.0

// sectorCopy is one candidate placement of an already-encoded sector stream
// at a given rotational offset; encodeLayout emits several of these per
// sector (at successive revolutions) so the overlap resolution pass below
// has room to pick a clean cut between neighbors.
type sectorCopy struct {
	sector      *disk.DecodedSector
	enc         *SectorEncoder
	position    uint32
	encodeStart uint32
	encodeEnd   uint32
}

// EncodeTrack turns one track's sifted sector reads back into synthesized
// flux transitions, grounded on encode.cpp's encode_track: each sector is
// encoded once into its own SectorEncoder stream (FM, MFM, or Apple II GCR
// depending on decoded.Sectors), then copies of that stream are placed at
// the sector's recorded angular position across several revolutions, sorted,
// trimmed at overlaps, and concatenated into dst.Transitions. The gap either
// side of the first sector on its second revolution becomes the splice
// window.
func EncodeTrack(dst *disk.FluxTrack, decoded *disk.DecodedTrack, track, side int, periodMultiplier float64, a2gcr, precise bool) {
	sectors := sifter.Sift(decoded, track)

	bitCellTime := uint32(0.5 + NominalFMBitCellTime*periodMultiplier)

	mfm := false
	for _, s := range sectors {
		if s.IsMFM {
			mfm = true
		}
	}
	if mfm {
		bitCellTime >>= 1
	}
	if a2gcr {
		bitCellTime = uint32(0.5 + NominalA2GCRBitCellTime*periodMultiplier)
	}

	dst.SamplesPerRev = samplesPerSynthRev
	dst.IndexTimes = dst.IndexTimes[:0]
	for i := 0; i < 6; i++ {
		dst.IndexTimes = append(dst.IndexTimes, int64(samplesPerSynthRev*float64(i+1)))
	}
	dst.Transitions = dst.Transitions[:0]
	dst.SpliceStart = -1
	dst.SpliceEnd = -1

	var lowestSec, firstSec *disk.DecodedSector
	for _, s := range sectors {
		if lowestSec == nil || s.Index < lowestSec.Index {
			lowestSec = s
		}
	}
	if len(sectors) > 0 {
		firstSec = sectors[0]
	}

	encoders := make([]*SectorEncoder, len(sectors))
	for i, s := range sectors {
		enc := NewSectorEncoder()
		enc.BitCellTime = bitCellTime

		switch {
		case a2gcr:
			encodeSectorA2GCR(enc, s, track)
		case mfm:
			enc.PrecompEnabled = track >= 40
			encodeSectorMFM(enc, s, track, side)
		default:
			encodeSectorFM(enc, s, track, side, s == lowestSec)
		}

		encoders[i] = enc
	}

	dataBitTime := bitCellTime
	if !a2gcr {
		dataBitTime *= 2
	}

	var encodingPosition uint32
	if lowestSec != nil {
		encodingPosition = roundToBit(lowestSec.Position, dataBitTime)
	}

	var copies []sectorCopy
	for i, s := range sectors {
		enc := encoders[i]
		if len(enc.Stream) == 0 {
			continue
		}

		for j := 0; j < 7; j++ {
			var position uint32
			if precise {
				position = roundToBit(s.Position+float64(j), dataBitTime)
			} else {
				position = encodingPosition + roundToBit(float64(j), dataBitTime)
			}

			copies = append(copies, sectorCopy{
				sector:      s,
				enc:         enc,
				position:    position,
				encodeStart: position,
				encodeEnd:   position + enc.Time,
			})
		}

		encodingPosition += enc.Time
	}

	sort.SliceStable(copies, func(i, j int) bool { return copies[i].position < copies[j].position })

	for i := 1; i < len(copies); i++ {
		cp0 := &copies[i-1]
		cp1 := &copies[i]

		if cp0.encodeEnd > cp1.encodeStart {
			cut := cp1.encodeStart + (cp0.encodeEnd-cp1.encodeStart)/2
			lo := cp0.position + cp0.enc.CriticalEnd
			hi := cp1.position + cp1.enc.CriticalStart

			if lo <= hi {
				if cut < lo {
					cut = lo
				} else if cut > hi {
					cut = hi
				}
			}

			cp0.encodeEnd = cut
			cp1.encodeStart = cut
		}
	}

	var timeLast uint32
	for i, cp := range copies {
		sectorStart := cp.encodeStart

		if i > 0 && cp.sector == firstSec &&
			cp.position >= uint32(dst.IndexTimes[1]) && cp.position < uint32(dst.IndexTimes[2]) {
			dst.SpliceStart = int64((copies[i-1].position + cp.position) / 2)
			dst.SpliceEnd = dst.SpliceStart + (dst.IndexTimes[2] - dst.IndexTimes[1])
		}

		if mfm {
			for sectorStart-timeLast > bitCellTime*2 {
				dst.Transitions = append(dst.Transitions, int64(timeLast))
				timeLast += bitCellTime * 2
			}
		} else {
			for sectorStart-timeLast > bitCellTime {
				dst.Transitions = append(dst.Transitions, int64(timeLast))
				timeLast += bitCellTime
			}
		}

		xferStart := cp.encodeStart - cp.position
		xferEnd := cp.encodeEnd - cp.position

		if xferEnd > xferStart {
			stream := cp.enc.Stream
			lo := sort.Search(len(stream), func(k int) bool { return stream[k] >= xferStart })
			hi := sort.Search(len(stream), func(k int) bool { return stream[k] >= xferEnd })
			for _, t := range stream[lo:hi] {
				dst.Transitions = append(dst.Transitions, int64(cp.position+t))
			}
		}

		timeLast = cp.encodeEnd
	}
}

// EncodeDisk runs EncodeTrack over every physical track/side of a disk.
func EncodeDisk(rawDisk *disk.RawDisk, decodedDisk *disk.DecodedDisk, periodMultiplier float64, a2gcr, precise bool) {
	for side := range rawDisk.Tracks {
		for trk := range rawDisk.Tracks[side] {
			EncodeTrack(&rawDisk.Tracks[side][trk], &decodedDisk.Tracks[side][trk], trk, side, periodMultiplier, a2gcr, precise)
		}
	}
}

func roundToBit(units float64, bitTime uint32) uint32 {
	scaled := units * samplesPerSynthRev
	return uint32(0.5+scaled/float64(bitTime)) * bitTime
}

func encodeSectorA2GCR(enc *SectorEncoder, sec *disk.DecodedSector, track int) {
	enc.BeginCritical()
	enc.EncodeSyncBytesGCR(5)
	enc.EncodeByteGCR(0xD5)
	enc.EncodeByteGCR(0xAA)
	enc.EncodeByteGCR(0x96)

	hdr := [4]byte{sec.AddressMark, byte(track), byte(sec.Index), 0}
	hdr[3] = hdr[0] ^ hdr[1] ^ hdr[2]

	for _, v := range hdr {
		enc.EncodeByteGCR((v >> 1) | 0xAA)
		enc.EncodeByteGCR(v | 0xAA)
	}

	enc.EncodeByteGCR(0xDE)
	enc.EncodeByteGCR(0xAA)
	enc.EncodeByteGCR(0xEB)
	enc.EncodeSyncBytesGCR(6)
	enc.EncodeByteGCR(0xD5)
	enc.EncodeByteGCR(0xAA)
	enc.EncodeByteGCR(0xAD)

	for _, b := range EncodeGCR62(sec.Data) {
		enc.EncodeByteGCR(b)
	}

	enc.EncodeByteGCR(0xD5)
	enc.EncodeByteGCR(0xAA)
	enc.EncodeByteGCR(0xEB)
	enc.EndCritical()
	enc.EncodeSyncBytesGCR(10)
}

func encodeSectorMFM(enc *SectorEncoder, sec *disk.DecodedSector, track, side int) {
	for j := 0; j < 11; j++ {
		enc.EncodeByteMFM(0x00)
	}

	enc.BeginCritical()
	enc.EncodeByteMFM(0x00)

	sizeCode := byte(0)
	switch sec.SectorSize {
	case 256:
		sizeCode = 1
	case 512:
		sizeCode = 2
	case 1024:
		sizeCode = 3
	}
	sechdr := [10]byte{0xA1, 0xA1, 0xA1, 0xFE, byte(track), byte(side), byte(sec.Index), sizeCode, 0, 0}

	crcVal := crc.Compute(sechdr[:8], 0xFFFF)
	if sec.RecordedAddressCRC != sec.ComputedAddressCRC {
		crcVal = ^crcVal
	}
	sechdr[8] = byte(crcVal >> 8)
	sechdr[9] = byte(crcVal)

	// first three bytes require special clocking, but are included in the CRC
	enc.EncodeByteMFMBits(0xFB, 0xA1, 8)
	enc.EncodeByteMFMBits(0xFB, 0xA1, 8)
	enc.EncodeByteMFMBits(0xFB, 0xA1, 8)

	for i := 3; i < 10; i++ {
		enc.EncodeByteMFM(sechdr[i])
	}

	for i := 0; i < 22; i++ {
		enc.EncodeByteMFM(0x4E)
	}
	for i := 0; i < 12; i++ {
		enc.EncodeByteMFM(0x0D)
	}

	if sec.AddressMark != 0 {
		enc.EncodeByteMFMBits(0xFB, 0xA1, 8)
		enc.EncodeByteMFMBits(0xFB, 0xA1, 8)
		enc.EncodeByteMFMBits(0xFB, 0xA1, 8)
		enc.EncodeByteMFM(sec.AddressMark)

		for i := 0; i < sec.SectorSize; i++ {
			enc.EncodeByteMFM(^sec.Data[i])
		}

		secdhdr := [4]byte{0xA1, 0xA1, 0xA1, sec.AddressMark}
		crc2 := crc.Compute(secdhdr[:], 0xFFFF)
		crc2 = crc.ComputeInverted(sec.Data, crc2)
		if sec.RecordedCRC != sec.ComputedCRC {
			crc2 = ^crc2
		}

		enc.EncodeByteMFM(byte(crc2 >> 8))
		enc.EncodeByteMFM(byte(crc2))
	} else {
		for i := 0; i < 40; i++ {
			enc.EncodeByteMFM(0x0D)
		}
	}

	enc.EncodeByteMFM(0x4E)
	enc.EndCritical()

	for i := 1; i < 24; i++ {
		enc.EncodeByteMFM(0x4E)
	}

	enc.FlushMFM()
}

func encodeSectorFM(enc *SectorEncoder, sec *disk.DecodedSector, track, side int, firstSec bool) {
	if firstSec {
		enc.BeginCritical()
		enc.EncodeByteFM(0x00)
		enc.EncodeByteFMClocked(0xD7, 0xFC)
	}

	for j := 0; j < 4; j++ {
		enc.EncodeByteFM(0x00)
	}

	if !firstSec {
		enc.BeginCritical()
	}

	enc.EncodeByteFM(0x00)
	enc.EncodeByteFM(0x00)
	enc.EncodeByteFMClocked(0xC7, 0xFE)

	sechdr := [7]byte{0xFE, byte(track), byte(side), byte(sec.Index), 0, 0, 0}
	switch sec.SectorSize {
	case 256:
		sechdr[4] = 1
	case 512:
		sechdr[4] = 2
	case 1024:
		sechdr[4] = 3
	default:
		sechdr[4] = 0
	}

	crcVal := crc.Compute(sechdr[:5], 0xFFFF)
	if sec.RecordedAddressCRC != sec.ComputedAddressCRC {
		crcVal = ^crcVal
	}
	sechdr[5] = byte(crcVal >> 8)
	sechdr[6] = byte(crcVal)

	for j := 1; j < 7; j++ {
		enc.EncodeByteFM(sechdr[j])
	}

	for j := 0; j < 17; j++ {
		enc.EncodeByteFM(0x00)
	}

	if sec.AddressMark != 0 {
		secdat := make([]byte, sec.SectorSize+3)
		secdat[0] = sec.AddressMark
		for j := 0; j < sec.SectorSize; j++ {
			secdat[j+1] = ^sec.Data[j]
		}
		secdat[sec.SectorSize+1] = byte(sec.RecordedCRC >> 8)
		secdat[sec.SectorSize+2] = byte(sec.RecordedCRC)

		enc.EncodeByteFMClocked(0xC7, secdat[0])

		// a long sector with a CRC error isn't worth spending track space on;
		// only the address-adjacent 130 bytes are written.
		limit := sec.SectorSize + 3
		if sec.ComputedCRC != sec.RecordedCRC && sec.SectorSize > 128 {
			limit = 131
		}

		for j := 1; j < limit; j++ {
			if sec.WeakOffset >= 0 && j >= sec.WeakOffset+1 {
				enc.EncodeWeakByteFM()
			} else {
				enc.EncodeByteFM(secdat[j])
			}
		}
	} else {
		for j := 0; j < 50; j++ {
			enc.EncodeByteFM(0x00)
		}
	}

	enc.EncodeByteFM(0x00)
	enc.EndCritical()

	for j := 0; j < 8; j++ {
		enc.EncodeByteFM(0x00)
	}
}
