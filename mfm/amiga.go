package mfm

import "github.com/sergev/floppy/disk"

// kSpaceTable reconstructs a 4-bit nibble's worth of an MFM-encoded
// longword whose odd half is always zero (see C4 in SPEC_FULL.md).
var kSpaceTable = [16]byte{
	0x00, 0x01, 0x04, 0x05,
	0x10, 0x11, 0x14, 0x15,
	0x40, 0x41, 0x44, 0x45,
	0x50, 0x51, 0x54, 0x55,
}

// AmigaParser is one live Amiga MFM sector decode: format/track/sector
// header, header checksum, data checksum, then 512 bytes of odd/even split
// payload, all read as a single uninterrupted 540-byte stream once the
// second 0xA1 sync has been observed by the driver.
type AmigaParser struct {
	cylinder, head int
	indexTimes     []int64
	samplesPerCell float64
	dst            *disk.DecodedTrack
	rawStart       int64

	readPhase int
	bitPhase  int
	buf       [540]byte

	sector           int
	rotStart, rotEnd int64
	rotPos           float64
}

// NewAmigaParser spawns a parser once the driver has seen the second 0xA1
// sync cell (the first is implicit in the spawn trigger itself).
func NewAmigaParser(cylinder, head int, indexTimes []int64, samplesPerCell float64, dst *disk.DecodedTrack, rawStart int64) *AmigaParser {
	return &AmigaParser{
		cylinder:       cylinder,
		head:           head,
		indexTimes:     indexTimes,
		samplesPerCell: samplesPerCell,
		dst:            dst,
		rawStart:       rawStart,
	}
}

// Parse consumes one PLL cell; returns false once retired.
func (p *AmigaParser) Parse(streamTime int64, clockBits, dataBits byte) bool {
	p.bitPhase++
	if p.bitPhase < 16 {
		return true
	}
	p.bitPhase = 0

	p.buf[p.readPhase] = dataBits
	p.readPhase++

	switch p.readPhase {
	case 4:
		addressInfo := uint32(kSpaceTable[p.buf[3]&15]) +
			uint32(kSpaceTable[p.buf[3]>>4])<<8 +
			uint32(kSpaceTable[p.buf[1]&15])<<1 +
			uint32(kSpaceTable[p.buf[1]>>4])<<9 +
			uint32(kSpaceTable[p.buf[2]&15])<<16 +
			uint32(kSpaceTable[p.buf[2]>>4])<<24 +
			uint32(kSpaceTable[p.buf[0]&15])<<17 +
			uint32(kSpaceTable[p.buf[0]>>4])<<25

		format := byte(addressInfo >> 24)
		track := byte(addressInfo >> 16)
		sector := byte(addressInfo >> 8)

		if format != 0xFF || int(track) != p.cylinder*2+p.head || sector >= 11 {
			return false
		}
		p.sector = int(sector)

	case 24:
		var chk0, chk1 byte
		for i := 0; i < 22; i += 2 {
			chk0 ^= p.buf[i]
			chk1 ^= p.buf[i+1]
		}
		computedSum := uint32(chk0)<<8 | uint32(chk1)
		receivedSum := uint32(p.buf[20])<<24 | uint32(p.buf[21])<<16 | uint32(p.buf[22])<<8 | uint32(p.buf[23])

		// the header checksum is computed but neither checked nor recorded:
		// a mismatch does not drop the sector and is not reported on it. Only
		// the data checksum is carried into the decoded sector.
		_ = computedSum != receivedSum

		start, end, pos, ok := locateOnRevolution(p.indexTimes, streamTime)
		if !ok {
			return false
		}
		p.rotStart, p.rotEnd, p.rotPos = start, end, pos

	case 540:
		var chk0, chk1 byte
		for i := 0; i < 512; i += 2 {
			chk0 ^= p.buf[i+28]
			chk1 ^= p.buf[i+29]
		}
		computedSum := uint32(chk0)<<8 | uint32(chk1)
		recordedSum := uint32(p.buf[24])<<24 | uint32(p.buf[25])<<16 | uint32(p.buf[26])<<8 | uint32(p.buf[27])

		data := make([]byte, 512)
		for i := 0; i < 256; i++ {
			data[i*2] = kSpaceTable[p.buf[i+284]>>4] + kSpaceTable[p.buf[i+28]>>4]<<1
			data[i*2+1] = kSpaceTable[p.buf[i+284]&15] + kSpaceTable[p.buf[i+28]&15]<<1
		}

		endPos := p.rotPos
		if _, _, pos, ok := locateOnRevolution(p.indexTimes, streamTime); ok {
			endPos = pos
		}

		p.dst.Sectors = append(p.dst.Sectors, disk.DecodedSector{
			Index:          p.sector,
			SectorSize:     512,
			IsMFM:          true,
			AddressMark:    p.buf[3],
			RecordedCRC:    recordedSum,
			ComputedCRC:    computedSum,
			Data:           data,
			WeakOffset:     -1,
			Position:       p.rotPos,
			EndingPosition: endPos,
			RawStart:       p.rawStart,
			RawEnd:         streamTime,
		})

		return false
	}

	return true
}
