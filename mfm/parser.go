// Package mfm implements the generic PC-style MFM sector state machine
// (C3) and the Amiga MFM sector state machine (C4).
//
// Grounded on SectorParserMFM::Parse / SectorParserMFMAmiga::Parse: both
// expect their triple 0xA1 sync already consumed by the owning driver
// before the first Parse call, and both stream subsequent bytes directly
// into a flat buffer, peeking at fixed offsets as fields complete.
package mfm

import (
	"sort"

	"github.com/sergev/floppy/crc"
	"github.com/sergev/floppy/disk"
)

// Parser is one live generic-MFM sector decode.
type Parser struct {
	track, side int
	indexTimes  []int64
	samplesPerCell float64
	dst        *disk.DecodedTrack
	rawStart   int64

	readPhase int
	bitPhase  int

	buf [1024 + 3]byte

	sector, sectorSize int
	rotStart, rotEnd    int64
	rotPos              float64

	recordedAddressCRC, computedAddressCRC uint16
}

// NewParser spawns a generic-MFM parser once the owning driver has already
// observed three consecutive 0xA1 sync cells. rawStart is the tick at which
// that sync was recognised.
func NewParser(track, side int, indexTimes []int64, samplesPerCell float64, dst *disk.DecodedTrack, rawStart int64) *Parser {
	return &Parser{
		track:          track,
		side:           side,
		indexTimes:     indexTimes,
		samplesPerCell: samplesPerCell,
		dst:            dst,
		rawStart:       rawStart,
	}
}

// Parse consumes one PLL cell; returns false once this instance should be
// retired.
func (p *Parser) Parse(streamTime int64, clockBits, dataBits byte) bool {
	switch {
	case p.readPhase < 7:
		return p.parseIDAM(streamTime, dataBits)
	case p.readPhase == 7:
		if (clockBits&0x7F) == 0x0A && dataBits == 0xA1 {
			p.readPhase++
		}
		return true
	case p.readPhase == 8 || p.readPhase == 9:
		if (clockBits & 0x7F) == 0x0A {
			if dataBits != 0xA1 {
				p.readPhase = 7
				return true
			}
			p.readPhase++
			p.bitPhase = 0
			p.buf[0], p.buf[1], p.buf[2] = dataBits, dataBits, dataBits
		}
		return true
	case p.readPhase == 10:
		return p.waitForDAM(clockBits, dataBits)
	default:
		return p.parsePayload(streamTime, dataBits)
	}
}

func (p *Parser) parseIDAM(streamTime int64, dataBits byte) bool {
	p.bitPhase++
	if p.bitPhase != 16 {
		return true
	}
	p.bitPhase = 0

	p.buf[p.readPhase+3] = dataBits
	p.readPhase++

	if p.readPhase != 7 {
		return true
	}

	if p.buf[3] != 0xFE {
		return false
	}
	if int(p.buf[4]) != p.track {
		return false
	}

	p.sectorSize = 128 << (p.buf[7] & 3)

	p.buf[0], p.buf[1], p.buf[2] = 0xA1, 0xA1, 0xA1
	computedCRC := crc.Compute(p.buf[:8], 0xFFFF)
	recordedCRC := uint16(p.buf[8])<<8 | uint16(p.buf[9])

	p.recordedAddressCRC = recordedCRC
	p.computedAddressCRC = computedCRC

	if computedCRC != recordedCRC {
		return false
	}

	p.sector = int(p.buf[6])

	start, end, pos, ok := locateOnRevolution(p.indexTimes, streamTime)
	if !ok {
		return false
	}
	p.rotStart, p.rotEnd, p.rotPos = start, end, pos

	return true
}

func (p *Parser) waitForDAM(clockBits, dataBits byte) bool {
	p.bitPhase++
	if p.bitPhase != 16 {
		return true
	}

	if clockBits == 0x0A && dataBits == 0xA1 {
		p.bitPhase = 0
		return true
	}

	switch dataBits {
	case 0xF8, 0xF9, 0xFA, 0xFB:
		p.readPhase++
		p.bitPhase = 0
		p.buf[3] = dataBits
		return true
	default:
		return false
	}
}

func (p *Parser) parsePayload(streamTime int64, dataBits byte) bool {
	p.bitPhase++
	if p.bitPhase != 16 {
		return true
	}
	p.bitPhase = 0

	p.buf[p.readPhase-7] = dataBits
	p.readPhase++

	if p.readPhase < 7+p.sectorSize+6 {
		return true
	}

	computedCRC := crc.Compute(p.buf[:p.sectorSize+4], 0xFFFF)
	recordedCRC := uint16(p.buf[p.sectorSize+4])<<8 | uint16(p.buf[p.sectorSize+5])

	data := make([]byte, p.sectorSize)
	for i := 0; i < p.sectorSize; i++ {
		data[i] = ^p.buf[i+4]
	}

	endPos := p.rotPos
	if _, _, pos, ok := locateOnRevolution(p.indexTimes, streamTime); ok {
		endPos = pos
	}

	p.dst.Sectors = append(p.dst.Sectors, disk.DecodedSector{
		Index:              p.sector,
		SectorSize:         p.sectorSize,
		IsMFM:              true,
		AddressMark:        p.buf[3],
		RecordedAddressCRC: p.recordedAddressCRC,
		ComputedAddressCRC: p.computedAddressCRC,
		RecordedCRC:        uint32(recordedCRC),
		ComputedCRC:        uint32(computedCRC),
		Data:               data,
		WeakOffset:         -1,
		Position:           p.rotPos,
		EndingPosition:     endPos,
		RawStart:           p.rawStart,
		RawEnd:             streamTime,
	})

	return false
}

func locateOnRevolution(indexTimes []int64, t int64) (start, end int64, pos float64, ok bool) {
	i := sort.Search(len(indexTimes), func(i int) bool { return indexTimes[i] > t+1 })
	if i == 0 || i >= len(indexTimes) {
		return 0, 0, 0, false
	}

	start = indexTimes[i-1]
	end = indexTimes[i]

	offset := t - start
	p := float64(offset) / float64(end-start)
	if p >= 1.0 {
		p -= 1.0
	}

	return start, end, p, true
}
