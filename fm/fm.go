// Package fm implements the FM sector state machine (C2): IDAM recognition,
// address-CRC validation, DAM wait window, and inverted-payload decode for
// single-density Atari-style FM tracks.
//
// Grounded on the original SectorParser::Parse state machine: mReadPhase
// 0-5 accumulate the six IDAM bytes one per 16-cell byte window; phase 6
// waits (with both a minimum and a maximum byte-cell budget) for a DAM;
// phases beyond that accumulate the payload plus its two CRC bytes.
package fm

import (
	"sort"

	"github.com/sergev/floppy/crc"
	"github.com/sergev/floppy/disk"
)

// Parser is one live FM sector decode in progress. The driving loop spawns
// a new Parser whenever it observes (clock, data) == (0xC7, 0xFE) and calls
// Parse once per PLL cell thereafter until it returns false.
type Parser struct {
	track      int
	indexTimes []int64
	samplesPerCell float64
	dst        *disk.DecodedTrack
	rawStart   int64

	readPhase int
	bitPhase  int

	buf        [1024 + 4]byte
	clockBuf   [1024 + 4]byte
	streamTime [1024 + 4]int64

	sector     int
	sectorSize int

	rotStart, rotEnd int64
	rotPos           float64

	recordedAddressCRC, computedAddressCRC uint16

	damBitCounter int
	damMinTime    int64
	damTimeoutTime int64
}

// NewParser spawns a parser at the moment the IDAM sync pattern (0xC7,
// 0xFE) is observed; rawStart is the tick of that observation.
func NewParser(track int, indexTimes []int64, samplesPerCell float64, dst *disk.DecodedTrack, rawStart int64) *Parser {
	return &Parser{
		track:          track,
		indexTimes:     indexTimes,
		samplesPerCell: samplesPerCell,
		dst:            dst,
		rawStart:       rawStart,
	}
}

// Parse consumes one PLL cell. It returns false when this instance should
// be retired by its owner.
func (p *Parser) Parse(streamTime int64, clockBits, dataBits byte) bool {
	switch {
	case p.readPhase < 6:
		return p.parseIDAM(streamTime, clockBits, dataBits)
	case p.readPhase == 6:
		return p.waitForDAM(streamTime, clockBits, dataBits)
	default:
		return p.parsePayload(streamTime, clockBits, dataBits)
	}
}

func (p *Parser) parseIDAM(streamTime int64, clockBits, dataBits byte) bool {
	p.bitPhase++
	if p.bitPhase != 16 {
		return true
	}
	p.bitPhase = 0

	if clockBits != 0xFF {
		return false
	}

	p.readPhase++
	p.buf[p.readPhase] = dataBits

	if p.readPhase != 6 {
		return true
	}

	if int(p.buf[1]) != p.track {
		return false
	}

	// byte 3 (side) is not validated: Rescue on Fractalus carries garbage there
	if p.buf[3] < 1 || p.buf[3] > 18 {
		return false
	}

	p.buf[0] = 0xFE
	computedCRC := crc.Compute(p.buf[:5], 0xFFFF)
	recordedCRC := uint16(p.buf[5])<<8 | uint16(p.buf[6])

	p.sector = int(p.buf[3])
	// only the low two bits of the size code are honoured: Fight Night
	// (Accolade) relies on this mask.
	p.sectorSize = 128 << (p.buf[4] & 3)

	rotStart, rotEnd, pos, ok := locateOnRevolution(p.indexTimes, streamTime)
	if !ok {
		return false
	}
	p.rotStart, p.rotEnd, p.rotPos = rotStart, rotEnd, pos

	p.recordedAddressCRC = recordedCRC
	p.computedAddressCRC = computedCRC

	if computedCRC != recordedCRC {
		p.emitPlaceholder(streamTime)
		return false
	}

	// WD1772: DAM must appear within 30 byte cells, with a minimum of 11
	// and a 25% timing margin past the nominal 30.
	p.damBitCounter = 30*16 + 1
	p.damMinTime = streamTime + int64(11*16*p.samplesPerCell)
	p.damTimeoutTime = streamTime + int64(30*20*p.samplesPerCell)

	return true
}

func (p *Parser) waitForDAM(streamTime int64, clockBits, dataBits byte) bool {
	p.damBitCounter--
	if p.damBitCounter <= 0 || streamTime >= p.damTimeoutTime {
		return false
	}

	p.bitPhase++

	if streamTime < p.damMinTime {
		return true
	}

	if clockBits != 0xC7 {
		return true
	}

	// Open question (i): the original carries a commented-out check here
	// that would terminate the search early on an interleaved IDAM
	// (clock==0xC7, data==0xFE). It is deliberately NOT implemented:
	// enabling it breaks Blue Max, which interleaves IDAM and DAM marks.
	switch dataBits {
	case 0xF8, 0xF9, 0xFA, 0xFB:
		p.readPhase = 7
		p.bitPhase = 0
		p.buf[0] = dataBits
		p.clockBuf[0] = clockBits
		p.streamTime[0] = streamTime
	}

	return true
}

func (p *Parser) parsePayload(streamTime int64, clockBits, dataBits byte) bool {
	p.bitPhase++
	if p.bitPhase != 16 {
		return true
	}
	p.bitPhase = 0

	idx := p.readPhase - 6
	p.buf[idx] = dataBits
	p.clockBuf[idx] = clockBits
	p.streamTime[idx] = streamTime

	p.readPhase++
	if p.readPhase < p.sectorSize+3+6 {
		return true
	}

	computedCRC := crc.Compute(p.buf[:p.sectorSize+1], 0xFFFF)
	recordedCRC := uint16(p.buf[p.sectorSize+1])<<8 | uint16(p.buf[p.sectorSize+2])

	data := make([]byte, p.sectorSize)
	for i := 0; i < p.sectorSize; i++ {
		data[i] = ^p.buf[i+1]
	}

	endPos := p.endingPosition(streamTime)

	p.dst.Sectors = append(p.dst.Sectors, disk.DecodedSector{
		Index:              p.sector,
		SectorSize:         p.sectorSize,
		IsMFM:              false,
		AddressMark:        p.buf[0],
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

func (p *Parser) emitPlaceholder(streamTime int64) {
	endPos := p.endingPosition(streamTime)

	p.dst.Sectors = append(p.dst.Sectors, disk.DecodedSector{
		Index:              p.sector,
		SectorSize:         p.sectorSize,
		IsMFM:              false,
		AddressMark:        0xFB,
		RecordedAddressCRC: p.recordedAddressCRC,
		ComputedAddressCRC: p.computedAddressCRC,
		RecordedCRC:        0,
		ComputedCRC:        0,
		Data:               make([]byte, p.sectorSize),
		WeakOffset:         -1,
		Position:           p.rotPos,
		EndingPosition:     endPos,
		RawStart:           p.rawStart,
		RawEnd:             streamTime,
	})
}

func (p *Parser) endingPosition(streamTime int64) float64 {
	_, _, pos, ok := locateOnRevolution(p.indexTimes, streamTime)
	if !ok {
		return p.rotPos
	}
	return pos
}

// locateOnRevolution finds the index-mark interval containing t and returns
// its bounds plus t's fractional position within it.
func locateOnRevolution(indexTimes []int64, t int64) (start, end int64, pos float64, ok bool) {
	i := sort.Search(len(indexTimes), func(i int) bool { return indexTimes[i] > t+1 })
	if i == 0 || i >= len(indexTimes) {
		return 0, 0, 0, false
	}

	start = indexTimes[i-1]
	end = indexTimes[i]

	offset := t - start
	p := float64(offset) / float64(end-start)
	p -= floorPos(p)

	return start, end, p, true
}

func floorPos(x float64) float64 {
	i := int64(x)
	if x < 0 && float64(i) != x {
		i--
	}
	return float64(i)
}
