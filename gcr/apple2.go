package gcr

import (
	"math"
	"sort"

	"github.com/sergev/floppy/disk"
)

// DecodeTrackApple2 runs the self-clocking byte recovery plus the Apple II
// 6-and-2 GCR sector state machine over one raw track, grounded on
// process_track_a2gcr: D5 AA 96 address marks carrying a 4-4 encoded
// volume/track/sector/checksum header, followed by D5 AA AD data marks
// carrying 342 6-and-2 data bytes plus a trailing checksum byte.
func DecodeTrackApple2(raw *disk.FluxTrack, clockPeriodAdjust float64, trackStep int, invertBit7 bool) *disk.DecodedTrack {
	dst := &disk.DecodedTrack{}
	if len(raw.Transitions) < 2 {
		return dst
	}

	const rpm = 300.0
	const cellsPerRev = 250000.0 / (rpm / 60.0)

	samplesPerCell := raw.SamplesPerRev / cellsPerRev * clockPeriodAdjust
	cellLen := int64(samplesPerCell + 0.5)
	cellRange := cellLen / 3

	logicalTrack := raw.PhysTrack
	if trackStep > 0 {
		logicalTrack = raw.PhysTrack / trackStep
	}

	stream := newByteStream(raw.Transitions, cellLen, cellRange)

	byteState := 0
	var buf [704]byte
	var decbuf [528]byte

	sectorIndex := -1
	sectorVolume := byte(0)
	var sectorPosition float64
	var rawStart, rotStart, rotEnd int64

	invert := byte(0)
	if invertBit7 {
		invert = 0x80
	}

	for {
		shifter, tick, ok := stream.next()
		if !ok {
			break
		}

		dst.GCRData = append(dst.GCRData, shifter)

		switch {
		case byteState == 0:
			rawStart = tick
			if shifter == 0xFF {
				byteState = 1
			}

		case byteState == 1:
			switch shifter {
			case 0xD5:
				byteState = 2
			case 0xFF:
			default:
				byteState = 0
			}

		case byteState == 2:
			switch shifter {
			case 0xAA:
				byteState = 3
			case 0xFF:
				byteState = 1
			default:
				byteState = 0
			}

		case byteState == 3:
			switch shifter {
			case 0x96:
				byteState = 10
			case 0xAD:
				if sectorIndex >= 0 {
					byteState = 1000
				} else {
					byteState = 1
				}
			case 0xFF:
				byteState = 1
			default:
				byteState = 0
			}

		case byteState >= 10 && byteState < 18:
			buf[byteState-10] = shifter
			byteState++
			if byteState == 18 {
				var checksum byte
				for i := 0; i < 4; i++ {
					decbuf[i] = (buf[i*2]&0x55)*2 + buf[i*2+1]&0x55
					checksum ^= decbuf[i]
				}

				byteState = 0
				if checksum == 0 && int(decbuf[1]) == logicalTrack {
					start, end, pos, found := locateOnRevolution(raw.IndexTimes, tick)
					if found {
						rotStart, rotEnd = start, end
						sectorPosition = pos
						sectorVolume = decbuf[0]
						sectorIndex = int(decbuf[2])
					}
				}
			}

		case byteState >= 1000 && byteState < 1343:
			buf[byteState-1000] = shifter
			byteState++
			if byteState == 1343 {
				var chksum byte
				for i := 0; i < 343; i++ {
					z := kGCR6Decoder[buf[i]]
					chksum ^= z
					decbuf[i] = chksum & 0x3F
				}

				data := make([]byte, 256)
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
					data[i] = (c + (d&2)>>1 + (d&1)<<1) ^ invert
				}

				endPos := sectorPosition
				if rotEnd > rotStart {
					endPos = float64(tick-rotStart) / float64(rotEnd-rotStart)
					endPos -= floorPos(endPos)
				}

				dst.Sectors = append(dst.Sectors, disk.DecodedSector{
					Index:          sectorIndex,
					SectorSize:     256,
					IsMFM:          false,
					AddressMark:    sectorVolume,
					RecordedCRC:    uint32(chksum),
					ComputedCRC:    0,
					Data:           data,
					WeakOffset:     -1,
					Position:       sectorPosition,
					EndingPosition: endPos,
					RawStart:       rawStart,
					RawEnd:         tick,
				})

				byteState = 1
				sectorIndex = -1
			}
		}
	}

	return dst
}

func locateOnRevolution(indexTimes []int64, t int64) (start, end int64, pos float64, ok bool) {
	i := sort.Search(len(indexTimes), func(i int) bool { return indexTimes[i] > t+1 })
	if i == 0 || i >= len(indexTimes) {
		return 0, 0, 0, false
	}
	start = indexTimes[i-1]
	end = indexTimes[i]
	pos = float64(t-start) / float64(end-start)
	if pos >= 1.0 {
		pos -= 1.0
	}
	return start, end, pos, true
}

func floorPos(x float64) float64 {
	return math.Floor(x)
}
