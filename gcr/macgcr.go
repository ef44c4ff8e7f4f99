package gcr

import "github.com/sergev/floppy/disk"

// DecodeTrackMac runs the self-clocking byte recovery plus the Macintosh
// 6-and-2 GCR sector state machine over one raw track, grounded on
// process_track_macgcr: speed-zoned RPM by physical track, D5 AA 96 address
// marks with a 5-byte 6-and-2 GCR encoded header, D5 AA AD data marks
// carrying 704 GCR bytes: a sector number, 699 bytes that decode to 524 bytes
// under a triple running checksum (A/B/C), of which the first 512 are kept as
// payload, and a final 4-byte group holding the three recorded checksums.
func DecodeTrackMac(raw *disk.FluxTrack, clockPeriodAdjust float64) *disk.DecodedTrack {
	dst := &disk.DecodedTrack{}
	if len(raw.Transitions) < 2 {
		return dst
	}

	rpm := 590.0
	switch {
	case raw.PhysTrack < 16:
		rpm = 394.0
	case raw.PhysTrack < 32:
		rpm = 429.0
	case raw.PhysTrack < 48:
		rpm = 472.0
	case raw.PhysTrack < 64:
		rpm = 525.0
	}

	// Mac/Unidisk bit cells are nominally 2us but actually 2.02us, from a
	// 7.8336MHz FCLK divided by 16.
	cellsPerRev := 1000000.0 / 2.02 / (rpm / 60.0)
	samplesPerCell := raw.SamplesPerRev / cellsPerRev * clockPeriodAdjust
	cellLen := int64(samplesPerCell + 0.5)
	cellRange := cellLen / 2

	stream := newByteStream(raw.Transitions, cellLen, cellRange)

	byteState := 0
	var buf [704]byte
	var decbuf [528]byte

	sector := -1
	var sectorPosition float64
	var rawStart, rotStart, rotEnd int64

	for {
		shifter, tick, ok := stream.next()
		if !ok {
			break
		}

		switch {
		case byteState == 0:
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
				if sector >= 0 {
					byteState = 1000
				} else {
					byteState = 0
				}
			case 0xFF:
				byteState = 1
			default:
				byteState = 0
			}

		case byteState >= 10 && byteState < 15:
			buf[byteState-10] = shifter
			byteState++
			if byteState == 15 {
				var checksum byte
				for i := 0; i < 5; i++ {
					decbuf[i] = kGCR6Decoder[buf[i]]
					checksum ^= decbuf[i]
				}

				byteState = 0
				if checksum == 0 {
					candidate := int(decbuf[1])
					track := int(decbuf[0]) + int(decbuf[2]&1)<<6
					side := 0
					if decbuf[2]&0x20 != 0 {
						side = 1
					}

					if track == raw.PhysTrack && side == raw.Side {
						start, end, pos, found := locateOnRevolution(raw.IndexTimes, tick)
						if found {
							sector = candidate
							rotStart, rotEnd = start, end
							sectorPosition = pos
						}
					}
				}
			}

		case byteState >= 1000 && byteState < 1704:
			buf[byteState-1000] = shifter
			byteState++
			if byteState == 1704 {
				markedSector := int(kGCR6Decoder[buf[0]])
				if markedSector == sector {
					var checksumA, checksumB, checksumC, carry byte

					for i := 0; i < 175; i++ {
						x0 := kGCR6Decoder[buf[i*4+0+1]]
						x1 := kGCR6Decoder[buf[i*4+1+1]]
						x2 := kGCR6Decoder[buf[i*4+2+1]]
						x3 := kGCR6Decoder[buf[i*4+3+1]]

						checksumC = checksumC<<1 + checksumC>>7

						y0 := x1 + x0<<2&0xC0
						y0 ^= checksumC

						sumA := uint32(checksumA) + uint32(y0) + uint32(checksumC&1)
						checksumA = byte(sumA)
						carry = byte(sumA >> 8)

						y1 := x2 + x0<<4&0xC0
						y1 ^= checksumA

						sumB := uint32(checksumB) + uint32(y1) + uint32(carry)
						checksumB = byte(sumB)
						carry = byte(sumB >> 8)

						decbuf[i*3+0] = y0
						decbuf[i*3+1] = y1

						if i < 174 {
							y2 := x3 + x0<<6&0xC0
							y2 ^= checksumB

							sumC := uint32(checksumC) + uint32(y2) + uint32(carry)
							checksumC = byte(sumC)
							carry = byte(sumC >> 8)
							decbuf[i*3+2] = y2
						}
					}

					z0 := kGCR6Decoder[buf[175*4+0]]
					z1 := kGCR6Decoder[buf[175*4+1]]
					z2 := kGCR6Decoder[buf[175*4+2]]
					z3 := kGCR6Decoder[buf[175*4+3]]

					decCheckA := z1 + z0<<2&0xC0
					decCheckB := z2 + z0<<4&0xC0
					decCheckC := z3 + z0<<6&0xC0

					data := make([]byte, 512)
					copy(data, decbuf[:512])

					endPos := sectorPosition
					if rotEnd > rotStart {
						endPos = float64(tick-rotStart) / float64(rotEnd-rotStart)
						endPos -= floorPos(endPos)
					}

					dst.Sectors = append(dst.Sectors, disk.DecodedSector{
						Index:          sector,
						SectorSize:     512,
						IsMFM:          false,
						AddressMark:    0,
						RecordedCRC:    uint32(checksumA)<<16 | uint32(checksumB)<<8 | uint32(checksumC),
						ComputedCRC:    uint32(decCheckA)<<16 | uint32(decCheckB)<<8 | uint32(decCheckC),
						Data:           data,
						WeakOffset:     -1,
						Position:       sectorPosition,
						EndingPosition: endPos,
						RawStart:       rawStart,
						RawEnd:         tick,
					})
				}

				byteState = 1
			}
		}
	}

	return dst
}
