package mfm

import (
	"github.com/sergev/floppy/disk"
	"github.com/sergev/floppy/pll"
)

// Nominal IBM-PC double-density MFM cell rate: 500,000 clocks/sec at 300 RPM.
const (
	nominalCellsPerSec = 500000.0
	nominalRPM         = 300.0

	// Amiga drives spin at 300 RPM too, but DD Amiga disks are read at the
	// same nominal cell rate; HD (Amiga only) doubles it, same as IBM HD.
	amigaNominalCellsPerSec = 500000.0
)

// DecodeTrack runs the PLL plus the generic-MFM sector state machine over one
// raw IBM-PC-format track, spawning a Parser on each observed triple-0xA1
// sync followed by an 0xFE IDAM byte.
func DecodeTrack(raw *disk.FluxTrack, clockPeriodAdjust float64, highDensity bool, trackStep int) *disk.DecodedTrack {
	return decodeTrack(raw, clockPeriodAdjust, highDensity, trackStep, false)
}

// DecodeTrackAmiga runs the PLL plus the Amiga MFM sector state machine over
// one raw track, spawning an AmigaParser on each observed pair of 0xA1 syncs.
func DecodeTrackAmiga(raw *disk.FluxTrack, clockPeriodAdjust float64, highDensity bool, trackStep int) *disk.DecodedTrack {
	return decodeTrack(raw, clockPeriodAdjust, highDensity, trackStep, true)
}

func decodeTrack(raw *disk.FluxTrack, clockPeriodAdjust float64, highDensity bool, trackStep int, amiga bool) *disk.DecodedTrack {
	dst := &disk.DecodedTrack{}

	if len(raw.Transitions) < 2 {
		return dst
	}

	rate := nominalCellsPerSec
	if amiga {
		rate = amigaNominalCellsPerSec
	}
	cellsPerRev := rate / (nominalRPM / 60.0)
	if highDensity {
		cellsPerRev *= 2
	}

	samplesPerCell := raw.SamplesPerRev / cellsPerRev * clockPeriodAdjust
	cellLen := int64(samplesPerCell + 0.5)
	// MFM's narrower bit cells get the looser cellRange/2 window; see C1.
	cellRange := pll.CellRangeForEncoding(cellLen, false)

	ticks := make([]int64, len(raw.Transitions))
	copy(ticks, raw.Transitions)

	dec := pll.NewDecoder(ticks, cellLen, cellRange)

	type liveMachine struct {
		gen   *Parser
		amiga *AmigaParser
	}
	var machines []liveMachine

	// syncRun counts (clock&0x7F==0x0A, data==0xA1) sync cells seen one byte
	// window (16 cells) apart since the last spawn, mirroring the outer
	// driver that SectorParserMFM::Init/SectorParserMFMAmiga::Init assume has
	// already happened by the time they are constructed. A Parser is spawned
	// on the third such sync, an AmigaParser on the second.
	syncRun := 0
	cellsSinceSync := 0
	spawnAt := 3
	if amiga {
		spawnAt = 2
	}

	logicalTrack := raw.PhysTrack
	if trackStep > 0 {
		logicalTrack = raw.PhysTrack / trackStep
	}

	for {
		cell, ok := dec.Next()
		if !ok {
			break
		}

		kept := machines[:0]
		for _, m := range machines {
			if amiga {
				if m.amiga.Parse(cell.Tick, cell.Clock, cell.Data) {
					kept = append(kept, m)
				}
			} else {
				if m.gen.Parse(cell.Tick, cell.Clock, cell.Data) {
					kept = append(kept, m)
				}
			}
		}
		machines = kept

		cellsSinceSync++
		if (cell.Clock&0x7F) == 0x0A && cell.Data == 0xA1 {
			if cellsSinceSync == 16 {
				syncRun++
			} else {
				syncRun = 1
			}
			cellsSinceSync = 0
		}

		if syncRun == spawnAt {
			syncRun = 0
			if amiga {
				machines = append(machines, liveMachine{amiga: NewAmigaParser(logicalTrack, raw.Side, raw.IndexTimes, samplesPerCell, dst, cell.Tick)})
			} else {
				machines = append(machines, liveMachine{gen: NewParser(logicalTrack, raw.Side, raw.IndexTimes, samplesPerCell, dst, cell.Tick)})
			}
		}
	}

	return dst
}
