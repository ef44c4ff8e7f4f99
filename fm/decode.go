package fm

import (
	"github.com/sergev/floppy/disk"
	"github.com/sergev/floppy/pll"
)

// Nominal Atari FM cell rate: 250,000 clocks/sec at 288 RPM.
const (
	nominalCellsPerSec = 250000.0
	nominalRPM         = 288.0
)

// DecodeTrack runs the PLL plus the FM sector state machine over one raw
// track, spawning a new Parser on each observed (0xC7, 0xFE) IDAM sync and
// appending every recognised sector to the returned DecodedTrack.
func DecodeTrack(raw *disk.FluxTrack, clockPeriodAdjust float64, highDensity bool, trackStep int) *disk.DecodedTrack {
	dst := &disk.DecodedTrack{}

	if len(raw.Transitions) < 2 {
		return dst
	}

	cellsPerRev := nominalCellsPerSec / (nominalRPM / 60.0)
	if highDensity {
		cellsPerRev *= 2
	}

	samplesPerCell := raw.SamplesPerRev / cellsPerRev * clockPeriodAdjust
	cellLen := int64(samplesPerCell + 0.5)
	cellRange := pll.CellRangeForEncoding(cellLen, true)

	ticks := make([]int64, len(raw.Transitions))
	copy(ticks, raw.Transitions)

	dec := pll.NewDecoder(ticks, cellLen, cellRange)

	var parsers []*Parser

	for {
		cell, ok := dec.Next()
		if !ok {
			break
		}

		kept := parsers[:0]
		for _, p := range parsers {
			if p.Parse(cell.Tick, cell.Clock, cell.Data) {
				kept = append(kept, p)
			}
		}
		parsers = kept

		if cell.Clock == 0xC7 && cell.Data == 0xFE {
			logicalTrack := raw.PhysTrack
			if trackStep > 0 {
				logicalTrack = raw.PhysTrack / trackStep
			}
			parsers = append(parsers, NewParser(logicalTrack, raw.IndexTimes, samplesPerCell, dst, cell.Tick))
		}
	}

	return dst
}
