// Package pll implements the bit-stream phase-locked loop that turns an
// irregular sequence of flux-transition timestamps into a clocked stream of
// (clock, data) byte pairs, one pair per bit cell.
//
// All timing math is integer-tick; there is no floating-point accumulation
// in the hot loop, so results do not drift across architectures.
package pll

// Decoder tracks the running two-register shift state described by the
// original SCP-style software PLL: shiftEven and shiftOdd swap roles each
// cell, so that one of them always holds the clock bitstream and the other
// the data bitstream once the register has settled.
type Decoder struct {
	transitions []int64
	index       int

	cellLen   int64
	cellRange int64

	cellTimer int64
	timeLeft  int64
	timeBasis int64

	shiftEven byte
	shiftOdd  byte
}

// NewDecoder builds a PLL over transitions (absolute tick timestamps,
// monotonically non-decreasing) with a nominal cellLen ticks/bit-cell and
// an acceptance window cellRange ticks either side of cellLen.
func NewDecoder(transitions []int64, cellLen, cellRange int64) *Decoder {
	return &Decoder{
		transitions: transitions,
		cellLen:     cellLen,
		cellRange:   cellRange,
	}
}

// Cell is one bit-cell's worth of decoded output.
type Cell struct {
	Tick  int64 // absolute tick at which this cell was clocked in
	Clock byte  // running clock-bit shift register, LSB-first accumulation
	Data  byte  // running data-bit shift register
}

// Next advances the PLL by one bit cell and reports the resulting (clock,
// data) register pair. ok is false once the transition stream is exhausted.
func (d *Decoder) Next() (Cell, bool) {
	for {
		for d.timeLeft <= 0 {
			if d.index+1 >= len(d.transitions) {
				return Cell{}, false
			}

			delta := d.transitions[d.index+1] - d.transitions[d.index]
			d.timeLeft += delta
			d.timeBasis = d.transitions[d.index+1]
			d.index++
		}

		if d.shiftEven == 0 && d.shiftOdd == 0 {
			// shift register empty: resynchronise at the next transition
			d.timeLeft = 0
			d.cellTimer = d.cellLen
			d.shiftEven = 0
			d.shiftOdd = 1
			continue
		}

		transDelta := d.timeLeft - d.cellTimer

		if transDelta < -d.cellRange {
			// extra pulse arrived too early: discard it
			d.cellTimer -= d.timeLeft
			d.timeLeft = 0
			continue
		}

		d.shiftEven, d.shiftOdd = d.shiftOdd, d.shiftEven
		d.shiftOdd += d.shiftOdd

		if transDelta <= d.cellRange {
			d.shiftOdd++
			d.cellTimer = d.cellLen
			d.timeLeft = 0

			switch {
			case transDelta < -5:
				d.cellTimer -= 3
			case transDelta < -3:
				d.cellTimer -= 2
			case transDelta < 1:
				d.cellTimer--
			case transDelta > 5:
				d.cellTimer += 3
			case transDelta > 3:
				d.cellTimer += 2
			case transDelta > 1:
				d.cellTimer++
			}
		} else {
			d.timeLeft -= d.cellTimer
			d.cellTimer = d.cellLen
		}

		return Cell{
			Tick:  d.timeBasis - d.timeLeft,
			Clock: d.shiftEven,
			Data:  d.shiftOdd,
		}, true
	}
}

// CellRangeForEncoding returns the conventional acceptance window for a
// given nominal cell length: a third of a cell for FM/Apple-GCR, a half
// cell for the denser MFM/Mac-GCR codes.
func CellRangeForEncoding(cellLen int64, tightWindow bool) int64 {
	if tightWindow {
		return cellLen / 3
	}
	return cellLen / 2
}
