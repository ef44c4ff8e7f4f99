package mfm

import (
	"fmt"
)

// GenerateFluxTransitions converts MFM bitcells to flux transition times.
// Each 1 bit in the MFM bitcell stream is a flux transition.
// Return transition times in nanoseconds relative to track start.
func GenerateFluxTransitions(mfmBits []byte, bitRateKhz uint16) ([]uint64, error) {
	if len(mfmBits) == 0 {
		return nil, fmt.Errorf("empty MFM data")
	}

	// Calculate bitcell period in nanoseconds
	// bitRateKhz is the data rate in kbps; MFM bitcells run at twice that rate
	bitRateBps := float64(bitRateKhz) * 1000.0 * 2
	bitcellPeriodNs := uint64(1e9 / bitRateBps)

	var transitions []uint64
	currentTime := uint64(0)

	// Process each bit in the MFM bitcell stream
	bitCount := len(mfmBits) * 8
	for i := 0; i < bitCount; i++ {
		// Extract bit at position i (MSB-first)
		byteIdx := i / 8
		bitIdx := 7 - (i % 8) // MSB-first
		currentBit := (mfmBits[byteIdx] & (1 << bitIdx)) != 0

		// Advance time by one bitcell period before checking for transition
		currentTime += bitcellPeriodNs

		// Add transition time for a 1 bit
		if currentBit {
			transitions = append(transitions, currentTime)
		}
	}
	return transitions, nil
}

// SampleFluxToBits is the inverse of GenerateFluxTransitions: it resamples a
// stream of flux transition times (nanoseconds since track start) back onto
// a fixed bitRateKhz bitcell grid, producing numBits MSB-first bits. Since
// GenerateFluxTransitions stamps bit i at the end of its cell, (i+1) periods
// in, bit i is set iff a transition fell in the half-open window
// [(i+1)*period, (i+2)*period).
func SampleFluxToBits(transitions []int64, bitRateKhz uint16, numBits int) []byte {
	bitRateBps := float64(bitRateKhz) * 1000.0 * 2
	bitcellPeriodNs := int64(1e9 / bitRateBps)

	out := make([]byte, (numBits+7)/8)
	ti := 0
	for i := 0; i < numBits; i++ {
		windowStart := int64(i+1) * bitcellPeriodNs
		windowEnd := windowStart + bitcellPeriodNs

		for ti < len(transitions) && transitions[ti] < windowStart {
			ti++
		}
		if ti < len(transitions) && transitions[ti] < windowEnd {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// CoverFullRotation extends transitions array to cover a full rotation period.
// Appends transitions at 2-bitcell intervals until the rotation duration is reached.
func CoverFullRotation(transitions []uint64, bitRateKhz uint16, floppyRPM uint16) []uint64 {
	// Calculate rotation duration in nanoseconds
	// Rotation duration = 60 seconds / RPM = 60e9 nanoseconds / RPM
	rotationDurationNs := uint32(60e9 / float64(floppyRPM))

	// Calculate bitcell period in nanoseconds
	// bitRateKhz is the data rate in kbps; MFM bitcells run at twice that rate
	bitRateBps := float64(bitRateKhz) * 1000.0 * 2
	bitcellPeriodNs := uint64(1e9 / bitRateBps)

	// Calculate 2-bitcell period
	twoBitcellPeriodNs := 2 * bitcellPeriodNs

	// Get last transition time (or 0 if empty)
	lastTime := uint64(0)
	if len(transitions) > 0 {
		lastTime = transitions[len(transitions)-1]
	}

	// Append transitions at 2-bitcell intervals until we reach the rotation duration
	currentTime := lastTime
	for currentTime+twoBitcellPeriodNs <= uint64(rotationDurationNs) {
		currentTime += twoBitcellPeriodNs
		transitions = append(transitions, currentTime)
	}

	return transitions
}
