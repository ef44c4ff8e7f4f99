// Package trackenc implements the track encoder (C10) and splice finder
// (C11): turning a decoded track's sectors back into flux transitions, and
// locating the best non-index-aligned write splice point on a captured
// track.
package trackenc

import (
	"math"

	"github.com/sergev/floppy/disk"
	"github.com/sergev/floppy/sifter"
)

// FindSplicePoint locates the widest inter-sector gap on raw (using decoded
// as the sifted source of sector positions) and records it as
// raw.SpliceStart/SpliceEnd, interpolated between the track's first and
// second captured revolutions. Grounded on disk.cpp's find_splice_point;
// requires at least 3 index marks (two full revolutions).
func FindSplicePoint(trackNum int, raw *disk.FluxTrack, decoded *disk.DecodedTrack) {
	if len(raw.IndexTimes) < 3 {
		return
	}

	sectors := sifter.Sift(decoded, trackNum)

	splicePos := 0.0

	if len(sectors) > 0 {
		bestGap := 0.0
		var widest *disk.DecodedSector

		for i, s := range sectors {
			prev := sectors[len(sectors)-1]
			if i > 0 {
				prev = sectors[i-1]
			}
			gap := s.Position - prev.EndingPosition
			if gap < 0 {
				gap += 1.0
			}
			if gap > bestGap {
				bestGap = gap
				widest = s
			}
		}

		splicePos = widest.Position - bestGap/3.0
		splicePos -= math.Floor(splicePos)
	}

	index0 := float64(raw.IndexTimes[0])
	index1 := float64(raw.IndexTimes[1])
	index2 := float64(raw.IndexTimes[2])

	raw.SpliceStart = int64(index0 + (index1-index0)*splicePos)
	raw.SpliceEnd = int64(index1 + (index2-index1)*splicePos)
}

// FindSplicePoints applies FindSplicePoint to every track of a disk.
func FindSplicePoints(rawDisk *disk.RawDisk, decodedDisk *disk.DecodedDisk) {
	for side := range rawDisk.Tracks {
		for trk := range rawDisk.Tracks[side] {
			FindSplicePoint(trk, &rawDisk.Tracks[side][trk], &decodedDisk.Tracks[side][trk])
		}
	}
}
