package trackenc

import (
	"testing"

	"github.com/sergev/floppy/disk"
)

func TestFindSplicePoint_NotEnoughIndexMarksLeavesSpliceUnset(t *testing.T) {
	raw := &disk.FluxTrack{IndexTimes: []int64{0, 100}, SpliceStart: -1, SpliceEnd: -1}
	decoded := &disk.DecodedTrack{}

	FindSplicePoint(0, raw, decoded)

	if raw.SpliceStart != -1 || raw.SpliceEnd != -1 {
		t.Fatalf("expected splice window to remain unset with fewer than 3 index marks")
	}
}

func TestFindSplicePoint_NoSectorsFallsBackToZeroPosition(t *testing.T) {
	raw := &disk.FluxTrack{IndexTimes: []int64{0, 1000, 2000}}
	decoded := &disk.DecodedTrack{}

	FindSplicePoint(0, raw, decoded)

	if raw.SpliceStart != 0 {
		t.Fatalf("expected splice start at index 0 with no sectors, got %d", raw.SpliceStart)
	}
	if raw.SpliceEnd != 1000 {
		t.Fatalf("expected splice end at index 1 with no sectors, got %d", raw.SpliceEnd)
	}
}

func TestFindSplicePoint_PicksWidestGap(t *testing.T) {
	raw := &disk.FluxTrack{IndexTimes: []int64{0, 1000, 2000}}
	decoded := &disk.DecodedTrack{
		Sectors: []disk.DecodedSector{
			{Index: 0, Position: 0.1, EndingPosition: 0.2, RecordedAddressCRC: 1, ComputedAddressCRC: 1},
			{Index: 1, Position: 0.8, EndingPosition: 0.9, RecordedAddressCRC: 1, ComputedAddressCRC: 1},
		},
	}

	FindSplicePoint(0, raw, decoded)

	// the widest wrap-aware gap (0.6) is between sector 0's end (0.2) and
	// sector 1's start (0.8); the wrapped gap from 0.9 to 0.1 is only 0.2,
	// so the splice should land inside [0.2, 0.8).
	if raw.SpliceStart < 200 || raw.SpliceStart >= 800 {
		t.Fatalf("expected splice start within the widest gap, got %d", raw.SpliceStart)
	}
}

func TestFindSplicePoints_CoversEveryTrackAndSide(t *testing.T) {
	rawDisk := disk.NewRawDisk(disk.Geometry{Tracks: 2, TrackStep: 1, Sides: 2})
	decodedDisk := disk.NewDecodedDisk(disk.Geometry{Tracks: 2, TrackStep: 1, Sides: 2})

	for side := range rawDisk.Tracks {
		for i := range rawDisk.Tracks[side] {
			rawDisk.Tracks[side][i].IndexTimes = []int64{0, 1000, 2000}
		}
	}

	FindSplicePoints(rawDisk, decodedDisk)

	for side := range rawDisk.Tracks {
		for i := range rawDisk.Tracks[side] {
			if rawDisk.Tracks[side][i].SpliceEnd != 1000 {
				t.Fatalf("side %d track %d: expected splice end to be set", side, i)
			}
		}
	}
}
