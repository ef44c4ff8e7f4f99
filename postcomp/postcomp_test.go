package postcomp

import (
	"testing"

	"github.com/sergev/floppy/disk"
)

func TestTrackMac800K_PreservesCountAndOrdering(t *testing.T) {
	track := &disk.FluxTrack{
		PhysTrack:     10,
		SamplesPerRev: 8_000_000,
		Transitions:   []int64{0, 200, 410, 600, 790, 1000, 1250, 1500},
	}

	before := len(track.Transitions)
	TrackMac800K(track)

	if len(track.Transitions) != before {
		t.Fatalf("transition count changed: got %d, want %d", len(track.Transitions), before)
	}

	for i := 1; i < len(track.Transitions); i++ {
		if track.Transitions[i] < track.Transitions[i-1] {
			t.Fatalf("ordering violated at %d: %d < %d", i, track.Transitions[i], track.Transitions[i-1])
		}
	}
}

func TestTrackMac800K_NoopBelowThreeTransitions(t *testing.T) {
	track := &disk.FluxTrack{Transitions: []int64{0, 100}}
	TrackMac800K(track)
	if track.Transitions[0] != 0 || track.Transitions[1] != 100 {
		t.Fatalf("expected no-op for <3 transitions, got %v", track.Transitions)
	}
}

func TestDisk_NoneAndAutoAreNoops(t *testing.T) {
	raw := disk.NewRawDisk(disk.Geometry{Tracks: 84, TrackStep: 2, Sides: 2})
	raw.Tracks[0][10].SamplesPerRev = 8_000_000
	raw.Tracks[0][10].Transitions = []int64{0, 200, 410, 600}
	want := append([]int64(nil), raw.Tracks[0][10].Transitions...)

	Disk(raw, disk.PostCompNone)
	Disk(raw, disk.PostCompAuto)

	got := raw.Tracks[0][10].Transitions
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("none/auto modified transitions: got %v, want %v", got, want)
		}
	}
}
