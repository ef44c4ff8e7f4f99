// Package postcomp implements the peak-shift post-compensation filter (C8)
// applied to high-density Macintosh 800K raw tracks before decoding.
package postcomp

import "github.com/sergev/floppy/disk"

// TrackMac800K pushes transitions apart when adjacent spacing falls below a
// per-track threshold, counteracting the predictable peak-shift distortion
// recorded on Mac 800K high-density tracks. It is idempotent only up to ±1
// tick due to integer arithmetic, matching the original implementation.
func TrackMac800K(track *disk.FluxTrack) {
	n := len(track.Transitions)
	if n < 3 {
		return
	}

	t0 := track.Transitions[0]
	t1 := track.Transitions[1]

	physTrack := track.PhysTrack
	if physTrack > 47 {
		physTrack = 47
	}

	thresh := int64(0.5 + track.SamplesPerRev/30000.0*float64(160+physTrack)/240.0)

	for i := 2; i < n; i++ {
		t2 := track.Transitions[i]

		t01 := t1 - t0
		t12 := t2 - t1

		delta1 := thresh - t01
		if delta1 < 0 {
			delta1 = 0
		}
		delta2 := thresh - t12
		if delta2 < 0 {
			delta2 = 0
		}

		shift := ((delta2 - delta1) * 5) / 12

		min := -t01 / 2
		max := t12 / 2
		if shift < min {
			shift = min
		}
		if shift > max {
			shift = max
		}

		track.Transitions[i-1] = t1 + shift

		t0 = t1
		t1 = t2
	}
}

// Disk applies the selected post-compensation mode across every track of a
// RawDisk. PostCompNone and PostCompAuto are no-ops at this layer (auto
// calibration belongs to the out-of-scope analyze collaborator).
func Disk(raw *disk.RawDisk, mode disk.PostCompMode) {
	if mode != disk.PostCompMac800K {
		return
	}

	for side := range raw.Tracks {
		for i := range raw.Tracks[side] {
			TrackMac800K(&raw.Tracks[side][i])
		}
	}
}
