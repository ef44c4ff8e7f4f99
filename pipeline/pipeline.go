// Package pipeline wires the core decode/encode packages (pll, fm, mfm,
// gcr, sifter, trackenc) together into whole-disk operations. It cannot
// live in package disk itself: disk is the shared data model that fm, mfm,
// gcr, sifter, and trackenc all import, so a decoder dispatcher that needs
// all of them has to sit one layer above disk instead.
package pipeline

import (
	"runtime"
	"sync"

	"github.com/sergev/floppy/disk"
	"github.com/sergev/floppy/fm"
	"github.com/sergev/floppy/gcr"
	"github.com/sergev/floppy/mfm"
	"github.com/sergev/floppy/sifter"
	"github.com/sergev/floppy/trackenc"
)

// DecodeTrack runs every sector state machine CoreOptions asks for over one
// flux track, pools the resulting sector copies (including copies produced
// by the same machine across several revolutions), and reconciles them with
// sifter.Sift. trackNum is the physical track index, used only for sifter's
// diagnostic logging.
func DecodeTrack(raw *disk.FluxTrack, opts disk.CoreOptions, trackNum int) *disk.DecodedTrack {
	trackStep := opts.Geometry.TrackStep

	pooled := &disk.DecodedTrack{}
	collect := func(t *disk.DecodedTrack) {
		if t != nil {
			pooled.Sectors = append(pooled.Sectors, t.Sectors...)
		}
	}

	if opts.WantEncoding(disk.EncodingFM) {
		collect(fm.DecodeTrack(raw, opts.ClockPeriodAdjust, opts.HighDensity, trackStep))
	}
	if opts.WantEncoding(disk.EncodingMFM) || opts.WantEncoding(disk.EncodingPCMFM) {
		collect(mfm.DecodeTrack(raw, opts.ClockPeriodAdjust, opts.HighDensity, trackStep))
	}
	if opts.WantEncoding(disk.EncodingAmigaMFM) {
		collect(mfm.DecodeTrackAmiga(raw, opts.ClockPeriodAdjust, opts.HighDensity, trackStep))
	}
	if opts.WantEncoding(disk.EncodingAppleGCR) {
		collect(gcr.DecodeTrackApple2(raw, opts.ClockPeriodAdjust, trackStep, opts.InvertBit7))
	}
	if opts.WantEncoding(disk.EncodingMacGCR) {
		collect(gcr.DecodeTrackMac(raw, opts.ClockPeriodAdjust))
	}

	sifted := sifter.Sift(pooled, trackNum)
	out := &disk.DecodedTrack{Sectors: make([]disk.DecodedSector, len(sifted))}
	for i, s := range sifted {
		out.Sectors[i] = *s
	}
	return out
}

// Decode runs DecodeTrack over every (side, physical track) named by
// opts.Geometry, honoring opts.TrackSelect (-1 meaning every track).
func Decode(rd *disk.RawDisk, opts disk.CoreOptions) *disk.DecodedDisk {
	dd := disk.NewDecodedDisk(opts.Geometry)
	for side := 0; side < opts.Geometry.Sides; side++ {
		for phys := 0; phys < opts.Geometry.Tracks; phys++ {
			if opts.TrackSelect >= 0 && phys != opts.TrackSelect {
				continue
			}
			dd.Tracks[side][phys] = *DecodeTrack(&rd.Tracks[side][phys], opts, phys)
		}
	}
	return dd
}

// DecodeParallel is Decode with each (side, physical track) pair decoded on
// its own goroutine, bounded to GOMAXPROCS concurrent tracks at a time.
// Tracks share no mutable state: CoreOptions is passed by value and each
// goroutine only reads its own slot of rd and writes its own slot of dd, so
// the scheduling order has no effect on the result.
func DecodeParallel(rd *disk.RawDisk, opts disk.CoreOptions) *disk.DecodedDisk {
	dd := disk.NewDecodedDisk(opts.Geometry)

	type job struct{ side, phys int }
	var jobs []job
	for side := 0; side < opts.Geometry.Sides; side++ {
		for phys := 0; phys < opts.Geometry.Tracks; phys++ {
			if opts.TrackSelect >= 0 && phys != opts.TrackSelect {
				continue
			}
			jobs = append(jobs, job{side, phys})
		}
	}

	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for _, j := range jobs {
		j := j
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			dd.Tracks[j.side][j.phys] = *DecodeTrack(&rd.Tracks[j.side][j.phys], opts, j.phys)
		}()
	}
	wg.Wait()
	return dd
}

// Encode assembles a synthesized raw flux disk from decoded sectors via
// trackenc.EncodeDisk, then applies track reversal if requested.
//
// trackenc.EncodeTrack has no HighDensity parameter of its own; it derives
// bit-cell time purely from a period multiplier. HighDensity halves that
// multiplier here so it has the same effect on bit-cell time that it has on
// the decode side (mfm.DecodeTrack doubles cellsPerRev for the same flag).
func Encode(dd *disk.DecodedDisk, opts disk.CoreOptions) *disk.RawDisk {
	periodMultiplier := opts.ClockPeriodAdjust
	if opts.HighDensity {
		periodMultiplier /= 2
	}

	rd := disk.NewRawDisk(opts.Geometry)
	trackenc.EncodeDisk(rd, dd, periodMultiplier, opts.WantEncoding(disk.EncodingAppleGCR), opts.EncodePrecise)
	if opts.ReverseTracks {
		disk.ReverseTracks(rd)
	}
	return rd
}
