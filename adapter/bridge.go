package adapter

import (
	"fmt"

	"github.com/sergev/floppy/disk"
	"github.com/sergev/floppy/hfe"
	"github.com/sergev/floppy/mfm"
	"github.com/sergev/floppy/pipeline"
)

// decodableEncoding reports whether d's track encoding is one the core
// pipeline can decode; Amiga MFM, FM and the GCR encodings never appear in
// HFE images (HFE only carries ISO/IBM MFM), so only that case is bridged.
func decodableEncoding(d *hfe.Disk) bool {
	return d.Header.TrackEncoding == hfe.ENC_ISOIBM_MFM
}

// hfeToRawDisk resamples an HFE image's raw MFM bitstreams onto flux
// transition times, building the disk.RawDisk the core decoders expect.
// Each HFE track holds one bitcell stream per side already spanning a full
// revolution, so IndexTimes is just the track length.
func hfeToRawDisk(d *hfe.Disk) (*disk.RawDisk, disk.CoreOptions) {
	geom := disk.Geometry{
		Tracks:    int(d.Header.NumberOfTrack),
		TrackStep: 1,
		Sides:     int(d.Header.NumberOfSide),
	}
	rd := disk.NewRawDisk(geom)

	for trk, td := range d.Tracks {
		if trk >= geom.Tracks {
			break
		}
		sides := [][]byte{td.Side0}
		if geom.Sides > 1 {
			sides = append(sides, td.Side1)
		}
		for side, bits := range sides {
			if len(bits) == 0 {
				continue
			}
			numBits := len(bits) * 8
			transitions, err := mfm.GenerateFluxTransitions(bits, d.Header.BitRate)
			if err != nil {
				continue
			}
			ticks := make([]int64, len(transitions))
			for i, v := range transitions {
				ticks[i] = int64(v)
			}
			cellPeriodNs := int64(1e9 / (float64(d.Header.BitRate) * 1000.0 * 2))
			rd.Tracks[side][trk].Transitions = ticks
			rd.Tracks[side][trk].IndexTimes = []int64{0, int64(numBits) * cellPeriodNs}
			rd.Tracks[side][trk].SamplesPerRev = float64(numBits) * float64(cellPeriodNs)
		}
	}

	opts := disk.DefaultCoreOptions()
	opts.Geometry = geom
	opts.Encoding = map[disk.Encoding]bool{disk.EncodingMFM: true, disk.EncodingPCMFM: true}
	return rd, opts
}

// rawDiskToHFE resamples a synthesized disk.RawDisk back onto the fixed
// bitcell grid an HFE image stores, overwriting src's track data in place so
// its header (bit rate, RPM, interface mode) is preserved.
func rawDiskToHFE(rd *disk.RawDisk, src *hfe.Disk) {
	for trk := range src.Tracks {
		if trk >= rd.Geometry.Tracks {
			break
		}
		if len(src.Tracks[trk].Side0) > 0 {
			numBits := len(src.Tracks[trk].Side0) * 8
			src.Tracks[trk].Side0 = mfm.SampleFluxToBits(rd.Tracks[0][trk].Transitions, src.Header.BitRate, numBits)
		}
		if src.Header.NumberOfSide > 1 && len(src.Tracks[trk].Side1) > 0 {
			numBits := len(src.Tracks[trk].Side1) * 8
			src.Tracks[trk].Side1 = mfm.SampleFluxToBits(rd.Tracks[1][trk].Transitions, src.Header.BitRate, numBits)
		}
	}
}

// reencodeThroughCore decodes src's MFM bitstreams into sectors and
// re-synthesizes flux from them, reporting how many sectors passed their own
// CRC check. It mutates src in place and is a no-op (returning ok=false) for
// encodings the core doesn't decode.
func reencodeThroughCore(src *hfe.Disk) (good, total int, ok bool) {
	if !decodableEncoding(src) {
		return 0, 0, false
	}

	rd, opts := hfeToRawDisk(src)
	dd := pipeline.DecodeParallel(rd, opts)

	for side := 0; side < opts.Geometry.Sides; side++ {
		for trk := 0; trk < opts.Geometry.Tracks; trk++ {
			for _, s := range dd.Tracks[side][trk].Sectors {
				total++
				if s.IsGood() {
					good++
				}
			}
		}
	}

	reencoded := pipeline.Encode(dd, opts)
	rawDiskToHFE(reencoded, src)
	return good, total, true
}

func reportReencode(label string, good, total int, ok bool) {
	if !ok {
		fmt.Printf("%s: encoding not recognized by the core decoder, copied verbatim\n", label)
		return
	}
	fmt.Printf("%s: %d/%d sectors passed CRC through decode/re-encode\n", label, good, total)
}
