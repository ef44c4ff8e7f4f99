// Package disk holds the shared data model for the floppy conversion core:
// the raw and decoded track/disk records, and the machine contract that the
// per-encoding sector state machines implement.
package disk

// Geometry describes the addressable extent of a disk image.
type Geometry struct {
	Tracks    int // physical track count (0-83)
	TrackStep int // 2 on a 96 tpi grid holding a 48 tpi layout, else 1
	Sides     int // 1 or 2
}

// FluxTrack is one physical track's worth of captured (or synthesised) flux.
type FluxTrack struct {
	PhysTrack int
	Side      int

	// SamplesPerRev is the average number of timer ticks per revolution on
	// this track's sample-time basis.
	SamplesPerRev float64

	// Transitions holds ordered, monotonically non-decreasing tick
	// timestamps; duplicates are tolerated and treated as zero-delta.
	Transitions []int64

	// IndexTimes holds ordered, strictly increasing tick timestamps of the
	// index sensor; the first entry is <= every in-range transition.
	IndexTimes []int64

	// SpliceStart/SpliceEnd mark one full revolution to commit to a
	// non-index-aligned writer; both -1 when absent.
	SpliceStart int64
	SpliceEnd   int64
}

// HasSplice reports whether a splice window has been recorded.
func (t *FluxTrack) HasSplice() bool {
	return t.SpliceStart >= 0 && t.SpliceEnd >= 0
}

// DecodedSector is one sector read (or to be written), possibly one of
// several competing copies of the same logical sector before sifting.
type DecodedSector struct {
	Index      int  // physical sector number: FM/MFM 1..N, Apple II/Amiga 0..N-1
	SectorSize int  // 128, 256, 512, or 1024
	IsMFM      bool // false for FM/GCR

	// AddressMark is the DAM byte for FM/MFM, the volume byte for Apple II
	// GCR, or the format byte for Amiga.
	AddressMark byte

	RecordedAddressCRC uint16
	ComputedAddressCRC uint16

	// RecordedCRC/ComputedCRC go up to 32 bits: Macintosh packs three
	// chained 8-bit sums into the low 24 bits.
	RecordedCRC uint32
	ComputedCRC uint32

	Data []byte

	// WeakOffset is the byte index at which payload becomes unstable
	// across reads, or -1 if the sector is stable.
	WeakOffset int

	// Position/EndingPosition are angular positions in [0,1).
	Position       float64
	EndingPosition float64

	RawStart int64
	RawEnd   int64
}

// IsGood reports whether both CRCs check out; see spec invariant in §3.
func (s *DecodedSector) IsGood() bool {
	return s.RecordedCRC == s.ComputedCRC && s.RecordedAddressCRC == s.ComputedAddressCRC
}

// ComputeContentHash produces a cheap order-sensitive hash over the sector's
// identifying fields and payload, used by the sifter's majority vote.
func (s *DecodedSector) ComputeContentHash() uint32 {
	hash := uint32(0)
	if s.IsMFM {
		hash = 1
	}

	hash += uint32(s.AddressMark)
	hash += uint32(s.SectorSize)
	hash += uint32(s.ComputedAddressCRC)
	hash += uint32(s.RecordedAddressCRC) << 16
	hash += s.ComputedCRC
	hash += s.RecordedCRC << 16
	hash += uint32(s.SectorSize)

	for i := 0; i+4 <= len(s.Data); i += 4 {
		word := uint32(s.Data[i]) | uint32(s.Data[i+1])<<8 | uint32(s.Data[i+2])<<16 | uint32(s.Data[i+3])<<24
		hash += word
		hash = (hash >> 1) + (hash << 31)
	}

	return hash
}

// HasSameContents reports whether two sectors carry identical metadata and
// payload bytes.
func (s *DecodedSector) HasSameContents(other *DecodedSector) bool {
	if s.IsMFM != other.IsMFM ||
		s.AddressMark != other.AddressMark ||
		s.SectorSize != other.SectorSize ||
		s.ComputedAddressCRC != other.ComputedAddressCRC ||
		s.RecordedAddressCRC != other.RecordedAddressCRC ||
		s.ComputedCRC != other.ComputedCRC ||
		s.RecordedCRC != other.RecordedCRC {
		return false
	}

	if len(s.Data) != len(other.Data) {
		return false
	}

	for i := range s.Data {
		if s.Data[i] != other.Data[i] {
			return false
		}
	}

	return true
}

// DecodedTrack is an unordered multiset of DecodedSectors (the same Index
// may appear multiple times pre-sifting), plus the verbatim Apple II GCR
// byte stream captured between sync markers for NIB output.
type DecodedTrack struct {
	Sectors []DecodedSector
	GCRData []byte
}

// RawDisk is addressable by [Side][PhysTrack] with fixed 2x84 dimensions.
type RawDisk struct {
	Geometry Geometry
	Tracks   [2][84]FluxTrack
}

// NewRawDisk builds a RawDisk with PhysTrack/Side stamped on every slot.
func NewRawDisk(geom Geometry) *RawDisk {
	rd := &RawDisk{Geometry: geom}
	for side := range rd.Tracks {
		for trk := range rd.Tracks[side] {
			rd.Tracks[side][trk].PhysTrack = trk
			rd.Tracks[side][trk].Side = side
			rd.Tracks[side][trk].SpliceStart = -1
			rd.Tracks[side][trk].SpliceEnd = -1
		}
	}
	return rd
}

// DecodedDisk is addressable by [Side][PhysTrack] with fixed 2x84 dimensions.
type DecodedDisk struct {
	Geometry Geometry
	Tracks   [2][84]DecodedTrack
}

// NewDecodedDisk builds an empty DecodedDisk.
func NewDecodedDisk(geom Geometry) *DecodedDisk {
	return &DecodedDisk{Geometry: geom}
}

// Machine is the contract met by the spawned sector state machines (FM,
// generic MFM, Amiga MFM); the GCR state machines run inside their driver
// functions instead. A driver holds its live parsers and calls Parse once
// per PLL cell; when Parse returns false the driver drops the instance.
type Machine interface {
	Parse(tick int64, clock, data byte) (keepAlive bool)
}

// ReverseTrack time-reverses all tick-space fields of a FluxTrack in place,
// used when CoreOptions.ReverseTracks is set.
func ReverseTrack(t *FluxTrack) {
	maxTime := int64(0)
	if len(t.IndexTimes) > 0 {
		maxTime = t.IndexTimes[len(t.IndexTimes)-1]
	}
	if len(t.Transitions) > 0 && t.Transitions[len(t.Transitions)-1] > maxTime {
		maxTime = t.Transitions[len(t.Transitions)-1]
	}
	if t.HasSplice() && t.SpliceEnd > maxTime {
		maxTime = t.SpliceEnd
	}

	rev := func(x int64) int64 { return maxTime - x }

	for i, v := range t.IndexTimes {
		t.IndexTimes[i] = rev(v)
	}
	for i, j := 0, len(t.IndexTimes)-1; i < j; i, j = i+1, j-1 {
		t.IndexTimes[i], t.IndexTimes[j] = t.IndexTimes[j], t.IndexTimes[i]
	}

	for i, v := range t.Transitions {
		t.Transitions[i] = rev(v)
	}
	for i, j := 0, len(t.Transitions)-1; i < j; i, j = i+1, j-1 {
		t.Transitions[i], t.Transitions[j] = t.Transitions[j], t.Transitions[i]
	}

	if t.HasSplice() {
		t.SpliceStart, t.SpliceEnd = rev(t.SpliceEnd), rev(t.SpliceStart)
	}
}

// ReverseTracks applies ReverseTrack to every track of a RawDisk.
func ReverseTracks(rd *RawDisk) {
	for side := range rd.Tracks {
		for i := range rd.Tracks[side] {
			ReverseTrack(&rd.Tracks[side][i])
		}
	}
}
