package disk

// Encoding identifies one of the sector state machines that may run over a
// track's PLL output.
type Encoding string

const (
	EncodingFM        Encoding = "fm"
	EncodingMFM       Encoding = "mfm"
	EncodingPCMFM     Encoding = "pcmfm"
	EncodingAmigaMFM  Encoding = "amigamfm"
	EncodingMacGCR    Encoding = "macgcr"
	EncodingAppleGCR  Encoding = "a2gcr"
)

// PostCompMode selects which post-compensation filter (C8) to apply.
type PostCompMode string

const (
	PostCompNone    PostCompMode = "none"
	PostCompAuto    PostCompMode = "auto"
	PostCompMac800K PostCompMode = "mac800k"
)

// InterleaveMode selects the interleave collaborator's behaviour.
type InterleaveMode string

const (
	InterleaveAuto      InterleaveMode = "auto"
	InterleaveForceAuto InterleaveMode = "force_auto"
	InterleaveNone      InterleaveMode = "none"
	InterleaveXF551HS   InterleaveMode = "xf551_hs"
)

// CoreOptions is the immutable options record threaded through every
// pipeline call; no core package reads a package-level variable for
// configuration, diagnostic verbosity included.
type CoreOptions struct {
	Encoding          map[Encoding]bool
	PostComp          PostCompMode
	Interleave        InterleaveMode
	EncodePrecise     bool
	ClockPeriodAdjust float64
	HighDensity       bool
	ReverseTracks     bool
	InvertBit7        bool
	TrackSelect       int // -1 means "all tracks"
	Geometry          Geometry
	Verbosity         int
}

// DefaultCoreOptions returns the options a plain decode/encode run uses
// absent any CLI/config overrides.
func DefaultCoreOptions() CoreOptions {
	return CoreOptions{
		Encoding:          map[Encoding]bool{EncodingFM: true},
		PostComp:          PostCompNone,
		Interleave:        InterleaveAuto,
		EncodePrecise:     false,
		ClockPeriodAdjust: 1.0,
		HighDensity:       false,
		ReverseTracks:     false,
		InvertBit7:        false,
		TrackSelect:       -1,
		Geometry:          Geometry{Tracks: 84, TrackStep: 2, Sides: 2},
		Verbosity:         0,
	}
}

// WantEncoding reports whether a given encoding should run on decode.
func (o CoreOptions) WantEncoding(e Encoding) bool {
	return o.Encoding[e]
}
