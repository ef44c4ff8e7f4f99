package diskscript

import "testing"

func TestCompile_SimpleTrack(t *testing.T) {
	src := []byte(`
		geometry 80, 2;
		track 0, 0 {
			pad_bits 32, 0;
			byte 0xFF;
			bytes 0xD5, 0xAA, 0x96;
			crc_begin;
			byte 0x01;
			crc_end;
		}
	`)

	rawDisk, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if rawDisk.Geometry.Tracks != 80 || rawDisk.Geometry.Sides != 2 {
		t.Fatalf("geometry not applied: %+v", rawDisk.Geometry)
	}

	track := &rawDisk.Tracks[0][0]
	if len(track.Transitions) == 0 {
		t.Fatalf("expected transitions to be recorded")
	}
	if !track.HasSplice() {
		t.Fatalf("expected a splice window to be recorded at end of track")
	}

	// transitions are duplicated across a synthetic extra revolution
	half := len(track.Transitions) / 2
	if len(track.Transitions)%2 != 0 {
		t.Fatalf("expected an even number of duplicated transitions, got %d", len(track.Transitions))
	}
	indexPeriod := track.IndexTimes[1]
	for i := 0; i < half; i++ {
		if track.Transitions[half+i] != track.Transitions[i]+indexPeriod {
			t.Fatalf("second revolution copy mismatch at %d", i)
		}
	}
}

func TestCompile_RepeatStatement(t *testing.T) {
	src := []byte(`
		track 1 {
			repeat 4 {
				byte 0x4E;
			}
		}
	`)

	rawDisk, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(rawDisk.Tracks[0][1].Transitions) == 0 {
		t.Fatalf("expected transitions from repeated byte emission")
	}
}

func TestCompile_InvalidByteValueFails(t *testing.T) {
	src := []byte(`
		track 0 {
			byte 300;
		}
	`)
	if _, err := Compile(src); err == nil {
		t.Fatalf("expected an error for an out-of-range byte value")
	}
}

func TestParse_RejectsUnknownKeyword(t *testing.T) {
	if _, err := Parse([]byte(`bogus_statement 1;`)); err == nil {
		t.Fatalf("expected a parse error for an unknown keyword")
	}
}
