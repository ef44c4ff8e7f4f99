package sifter

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/sergev/floppy/disk"
)

// TestSift_NeverEmitsNearDuplicatePositions generates arbitrary pools of
// same-index sector reads at arbitrary angular positions and checks that no
// two sifted entries for the same index survive within 0.03 of each other.
func TestSift_NeverEmitsNearDuplicatePositions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 12).Draw(t, "count")

		var sectors []disk.DecodedSector
		for i := 0; i < count; i++ {
			index := rapid.IntRange(1, 3).Draw(t, "index")
			position := rapid.Float64Range(0, 0.999).Draw(t, "position")
			size := rapid.IntRange(1, 8).Draw(t, "size")
			good := rapid.Bool().Draw(t, "good")

			crcMatch := uint32(1)
			if !good {
				crcMatch = 2
			}

			sectors = append(sectors, disk.DecodedSector{
				Index:              index,
				SectorSize:         size,
				Data:               make([]byte, size),
				Position:           position,
				EndingPosition:     position + 0.001,
				WeakOffset:         -1,
				RecordedCRC:        1,
				ComputedCRC:        crcMatch,
				RecordedAddressCRC: 1,
				ComputedAddressCRC: 1,
			})
		}

		track := &disk.DecodedTrack{Sectors: sectors}
		result := SiftWithLogger(track, 0, log.New(io.Discard))

		for _, s := range result {
			assert.Equalf(t, s.SectorSize, len(s.Data), "sector %d: data length drifted from sector_size", s.Index)
			assert.GreaterOrEqualf(t, s.Position, 0.0, "sector %d: position below 0", s.Index)
			assert.Lessf(t, s.Position, 1.0, "sector %d: position not below 1", s.Index)
		}

		for i := 0; i < len(result); i++ {
			for j := i + 1; j < len(result); j++ {
				if result[i].Index != result[j].Index {
					continue
				}
				d := result[i].Position - result[j].Position
				if d < 0 {
					d = -d
				}
				assert.Greaterf(t, d, 0.03, "entries %v and %v for index %d survived within tolerance", result[i].Position, result[j].Position, result[i].Index)
			}
		}
	})
}
