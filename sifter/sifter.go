// Package sifter implements the sector sifter (C9): given a track's
// possibly-duplicated, possibly-corrupted DecodedSector reads across
// multiple revolutions, produce one canonical, angle-ordered list per
// sector index, flagging phantom sectors and weak-bit regions along the
// way.
package sifter

import (
	"sort"

	"github.com/charmbracelet/log"
	"github.com/sergev/floppy/disk"
)

// Sift reduces track.Sectors to one entry per physical sector instance,
// sorted by angular position. trackNum is used only for log messages.
func Sift(track *disk.DecodedTrack, trackNum int) []*disk.DecodedSector {
	return SiftWithLogger(track, trackNum, log.Default())
}

// SiftWithLogger is Sift with an explicit logger, so callers (and tests)
// can control/observe the per-sector warning stream.
func SiftWithLogger(track *disk.DecodedTrack, trackNum int, logger *log.Logger) []*disk.DecodedSector {
	all := make([]*disk.DecodedSector, len(track.Sectors))
	for i := range track.Sectors {
		all[i] = &track.Sectors[i]
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Index < all[j].Index })

	var result []*disk.DecodedSector

	for len(all) > 0 {
		sector := all[0].Index

		var group []*disk.DecodedSector
		var rest []*disk.DecodedSector
		for _, s := range all {
			if s.Index == sector {
				group = append(group, s)
			} else {
				rest = append(rest, s)
			}
		}
		all = rest

		sort.SliceStable(group, func(i, j int) bool { return group[i].Position < group[j].Position })

		subgroupCount := 0

		for i1 := 0; i1 < len(group); {
			position0 := group[i1].Position
			posend0 := group[i1].EndingPosition

			var poserrSum, posenderrSum float64
			subgroup := []*disk.DecodedSector{group[i1]}
			mismatch := false

			i2 := i1 + 1
			for i2 < len(group) {
				poserr := group[i2].Position - position0
				if poserr > 0.5 {
					poserr -= 1.0
				}
				if abs(poserr) > 0.03 {
					break
				}
				poserrSum += poserr

				posenderr := group[i2].EndingPosition - posend0
				if posenderr > 0.5 {
					posenderr -= 1.0
				}
				posenderrSum += posenderr

				subgroup = append(subgroup, group[i2])
				if !group[i1].HasSameContents(group[i2]) {
					mismatch = true
				}

				i2++
			}

			position0 += poserrSum / float64(len(subgroup))
			position0 -= floor(position0)

			posend0 += posenderrSum / float64(len(subgroup))
			posend0 -= floor(posend0)

			crcOK := true
			n1 := len(subgroup)

			if anySector(subgroup, func(s *disk.DecodedSector) bool { return s.RecordedAddressCRC == s.ComputedAddressCRC }) {
				subgroup = filterSectors(subgroup, func(s *disk.DecodedSector) bool { return s.RecordedAddressCRC == s.ComputedAddressCRC })
			} else {
				crcOK = false
			}

			if anySector(subgroup, func(s *disk.DecodedSector) bool { return s.RecordedCRC == s.ComputedCRC }) {
				subgroup = filterSectors(subgroup, func(s *disk.DecodedSector) bool { return s.RecordedCRC == s.ComputedCRC })
			} else {
				crcOK = false
			}

			n2 := len(subgroup)
			if n1 != n2 {
				logger.Warnf("WARNING: Track %2d, sector %2d: %d/%d bad sector reads discarded at position %.2f.", trackNum, sector, n1-n2, n1, position0)
			}

			best := subgroup[0]
			cleanSift := true

			if len(subgroup) > 1 && mismatch {
				cleanSift = false
				best = majorityVote(subgroup)

				if best == nil {
					// degrade gracefully: keep the first-seen copy
					best = subgroup[0]
				} else if crcOK {
					logger.Warnf("WARNING: Track %2d, sector %2d: different good data found at the same position %.2f. Keeping one of them.", trackNum, sector, position0)
				} else {
					maxMatch := commonPrefixLen(subgroup, best)
					best.WeakOffset = maxMatch
					logger.Warnf("WARNING: Track %2d, sector %2d: different bad data found at the same position %.2f. Encoding weak sector at offset %d.", trackNum, sector, position0, maxMatch)
				}
			}

			if cleanSift && !crcOK {
				if best.WeakOffset >= 0 {
					logger.Warnf("WARNING: Track %2d, sector %2d: weak sector detected at position %.2f, offset %d.", trackNum, sector, position0, best.WeakOffset)
				} else {
					logger.Warnf("WARNING: Track %2d, sector %2d: stable CRC error detected at position %.2f.", trackNum, sector, position0)
				}
			}

			best.Position = position0
			best.EndingPosition = posend0

			result = append(result, best)
			subgroupCount++

			i1 = i2
		}

		if subgroupCount > 1 {
			suffix := "s"
			if subgroupCount == 2 {
				suffix = ""
			}
			logger.Warnf("WARNING: Track %2d, sector %2d: %d phantom sector%s found.", trackNum, sector, subgroupCount-1, suffix)
		}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Position < result[j].Position })

	return result
}

func anySector(group []*disk.DecodedSector, pred func(*disk.DecodedSector) bool) bool {
	for _, s := range group {
		if pred(s) {
			return true
		}
	}
	return false
}

func filterSectors(group []*disk.DecodedSector, pred func(*disk.DecodedSector) bool) []*disk.DecodedSector {
	var out []*disk.DecodedSector
	for _, s := range group {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}

// majorityVote picks the most popular sector by content hash, first-seen
// wins on ties (stable insertion order of hashedSectors preserved by
// iterating subgroup in original order).
func majorityVote(subgroup []*disk.DecodedSector) *disk.DecodedSector {
	type bucket struct {
		rep   *disk.DecodedSector
		count int
	}
	var buckets []*bucket

	for _, s := range subgroup {
		matched := false
		for _, b := range buckets {
			if b.rep.HasSameContents(s) {
				b.count++
				matched = true
				break
			}
		}
		if !matched {
			buckets = append(buckets, &bucket{rep: s, count: 1})
		}
	}

	if len(buckets) == 1 {
		return buckets[0].rep
	}

	best := buckets[0]
	for _, b := range buckets[1:] {
		if b.count > best.count {
			best = b
		}
	}
	return best.rep
}

// commonPrefixLen returns the longest common byte prefix shared by every
// member of subgroup (used as the weak-bit offset when content disagrees).
func commonPrefixLen(subgroup []*disk.DecodedSector, ref *disk.DecodedSector) int {
	maxMatch := ref.SectorSize

	for _, s := range subgroup {
		if s == ref {
			continue
		}
		for i := 0; i < maxMatch && i < len(s.Data) && i < len(ref.Data); i++ {
			if s.Data[i] != ref.Data[i] {
				maxMatch = i
				break
			}
		}
	}

	return maxMatch
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func floor(x float64) float64 {
	i := int64(x)
	if x < 0 && float64(i) != x {
		i--
	}
	return float64(i)
}
