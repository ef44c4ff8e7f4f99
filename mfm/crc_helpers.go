package mfm

import "github.com/sergev/floppy/crc"

// crc16CCITTByte and crc16CCITT adapt the shared CRC-CCITT accumulator (C7)
// for the byte-at-a-time calling convention used by ReadSectorIBMPC/
// EncodeTrackIBMPC.
func crc16CCITTByte(sum uint16, b byte) uint16 {
	acc := crc.NewAccumulator(sum)
	acc.WriteByte(b)
	return acc.Sum()
}

func crc16CCITT(sum uint16, data []byte) uint16 {
	return crc.Compute(data, sum)
}
