package ogg

// The Ogg checksum is CRC-32 with polynomial 0x04C11DB7, zero initial
// value, no reflection and no final XOR. hash/crc32 only implements the
// reflected variants, so the table is built here.
var crcTable = makeCRCTable(0x04C11DB7)

func makeCRCTable(poly uint32) *[256]uint32 {
	var table [256]uint32
	for i := range table {
		crc := uint32(i) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return &table
}

// CRC returns the Ogg checksum of b.
func CRC(b []byte) uint32 {
	return UpdateCRC(0, b)
}

// UpdateCRC continues a running checksum with the bytes of b.
func UpdateCRC(crc uint32, b []byte) uint32 {
	for _, v := range b {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^v]
	}
	return crc
}
