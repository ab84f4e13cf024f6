package hash

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC-32C checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// JoinedCRC32C returns the CRC-32C of fields joined by sep, without
// building the joined slice.
func JoinedCRC32C(sep byte, fields ...[]byte) uint32 {
	var crc uint32
	for i, f := range fields {
		if i > 0 {
			crc = crc32.Update(crc, castagnoli, []byte{sep})
		}
		crc = crc32.Update(crc, castagnoli, f)
	}
	return crc
}
