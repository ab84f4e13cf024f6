// Package hash provides the CRC-32C (Castagnoli) checksums used by the
// durability log.
//
// Go's hash/crc32 uses SSE4.2 or the ARM CRC extension for this
// polynomial when available.
//
//	sum := hash.CRC32C(line)
//	sum = hash.JoinedCRC32C('|', seq, op, collection, payload)
package hash
