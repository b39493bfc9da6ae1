// Package crc computes the IEEE CRC-32 the ESFS on-disk format reserves for its
// superblock and directory-entry checksum fields. The read path never verifies these
// by default — see MountOptions.VerifyChecksums — matching the source, which reserves
// the fields without checking them.
package crc

import "hash/crc32"

// Checksum returns the IEEE CRC-32 of b, the same polynomial ESFS's reserved checksum
// fields are documented to use.
func Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
