package protocol

// Checksum computes the Improv frame checksum: the unsigned byte-wise sum
// of data truncated to the low 8 bits. Not a CRC, not two's-complement.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
