package state

// CRC16 calculates the CRC-16/CCITT-FALSE checksum (polynomial 0x1021, initial value 0xFFFF, no
// reflection) that protects the stored record
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		x := uint8(crc>>8) ^ b
		x ^= x >> 4
		crc = (crc << 8) ^ uint16(x)<<12 ^ uint16(x)<<5 ^ uint16(x)
	}
	return crc
}
