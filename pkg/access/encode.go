package access

// decodeElement decodes a little-endian fixed-width value. Signed types
// are sign-extended from the element width to int64.
func decodeElement(b []byte, signed bool) int64 {
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	if signed {
		shift := uint(64 - 8*len(b))
		return int64(u<<shift) >> shift
	}
	return int64(u)
}

// encodeElement encodes v as size little-endian bytes. Negative values
// encode in two's complement at the element width, so int8 -1 becomes
// byte 255.
func encodeElement(v int64, size int) []byte {
	b := make([]byte, size)
	u := uint64(v)
	for i := 0; i < size; i++ {
		b[i] = byte(u)
		u >>= 8
	}
	return b
}

// decodeUint decodes a little-endian unsigned value, used for bitfield
// container manipulation.
func decodeUint(b []byte) uint64 {
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	return u
}

// encodeUint encodes u as size little-endian bytes.
func encodeUint(u uint64, size int) []byte {
	b := make([]byte, size)
	for i := 0; i < size; i++ {
		b[i] = byte(u)
		u >>= 8
	}
	return b
}
