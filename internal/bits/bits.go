// Package bits provides low-level bit manipulation primitives for splitting
// bytes into row-sized fields and packing them back.
package bits

// FieldsPerByte returns how many bitPerRow-wide fields make up one byte.
// bitPerRow must be 1, 2 or 4.
func FieldsPerByte(bitPerRow int) int {
	return 8 / bitPerRow
}

// ValidWidth reports whether bitPerRow divides a byte evenly and fits in
// the classifier's first digest byte.
func ValidWidth(bitPerRow int) bool {
	return bitPerRow == 1 || bitPerRow == 2 || bitPerRow == 4
}

// SplitByte appends the fields of b to dst, most significant field first.
func SplitByte(dst []uint8, b byte, bitPerRow int) []uint8 {
	mask := uint8(1)<<bitPerRow - 1
	for shift := 8 - bitPerRow; shift >= 0; shift -= bitPerRow {
		dst = append(dst, (b>>shift)&mask)
	}
	return dst
}

// Pack folds fields back into bytes, most significant field first.
// len(fields) must be a multiple of FieldsPerByte(bitPerRow); dst must hold
// len(fields)/FieldsPerByte(bitPerRow) bytes. Fields wider than bitPerRow
// are masked.
func Pack(dst []byte, fields []uint8, bitPerRow int) {
	fpb := 8 / bitPerRow
	mask := uint8(1)<<bitPerRow - 1
	for i := range dst {
		var b byte
		for _, f := range fields[i*fpb : (i+1)*fpb] {
			b = b<<bitPerRow | f&mask
		}
		dst[i] = b
	}
}
