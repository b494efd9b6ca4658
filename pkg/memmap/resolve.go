package memmap

import (
	"errors"
	"fmt"
)

// Resolver errors.
var (
	// ErrOutOfBounds indicates a computed byte range that exceeds the
	// register's declared total size.
	ErrOutOfBounds = errors.New("register access out of bounds")

	// ErrEmptyStruct indicates a range resolution over zero descriptors.
	ErrEmptyStruct = errors.New("no registers in struct")
)

// Resolve computes the absolute byte offset and byte length for an access
// to d. offset and size are expressed in array elements; size 0 means
// "whole register". Both are ignored for scalars and bitfields.
//
//   - Scalar: the whole element, (d.Offset, d.TypeSize).
//   - Array: offset scales by element size; length is size elements or,
//     when size is 0, the declared total. Ranges beyond the declared
//     total fail with ErrOutOfBounds before any transport traffic.
//   - Bitfield: the containing byte range, ceil((BitOffset+Bits)/8)
//     bytes starting at d.Offset. Bitfields are not indexable.
func Resolve(d *Descriptor, offset, size int) (int, int, error) {
	if d.IsBitfield() {
		return d.Offset, (d.BitOffset + d.Bits + 7) / 8, nil
	}
	if !d.IsArray() {
		return d.Offset, d.TypeSize, nil
	}
	if offset < 0 || size < 0 {
		return 0, 0, fmt.Errorf("%w: %s: negative offset or size", ErrOutOfBounds, d.Name)
	}
	length := d.TotalSize
	if size > 0 {
		length = size * d.TypeSize
	}
	abs := d.Offset + offset*d.TypeSize
	if abs+length > d.Offset+d.TotalSize {
		return 0, 0, fmt.Errorf("%w: %s: [%d,%d) exceeds end %d",
			ErrOutOfBounds, d.Name, abs, abs+length, d.Offset+d.TotalSize)
	}
	return abs, length, nil
}

// ResolveRange computes the combined byte span of an ordered descriptor
// run, from the first descriptor's offset through the last descriptor's
// end. Used for struct-level grouped reads.
func ResolveRange(ds []*Descriptor) (int, int, error) {
	if len(ds) == 0 {
		return 0, 0, ErrEmptyStruct
	}
	start := ds[0].Offset
	last := ds[len(ds)-1]
	end := last.Offset + last.TypeSize
	if last.IsArray() {
		end = last.Offset + last.TotalSize
	}
	if end < start {
		return 0, 0, fmt.Errorf("%w: span [%d,%d) is inverted", ErrOutOfBounds, start, end)
	}
	return start, end - start, nil
}
