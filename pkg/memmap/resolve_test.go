package memmap

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	scalar := &Descriptor{Name: "s32", Offset: 16, Type: TypeUint32, TypeSize: 4}
	array := &Descriptor{Name: "arr16", Offset: 32, Type: TypeUint16, TypeSize: 2, TotalSize: 20, ArraySize: 10}
	bitfield := &Descriptor{Name: "bf.b9", Offset: 64, Type: TypeUint16, TypeSize: 2, BitOffset: 9, Bits: 3}

	tests := []struct {
		name       string
		d          *Descriptor
		offset     int
		size       int
		wantOffset int
		wantLength int
		wantErr    error
	}{
		{
			name: "scalar ignores offset and size",
			d:    scalar, offset: 5, size: 9,
			wantOffset: 16, wantLength: 4,
		},
		{
			name: "array full",
			d:    array, offset: 0, size: 0,
			wantOffset: 32, wantLength: 20,
		},
		{
			name: "array slice",
			d:    array, offset: 3, size: 4,
			wantOffset: 38, wantLength: 8,
		},
		{
			name: "array last element",
			d:    array, offset: 9, size: 1,
			wantOffset: 50, wantLength: 2,
		},
		{
			name: "array offset out of bounds",
			d:    array, offset: 100, size: 1,
			wantErr: ErrOutOfBounds,
		},
		{
			name: "array size out of bounds",
			d:    array, offset: 8, size: 3,
			wantErr: ErrOutOfBounds,
		},
		{
			name: "array negative offset",
			d:    array, offset: -1, size: 1,
			wantErr: ErrOutOfBounds,
		},
		{
			// bits 9..11 live in the second byte, but the containing
			// range starts at the register offset and spans two bytes.
			name: "bitfield containing bytes",
			d:    bitfield, offset: 7, size: 7,
			wantOffset: 64, wantLength: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, length, err := Resolve(tt.d, tt.offset, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if offset != tt.wantOffset || length != tt.wantLength {
				t.Errorf("resolved (%d, %d), want (%d, %d)", offset, length, tt.wantOffset, tt.wantLength)
			}
		})
	}
}

func TestResolveRange(t *testing.T) {
	ds := []*Descriptor{
		{Name: "a", Offset: 4, Type: TypeUint16, TypeSize: 2},
		{Name: "b", Offset: 6, Type: TypeUint8, TypeSize: 1},
		{Name: "c", Offset: 8, Type: TypeUint8, TypeSize: 1, TotalSize: 8, ArraySize: 8},
	}

	start, length, err := ResolveRange(ds)
	if err != nil {
		t.Fatalf("ResolveRange failed: %v", err)
	}
	if start != 4 || length != 12 {
		t.Errorf("span = (%d, %d), want (4, 12)", start, length)
	}

	if _, _, err := ResolveRange(nil); !errors.Is(err, ErrEmptyStruct) {
		t.Errorf("empty range error = %v, want ErrEmptyStruct", err)
	}
}
