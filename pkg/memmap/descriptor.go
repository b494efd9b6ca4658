package memmap

import (
	"fmt"
	"strings"
)

// PrimitiveType identifies the primitive element type of a register.
// It governs element width, signedness and casting of raw bytes.
type PrimitiveType uint8

const (
	TypeUint8 PrimitiveType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeUint64
	TypeInt64
)

// Size returns the element size in bytes.
func (t PrimitiveType) Size() int {
	switch t {
	case TypeUint8, TypeInt8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint32, TypeInt32:
		return 4
	case TypeUint64, TypeInt64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether the type uses two's-complement encoding.
func (t PrimitiveType) Signed() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return true
	default:
		return false
	}
}

// String returns the C-style type name used in memory map exports.
func (t PrimitiveType) String() string {
	switch t {
	case TypeUint8:
		return "uint8_t"
	case TypeInt8:
		return "int8_t"
	case TypeUint16:
		return "uint16_t"
	case TypeInt16:
		return "int16_t"
	case TypeUint32:
		return "uint32_t"
	case TypeInt32:
		return "int32_t"
	case TypeUint64:
		return "uint64_t"
	case TypeInt64:
		return "int64_t"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType parses a type name. Both the C-style ("uint16_t")
// and the bare ("uint16") spellings are accepted.
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.TrimSuffix(strings.TrimSpace(s), "_t") {
	case "uint8":
		return TypeUint8, nil
	case "int8":
		return TypeInt8, nil
	case "uint16":
		return TypeUint16, nil
	case "int16":
		return TypeInt16, nil
	case "uint32":
		return TypeUint32, nil
	case "int32":
		return TypeInt32, nil
	case "uint64":
		return TypeUint64, nil
	case "int64":
		return TypeInt64, nil
	default:
		return 0, fmt.Errorf("unknown primitive type %q", s)
	}
}

// AccessFlags describes permitted operations and semantic hints
// for a register.
type AccessFlags uint8

const (
	// AccessRead permits register reads.
	AccessRead AccessFlags = 1 << iota

	// AccessWrite permits register writes.
	AccessWrite

	// FlagVolatile marks a register whose value changes between reads;
	// consistency checks must not assume stable read-back.
	FlagVolatile

	// FlagDeviceSpecific marks a register excluded from generic
	// conformance checks.
	FlagDeviceSpecific
)

// CanRead reports whether reads are permitted.
func (a AccessFlags) CanRead() bool { return a&AccessRead != 0 }

// CanWrite reports whether writes are permitted.
func (a AccessFlags) CanWrite() bool { return a&AccessWrite != 0 }

// Volatile reports whether the register value may change between reads.
func (a AccessFlags) Volatile() bool { return a&FlagVolatile != 0 }

// Reserved-field name suffixes. Fields with these suffixes consume their
// byte range in struct reads but are excluded from decoded output.
var reservedSuffixes = []string{".res", ".padding"}

// Descriptor describes one named register, array or bitfield in the
// device memory map. Descriptors are immutable after the Map is loaded.
type Descriptor struct {
	// Name is the unique dotted register name, e.g. "i2c.addr".
	Name string

	// Offset is the absolute byte offset from the map base.
	Offset int

	// Type is the primitive element type.
	Type PrimitiveType

	// TypeSize is the size in bytes of one primitive element.
	TypeSize int

	// TotalSize is the total byte size for arrays; 0 means scalar.
	TotalSize int

	// ArraySize is the element count for arrays; 0 means scalar.
	ArraySize int

	// BitOffset is the bit position of a bitfield within its
	// containing byte range. Only meaningful when Bits > 0.
	BitOffset int

	// Bits is the bitfield width; 0 means the register is byte-aligned.
	Bits int

	// Access holds permission and semantic flags.
	Access AccessFlags

	// Default is the expected reset value, if declared.
	Default *int64

	// Description is free-form documentation from the map source.
	Description string
}

// IsArray reports whether the register is an array.
func (d *Descriptor) IsArray() bool { return d.TotalSize > 0 }

// IsBitfield reports whether the register is a sub-byte bitfield.
func (d *Descriptor) IsBitfield() bool { return d.Bits > 0 }

// IsReserved reports whether the register is a reserved/padding field.
func (d *Descriptor) IsReserved() bool {
	for _, suffix := range reservedSuffixes {
		if strings.HasSuffix(d.Name, suffix) {
			return true
		}
	}
	return false
}

// validate checks internal consistency before a descriptor is added
// to a Map.
func (d *Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor without name at offset %d", d.Offset)
	}
	if d.Offset < 0 {
		return fmt.Errorf("register %s: negative offset %d", d.Name, d.Offset)
	}
	if d.TypeSize <= 0 {
		return fmt.Errorf("register %s: invalid type size %d", d.Name, d.TypeSize)
	}
	if d.TotalSize < 0 {
		return fmt.Errorf("register %s: negative total size %d", d.Name, d.TotalSize)
	}
	if d.Bits < 0 || d.BitOffset < 0 {
		return fmt.Errorf("register %s: negative bitfield geometry", d.Name)
	}
	if d.Bits > 0 && d.TotalSize > 0 {
		return fmt.Errorf("register %s: bitfield cannot be an array", d.Name)
	}
	if d.Bits > 0 && d.BitOffset+d.Bits > d.TypeSize*8 {
		return fmt.Errorf("register %s: bitfield exceeds container (%d+%d bits in %d bytes)",
			d.Name, d.BitOffset, d.Bits, d.TypeSize)
	}
	return nil
}
