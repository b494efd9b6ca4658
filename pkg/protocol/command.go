package protocol

import (
	"strconv"
	"strings"
)

// Opcode identifies a wire command.
type Opcode uint8

const (
	// OpReadBytes reads a byte range: "rr <offset> <length>".
	OpReadBytes Opcode = iota

	// OpWriteBytes writes a byte range: "wr <offset> <b0> <b1> ...".
	OpWriteBytes

	// OpCommit applies pending configuration: "ex".
	OpCommit

	// OpSoftReset asks the device to reset itself: "mcu_rst".
	OpSoftReset

	// OpVersion queries the interface version: "version".
	OpVersion

	// OpSpecial is a device-defined extension command, passed through
	// opaquely.
	OpSpecial
)

// String returns the wire name of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpReadBytes:
		return "rr"
	case OpWriteBytes:
		return "wr"
	case OpCommit:
		return "ex"
	case OpSoftReset:
		return "mcu_rst"
	case OpVersion:
		return "version"
	case OpSpecial:
		return "special_cmd"
	default:
		return "unknown"
	}
}

// Command is one wire command before serialization.
type Command struct {
	// Op selects the command.
	Op Opcode

	// Offset is the absolute byte offset (OpReadBytes, OpWriteBytes).
	Offset int

	// Length is the byte count to read (OpReadBytes).
	Length int

	// Data holds the bytes to write (OpWriteBytes), already in
	// little-endian order per the declared field width.
	Data []byte

	// Raw overrides the command text for OpSpecial extensions.
	Raw string
}

// Line serializes the command to its single-line wire form, without the
// newline terminator. Write payload bytes are rendered as space
// separated decimal values.
func (c Command) Line() string {
	switch c.Op {
	case OpReadBytes:
		return "rr " + strconv.Itoa(c.Offset) + " " + strconv.Itoa(c.Length)
	case OpWriteBytes:
		var sb strings.Builder
		sb.WriteString("wr ")
		sb.WriteString(strconv.Itoa(c.Offset))
		for _, b := range c.Data {
			sb.WriteByte(' ')
			sb.WriteString(strconv.Itoa(int(b)))
		}
		return sb.String()
	case OpSpecial:
		if c.Raw != "" {
			return c.Raw
		}
		return c.Op.String()
	default:
		return c.Op.String()
	}
}

// ReadCommand builds an OpReadBytes command.
func ReadCommand(offset, length int) Command {
	return Command{Op: OpReadBytes, Offset: offset, Length: length}
}

// WriteCommand builds an OpWriteBytes command.
func WriteCommand(offset int, data []byte) Command {
	return Command{Op: OpWriteBytes, Offset: offset, Data: data}
}
