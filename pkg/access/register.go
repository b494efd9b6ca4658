package access

import (
	"fmt"

	"github.com/regline-protocol/regline-go/pkg/memmap"
	"github.com/regline-protocol/regline-go/pkg/protocol"
)

// ReadRegister reads a register and decodes it per its declared type.
// Scalars and bitfields decode to int64; arrays decode to []int64, one
// element per declared element width. WithOffset and WithSize select an
// element range of an array register.
func (e *Engine) ReadRegister(name string, opts ...Option) (*Result, error) {
	st := e.newOp(opts)
	d, err := e.mm.Lookup(name)
	if err != nil {
		return st.res, err
	}
	offset, length, err := memmap.Resolve(d, st.o.offset, st.o.size)
	if err != nil {
		return st.res, err
	}
	defer e.logOp(st, "read", name, offset, length)

	data, literal, err := e.readRange(st, offset, length)
	if err != nil {
		return st.res, err
	}
	if literal != nil {
		st.res.Value = literal
		return st.res, nil
	}
	st.res.Value = decodeRegister(d, data)
	return st.res, nil
}

// WriteRegister writes a single value to a scalar, bitfield, or array
// element (selected with WithOffset). Bitfields are applied with a
// read-modify-write of the containing bytes; a value that does not fit
// the declared bit width fails with ErrOutOfRange before any wire
// traffic. WithVerify reads the value back and fails with
// ErrVerificationFailed on mismatch.
func (e *Engine) WriteRegister(name string, value int64, opts ...Option) (*Result, error) {
	st := e.newOp(opts)
	d, err := e.mm.Lookup(name)
	if err != nil {
		return st.res, err
	}

	if d.IsBitfield() {
		return e.writeBitfield(st, d, value)
	}

	size := 1
	if !d.IsArray() {
		size = 0
	}
	offset, length, err := memmap.Resolve(d, st.o.offset, size)
	if err != nil {
		return st.res, err
	}
	defer e.logOp(st, "write", name, offset, length)

	if err := e.writeRange(st, offset, encodeElement(value, d.TypeSize)); err != nil {
		return st.res, err
	}
	if st.o.verify {
		return st.res, e.verifyElement(st, d, offset, value)
	}
	return st.res, nil
}

// WriteRegisterValues writes consecutive array elements starting at
// WithOffset. Values encode at the declared element width, fragmented
// like reads.
func (e *Engine) WriteRegisterValues(name string, values []int64, opts ...Option) (*Result, error) {
	st := e.newOp(opts)
	d, err := e.mm.Lookup(name)
	if err != nil {
		return st.res, err
	}
	if !d.IsArray() {
		return st.res, fmt.Errorf("%w: %s: element range write on non-array register",
			memmap.ErrOutOfBounds, name)
	}
	offset, length, err := memmap.Resolve(d, st.o.offset, len(values))
	if err != nil {
		return st.res, err
	}
	defer e.logOp(st, "write", name, offset, length)

	data := make([]byte, 0, length)
	for _, v := range values {
		data = append(data, encodeElement(v, d.TypeSize)...)
	}
	if err := e.writeRange(st, offset, data); err != nil {
		return st.res, err
	}
	if st.o.verify {
		return st.res, e.verifyElements(st, d, offset, values)
	}
	return st.res, nil
}

// writeBitfield applies a read-modify-write on the bitfield's
// containing byte range, preserving all bits outside the target window.
func (e *Engine) writeBitfield(st *opState, d *memmap.Descriptor, value int64) (*Result, error) {
	maxVal := int64(1)<<d.Bits - 1
	if value < 0 || value > maxVal {
		return st.res, fmt.Errorf("%w: %s: %d exceeds %d bits", ErrOutOfRange, d.Name, value, d.Bits)
	}
	offset, length, err := memmap.Resolve(d, 0, 0)
	if err != nil {
		return st.res, err
	}
	defer e.logOp(st, "write", d.Name, offset, length)

	data, literal, err := e.readRange(st, offset, length)
	if err != nil {
		return st.res, err
	}
	if literal != nil {
		return st.res, fmt.Errorf("read-modify-write of %s: device returned non-byte payload", d.Name)
	}

	mask := uint64(maxVal) << d.BitOffset
	raw := decodeUint(data)
	raw = raw&^mask | uint64(value)<<d.BitOffset
	if err := e.writeRange(st, offset, encodeUint(raw, length)); err != nil {
		return st.res, err
	}
	if st.o.verify {
		return st.res, e.verifyElement(st, d, offset, value)
	}
	return st.res, nil
}

// verifyElement reads the written range back and compares the decoded
// value. The read retries like any other exchange; a mismatch is
// final.
func (e *Engine) verifyElement(st *opState, d *memmap.Descriptor, offset int, want int64) error {
	_, length, err := memmap.Resolve(d, 0, boolToSize(d.IsArray()))
	if err != nil {
		return err
	}
	data, literal, err := e.readRange(st, offset, length)
	if err != nil {
		return err
	}
	if literal != nil {
		return fmt.Errorf("%w: %s: non-byte read-back payload", ErrVerificationFailed, d.Name)
	}
	got := decodeField(d, data)
	if got != want {
		return fmt.Errorf("%w: %s: wrote %d, read back %d", ErrVerificationFailed, d.Name, want, got)
	}
	return nil
}

func (e *Engine) verifyElements(st *opState, d *memmap.Descriptor, offset int, want []int64) error {
	data, literal, err := e.readRange(st, offset, len(want)*d.TypeSize)
	if err != nil {
		return err
	}
	if literal != nil {
		return fmt.Errorf("%w: %s: non-byte read-back payload", ErrVerificationFailed, d.Name)
	}
	for i, w := range want {
		got := decodeElement(data[i*d.TypeSize:(i+1)*d.TypeSize], d.Type.Signed())
		if got != w {
			return fmt.Errorf("%w: %s[%d]: wrote %d, read back %d",
				ErrVerificationFailed, d.Name, st.o.offset+i, w, got)
		}
	}
	return nil
}

func boolToSize(isArray bool) int {
	if isArray {
		return 1
	}
	return 0
}

// decodeRegister decodes the full byte range of a read per the
// descriptor kind.
func decodeRegister(d *memmap.Descriptor, data []byte) any {
	if d.IsBitfield() {
		return decodeBitfield(d, data)
	}
	if d.IsArray() {
		out := make([]int64, 0, len(data)/d.TypeSize)
		for pos := 0; pos+d.TypeSize <= len(data); pos += d.TypeSize {
			out = append(out, decodeElement(data[pos:pos+d.TypeSize], d.Type.Signed()))
		}
		return out
	}
	return decodeElement(data, d.Type.Signed())
}

// decodeField decodes a single value (scalar, bitfield, or first array
// element) from data, used by verification.
func decodeField(d *memmap.Descriptor, data []byte) int64 {
	if d.IsBitfield() {
		return decodeBitfield(d, data)
	}
	if len(data) > d.TypeSize {
		data = data[:d.TypeSize]
	}
	return decodeElement(data, d.Type.Signed())
}

func decodeBitfield(d *memmap.Descriptor, data []byte) int64 {
	raw := decodeUint(data)
	return int64(raw >> d.BitOffset & (1<<d.Bits - 1))
}

// fieldWidth is the byte span a field occupies in a struct read buffer.
func fieldWidth(d *memmap.Descriptor) int {
	if d.IsBitfield() {
		return (d.BitOffset + d.Bits + 7) / 8
	}
	if d.IsArray() {
		return d.TotalSize
	}
	return d.TypeSize
}

// ReadStruct reads the contiguous run of registers sharing prefix in a
// single fragmented read and decodes each field from the shared
// buffer. Bitfields packed into the same byte range decode from the
// same bytes; reserved fields (".res", ".padding" suffixes) consume
// their bytes but are excluded from the output. The prefix "." (or
// empty) covers the whole map. By default the value is a []any of
// decoded field values in declared order; WithFieldNames yields
// []Field instead.
func (e *Engine) ReadStruct(prefix string, opts ...Option) (*Result, error) {
	st := e.newOp(opts)
	fields := e.mm.FieldsWithPrefix(prefix)
	if len(fields) == 0 {
		return st.res, fmt.Errorf("%w: no registers with prefix %q", memmap.ErrUnknownRegister, prefix)
	}
	start, span, err := memmap.ResolveRange(fields)
	if err != nil {
		return st.res, err
	}
	defer e.logOp(st, "read_struct", prefix, start, span)

	data, literal, err := e.readRange(st, start, span)
	if err != nil {
		return st.res, err
	}
	if literal != nil {
		st.res.Value = literal
		return st.res, nil
	}

	var named []Field
	var values []any
	for _, d := range fields {
		rel := d.Offset - start
		width := fieldWidth(d)
		if rel < 0 || rel+width > len(data) {
			return st.res, fmt.Errorf("struct %q: field %s spans outside read buffer", prefix, d.Name)
		}
		if d.IsReserved() {
			continue
		}
		v := decodeRegister(d, data[rel:rel+width])
		if st.o.names {
			named = append(named, Field{Name: d.Name, Value: v})
		} else {
			values = append(values, v)
		}
	}
	if st.o.names {
		st.res.Value = named
	} else {
		st.res.Value = values
	}
	st.res.Outcome = protocol.OutcomeSuccess
	return st.res, nil
}
