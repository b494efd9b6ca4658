package memmap

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadCSV reads a Memory Map Manager style CSV export and builds a Map.
// The first row is the header; rows must be in ascending offset order.
// Recognized columns: name, offset, type, type_size, total_size,
// array_size, bit_offset, bits, access, default, flag, description.
// Fields may be quoted with single quotes.
func LoadCSV(r io.Reader) (*Map, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("memory map csv has no data rows")
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[unquote(name)] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, fmt.Errorf("memory map csv missing name column")
	}

	m := New()
	for n, row := range rows[1:] {
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return unquote(row[i])
		}

		d, err := descriptorFromFields(rawFields{
			Name:        field("name"),
			Offset:      field("offset"),
			Type:        field("type"),
			TypeSize:    field("type_size"),
			TotalSize:   field("total_size"),
			ArraySize:   field("array_size"),
			BitOffset:   field("bit_offset"),
			Bits:        field("bits"),
			Access:      field("access"),
			Default:     field("default"),
			Flag:        field("flag"),
			Description: field("description"),
		})
		if err != nil {
			return nil, fmt.Errorf("memory map csv row %d: %w", n+2, err)
		}
		if err := m.Add(d); err != nil {
			return nil, fmt.Errorf("memory map csv row %d: %w", n+2, err)
		}
	}
	return m, nil
}

// LoadCSVFile reads a memory map from a CSV file on disk.
func LoadCSVFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCSV(f)
}

// rawFields carries the textual descriptor fields of one map entry
// before conversion. Blank strings denote absent optional fields.
type rawFields struct {
	Name        string
	Offset      string
	Type        string
	TypeSize    string
	TotalSize   string
	ArraySize   string
	BitOffset   string
	Bits        string
	Access      string
	Default     string
	Flag        string
	Description string
}

func descriptorFromFields(raw rawFields) (Descriptor, error) {
	var d Descriptor
	var err error

	d.Name = raw.Name
	if d.Offset, err = intField(raw.Offset, 0); err != nil {
		return d, fmt.Errorf("offset: %w", err)
	}
	if d.Type, err = ParsePrimitiveType(raw.Type); err != nil {
		return d, err
	}
	if d.TypeSize, err = intField(raw.TypeSize, d.Type.Size()); err != nil {
		return d, fmt.Errorf("type_size: %w", err)
	}
	if d.TotalSize, err = intField(raw.TotalSize, 0); err != nil {
		return d, fmt.Errorf("total_size: %w", err)
	}
	if d.ArraySize, err = intField(raw.ArraySize, 0); err != nil {
		return d, fmt.Errorf("array_size: %w", err)
	}
	if d.BitOffset, err = intField(raw.BitOffset, 0); err != nil {
		return d, fmt.Errorf("bit_offset: %w", err)
	}
	if d.Bits, err = intField(raw.Bits, 0); err != nil {
		return d, fmt.Errorf("bits: %w", err)
	}
	if d.Access, err = parseAccess(raw.Access); err != nil {
		return d, err
	}
	d.Access |= parseFlags(raw.Flag)
	if raw.Default != "" {
		v, err := strconv.ParseInt(raw.Default, 0, 64)
		if err != nil {
			return d, fmt.Errorf("default: %w", err)
		}
		d.Default = &v
	}
	d.Description = raw.Description
	return d, nil
}

func intField(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// parseAccess accepts the numeric encoding used by map exports
// (bit 0 read, bit 1 write) as well as "r", "w" and "rw".
func parseAccess(s string) (AccessFlags, error) {
	switch strings.ToLower(s) {
	case "":
		return AccessRead | AccessWrite, nil
	case "r":
		return AccessRead, nil
	case "w":
		return AccessWrite, nil
	case "rw":
		return AccessRead | AccessWrite, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("access: %w", err)
	}
	var a AccessFlags
	if v&1 != 0 {
		a |= AccessRead
	}
	if v&2 != 0 {
		a |= AccessWrite
	}
	return a, nil
}

func parseFlags(s string) AccessFlags {
	var a AccessFlags
	for _, flag := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	}) {
		switch strings.ToUpper(flag) {
		case "VOLATILE":
			a |= FlagVolatile
		case "DEVICE_SPECIFIC":
			a |= FlagDeviceSpecific
		}
	}
	return a
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
