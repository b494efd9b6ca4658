package memmap

import (
	"errors"
	"fmt"
	"strings"
)

// Map errors.
var (
	// ErrUnknownRegister indicates a name not present in the map.
	ErrUnknownRegister = errors.New("unknown register")

	// ErrDuplicateRegister indicates a name added twice.
	ErrDuplicateRegister = errors.New("duplicate register")
)

// RootPrefix matches every register in the map when passed to
// FieldsWithPrefix.
const RootPrefix = "."

// Map is an ordered, immutable-after-load collection of register
// descriptors keyed by name. Iteration order is insertion order, which
// loaders guarantee to be ascending byte offset order.
type Map struct {
	order  []*Descriptor
	byName map[string]*Descriptor
}

// New returns an empty Map.
func New() *Map {
	return &Map{byName: make(map[string]*Descriptor)}
}

// Add appends a descriptor to the map. Names must be unique.
// Add is meant for loaders and test fixtures; once the map is handed to
// an engine it must not be modified.
func (m *Map) Add(d Descriptor) error {
	if err := d.validate(); err != nil {
		return err
	}
	if _, ok := m.byName[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRegister, d.Name)
	}
	desc := d
	m.byName[d.Name] = &desc
	m.order = append(m.order, &desc)
	return nil
}

// Len returns the number of registers in the map.
func (m *Map) Len() int { return len(m.order) }

// Names returns all register names in declaration order.
func (m *Map) Names() []string {
	names := make([]string, len(m.order))
	for i, d := range m.order {
		names[i] = d.Name
	}
	return names
}

// All returns all descriptors in declaration order.
func (m *Map) All() []*Descriptor {
	return append([]*Descriptor(nil), m.order...)
}

// Lookup returns the descriptor for name.
func (m *Map) Lookup(name string) (*Descriptor, error) {
	d, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegister, name)
	}
	return d, nil
}

// FieldsWithPrefix returns the descriptors whose names start with prefix,
// in declaration order. The run of matching names must be contiguous:
// collection stops at the first non-matching entry after a match has been
// seen, so a later non-contiguous match is not included. This mirrors how
// struct grouping is encoded in the map. RootPrefix (or the empty string)
// matches the entire map.
func (m *Map) FieldsWithPrefix(prefix string) []*Descriptor {
	if prefix == RootPrefix || prefix == "" {
		return m.All()
	}
	var fields []*Descriptor
	for _, d := range m.order {
		if strings.HasPrefix(d.Name, prefix) {
			fields = append(fields, d)
		} else if len(fields) > 0 {
			break
		}
	}
	return fields
}
