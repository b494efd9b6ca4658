// Package version provides parsing and comparison of device interface
// versions.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Supported is the newest device interface version this library has
// been validated against.
const Supported = "0.0.1"

// InterfaceVersion is a parsed "major.minor.patch" device interface
// version, as reported by the version command.
type InterfaceVersion struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses a "major.minor.patch" version string.
func Parse(s string) (InterfaceVersion, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return InterfaceVersion{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	var fields [3]uint16
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 16)
		if err != nil || part == "" {
			return InterfaceVersion{}, fmt.Errorf("invalid version %q: bad component %q", s, part)
		}
		fields[i] = uint16(v)
	}
	return InterfaceVersion{Major: fields[0], Minor: fields[1], Patch: fields[2]}, nil
}

// String returns the version as "major.minor.patch".
func (v InterfaceVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer
// than o.
func (v InterfaceVersion) Compare(o InterfaceVersion) int {
	pairs := [][2]uint16{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Patch, o.Patch},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// Compatible reports whether a device at version v can be driven by a
// host validated against Supported: same major, and the device not
// newer than the host.
func (v InterfaceVersion) Compatible() bool {
	host, err := Parse(Supported)
	if err != nil {
		return false
	}
	return v.Major == host.Major && v.Compare(host) <= 0
}
