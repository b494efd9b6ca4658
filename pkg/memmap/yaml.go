package memmap

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlMap is the on-disk YAML shape of a memory map.
type yamlMap struct {
	Registers []yamlRegister `yaml:"registers"`
}

type yamlRegister struct {
	Name        string `yaml:"name"`
	Offset      int    `yaml:"offset"`
	Type        string `yaml:"type"`
	TypeSize    int    `yaml:"type_size"`
	TotalSize   int    `yaml:"total_size"`
	ArraySize   int    `yaml:"array_size"`
	BitOffset   int    `yaml:"bit_offset"`
	Bits        int    `yaml:"bits"`
	Access      string `yaml:"access"`
	Default     *int64 `yaml:"default"`
	Flag        string `yaml:"flag"`
	Description string `yaml:"description"`
}

// LoadYAML reads a YAML memory map document and builds a Map.
// The register list must be in ascending offset order, matching the
// CSV export convention.
func LoadYAML(r io.Reader) (*Map, error) {
	var doc yamlMap
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse memory map yaml: %w", err)
	}
	if len(doc.Registers) == 0 {
		return nil, fmt.Errorf("memory map yaml has no registers")
	}

	m := New()
	for _, reg := range doc.Registers {
		typ, err := ParsePrimitiveType(reg.Type)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", reg.Name, err)
		}
		access, err := parseAccess(reg.Access)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", reg.Name, err)
		}
		typeSize := reg.TypeSize
		if typeSize == 0 {
			typeSize = typ.Size()
		}
		d := Descriptor{
			Name:        reg.Name,
			Offset:      reg.Offset,
			Type:        typ,
			TypeSize:    typeSize,
			TotalSize:   reg.TotalSize,
			ArraySize:   reg.ArraySize,
			BitOffset:   reg.BitOffset,
			Bits:        reg.Bits,
			Access:      access | parseFlags(reg.Flag),
			Default:     reg.Default,
			Description: reg.Description,
		}
		if err := m.Add(d); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LoadYAMLFile reads a memory map from a YAML file on disk.
func LoadYAMLFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}

// LoadFile loads a memory map from path, selecting the loader by file
// extension (".yaml"/".yml" or ".csv").
func LoadFile(path string) (*Map, error) {
	switch {
	case hasExt(path, ".yaml"), hasExt(path, ".yml"):
		return LoadYAMLFile(path)
	case hasExt(path, ".csv"):
		return LoadCSVFile(path)
	default:
		return nil, fmt.Errorf("unsupported memory map format: %s", path)
	}
}

func hasExt(path, ext string) bool {
	return len(path) >= len(ext) && path[len(path)-len(ext):] == ext
}
