// Package memmap holds the host-side description of a device's register
// memory map and the address arithmetic over it.
//
// A Map is built once, from a CSV or YAML export of the device's map, and
// is immutable afterwards. Struct membership is encoded purely by dotted
// name prefixes ("i2c.addr") together with contiguous ascending byte
// offsets; the map preserves insertion order so that prefix grouping and
// range resolution can rely on it.
package memmap
