// Package log captures wire-level and operation-level events from the
// RegLine stack. Applications implement Logger (or use the provided
// FileLogger, SlogAdapter or MultiLogger) to record serial traffic,
// command exchanges and register operations for diagnostics.
package log
