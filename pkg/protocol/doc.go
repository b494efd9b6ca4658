// Package protocol implements the RegLine command/reply codec.
//
// Commands are single text lines ("rr 0 4", "wr 16 255 1") written to a
// line-oriented transport. Replies are newline-terminated JSON objects;
// lines that do not parse as JSON are interleaved device debug output
// and are skipped. The reply that carries the "result" key terminates
// the exchange: result 0 is success, any other value is an errno-style
// device error code.
package protocol
