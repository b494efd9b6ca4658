// Package access implements register-level operations on top of the
// protocol codec: typed reads and writes, struct reads, commit, reset
// and version queries.
//
// Every operation follows the same shape: resolve the register name to
// a byte range, transfer the range in fragments with per-exchange
// retries, then decode raw bytes per the register's primitive type.
// Fragmented reads are atomic: a fragment that exhausts its retries
// fails the whole operation and earlier fragment data is discarded.
//
// The engine is not safe for concurrent use; the underlying channel
// carries one exchange at a time.
package access
