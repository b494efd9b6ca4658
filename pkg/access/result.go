package access

import (
	"errors"

	"github.com/regline-protocol/regline-go/pkg/protocol"
)

// Engine errors. Both fail before any transport traffic for the step
// they guard.
var (
	// ErrOutOfRange indicates a bitfield write value exceeding the
	// field width.
	ErrOutOfRange = errors.New("value out of range for bitfield")

	// ErrVerificationFailed indicates a post-write read-back mismatch.
	// It is never retried.
	ErrVerificationFailed = errors.New("write verification failed")
)

// Result is the uniform outcome of one engine operation. It is
// returned non-nil even on failure so callers can inspect the issued
// command trace and consumed retries.
type Result struct {
	// Value is the decoded payload: int64 for scalars and bitfields,
	// []int64 for arrays, []Field or []any for struct reads, string
	// for version queries, []string on the decode-failure passthrough
	// path. Nil when the operation carries no payload or failed.
	Value any

	// Outcome classifies the last protocol exchange of the operation.
	Outcome protocol.Outcome

	// Commands is the ordered trace of wire command lines issued,
	// including retried attempts.
	Commands []string

	// Retries is the number of retries consumed by the operation.
	Retries int
}

// Field is one named value in a struct read.
type Field struct {
	// Name is the full register name.
	Name string

	// Value is the decoded field value (int64 or []int64).
	Value any
}
