package access

import "time"

// callOptions collects the per-call overrides of an operation.
type callOptions struct {
	offset  int
	size    int
	timeout time.Duration
	retry   int
	verify  bool
	names   bool
}

// Option configures a single operation.
type Option func(*callOptions)

// WithOffset selects the starting array element for indexed accesses.
func WithOffset(elements int) Option {
	return func(o *callOptions) { o.offset = elements }
}

// WithSize limits an array access to the given element count.
// 0 means the whole register.
func WithSize(elements int) Option {
	return func(o *callOptions) { o.size = elements }
}

// WithTimeout overrides the per-attempt reply timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) { o.timeout = d }
}

// WithRetry overrides the operation's retry budget. Each wire exchange
// of the operation is attempted up to n+1 times; every fragment gets a
// fresh budget.
func WithRetry(n int) Option {
	return func(o *callOptions) { o.retry = n }
}

// WithVerify enables read-back verification after a write.
func WithVerify() Option {
	return func(o *callOptions) { o.verify = true }
}

// WithFieldNames makes ReadStruct return named fields instead of bare
// values.
func WithFieldNames() Option {
	return func(o *callOptions) { o.names = true }
}
