package access

import (
	"errors"
	"time"

	"github.com/regline-protocol/regline-go/pkg/log"
	"github.com/regline-protocol/regline-go/pkg/memmap"
	"github.com/regline-protocol/regline-go/pkg/protocol"
	"github.com/regline-protocol/regline-go/pkg/transport"
)

// Default engine configuration values.
const (
	// DefaultRetry is the conventional retry budget for interactive
	// use, offered as the CLI's flag default. A zero-value Config
	// performs no retries.
	DefaultRetry = 1
)

// Config describes engine-wide defaults. Per-call options override
// Retry and Timeout.
type Config struct {
	// FragmentSize is the maximum byte length per wire command;
	// 0 means unlimited (no fragmentation).
	FragmentSize int

	// Retry is the default retry budget per wire exchange;
	// 0 disables retries.
	Retry int

	// Timeout is the default per-attempt reply timeout;
	// 0 selects the transport default.
	Timeout time.Duration

	// Logger receives access-layer operation events. Nil disables
	// logging.
	Logger log.Logger
}

// Engine executes register operations against a device through the
// protocol codec, using the memory map for address resolution and type
// decoding.
type Engine struct {
	mm    *memmap.Map
	codec *protocol.Codec
	cfg   Config
}

// New creates an engine over mm and codec.
func New(mm *memmap.Map, codec *protocol.Codec, cfg Config) *Engine {
	return &Engine{mm: mm, codec: codec, cfg: cfg}
}

// Map returns the engine's memory map.
func (e *Engine) Map() *memmap.Map { return e.mm }

// FragmentSize returns the configured fragment size.
func (e *Engine) FragmentSize() int { return e.cfg.FragmentSize }

// SetFragmentSize changes the fragment size for subsequent operations.
func (e *Engine) SetFragmentSize(n int) { e.cfg.FragmentSize = n }

// SetRetry changes the default retry budget for subsequent operations.
func (e *Engine) SetRetry(n int) { e.cfg.Retry = n }

// opState tracks one operation: its resolved options and the result
// under construction.
type opState struct {
	o   callOptions
	res *Result
}

func (e *Engine) newOp(opts []Option) *opState {
	st := &opState{res: &Result{}}
	st.o.retry = e.cfg.Retry
	st.o.timeout = e.cfg.Timeout
	for _, opt := range opts {
		opt(&st.o)
	}
	return st
}

// retryable reports whether an exchange failure may be re-attempted:
// device-reported errors and timeouts (including the malformed-response
// timeout classification) are; everything else fails immediately.
func retryable(err error) bool {
	var devErr *protocol.DeviceError
	if errors.As(err, &devErr) {
		return true
	}
	return errors.Is(err, transport.ErrTimeout)
}

// exchange issues cmd, re-issuing the identical command on retryable
// failures for up to retry+1 attempts in total. Every fragment gets a
// fresh budget; Result.Retries accumulates across the whole operation.
// The error of the final failed attempt is the one returned.
func (e *Engine) exchange(st *opState, cmd protocol.Command) (*protocol.Exchange, error) {
	budget := st.o.retry
	for {
		st.res.Commands = append(st.res.Commands, cmd.Line())
		ex, err := e.codec.Exchange(cmd, st.o.timeout)
		st.res.Outcome = ex.Outcome
		if err == nil {
			return ex, nil
		}
		if !retryable(err) || budget == 0 {
			return ex, err
		}
		budget--
		st.res.Retries++
	}
}

// readRange reads [offset, offset+length) in fragments. On the
// decode-failure passthrough path the device's literal payload is
// returned instead of bytes and the transfer stops there. Any fragment
// failure discards bytes from earlier fragments.
func (e *Engine) readRange(st *opState, offset, length int) ([]byte, []string, error) {
	data := make([]byte, 0, length)
	for pos := 0; pos < length; {
		n := length - pos
		if e.cfg.FragmentSize > 0 && n > e.cfg.FragmentSize {
			n = e.cfg.FragmentSize
		}
		ex, err := e.exchange(st, protocol.ReadCommand(offset+pos, n))
		if err != nil {
			return nil, nil, err
		}
		if ex.Literal != nil {
			return nil, ex.Literal, nil
		}
		data = append(data, ex.Data...)
		pos += n
	}
	return data, nil, nil
}

// writeRange writes data at offset in fragments.
func (e *Engine) writeRange(st *opState, offset int, data []byte) error {
	for pos := 0; pos < len(data); {
		n := len(data) - pos
		if e.cfg.FragmentSize > 0 && n > e.cfg.FragmentSize {
			n = e.cfg.FragmentSize
		}
		if _, err := e.exchange(st, protocol.WriteCommand(offset+pos, data[pos:pos+n])); err != nil {
			return err
		}
		pos += n
	}
	return nil
}

func (e *Engine) logOp(st *opState, op, register string, offset, size int) {
	if e.cfg.Logger == nil {
		return
	}
	t := e.codec.Transport()
	e.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: t.ConnectionID(),
		Direction:    log.DirectionOut,
		Layer:        log.LayerAccess,
		Category:     log.CategoryOperation,
		Port:         t.Port(),
		Operation: &log.OperationEvent{
			Op:       op,
			Register: register,
			Offset:   offset,
			Size:     size,
			Retries:  st.res.Retries,
		},
	})
}
