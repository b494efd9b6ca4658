package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/regline-protocol/regline-go/pkg/log"
	"github.com/regline-protocol/regline-go/pkg/transport"
)

// ErrMalformedResponse indicates the device produced output but no line
// parsed as a JSON result object before the read timeout. It is
// classified as a timeout for retry purposes (errors.Is matches
// transport.ErrTimeout) but is logged distinctly for diagnostics.
var ErrMalformedResponse = fmt.Errorf("malformed response: %w", transport.ErrTimeout)

// Outcome is the tri-state classification of a command exchange.
type Outcome uint8

const (
	// OutcomeSuccess indicates the device replied with result 0.
	OutcomeSuccess Outcome = iota

	// OutcomeError indicates a device-reported nonzero result code.
	OutcomeError

	// OutcomeTimeout indicates no result line arrived in time.
	OutcomeTimeout
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeError:
		return "ERROR"
	case OutcomeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Exchange is the normalized result of one command/reply exchange.
type Exchange struct {
	// Outcome classifies the exchange.
	Outcome Outcome

	// Command is the wire command line that was issued.
	Command string

	// Data is the byte payload of a read reply.
	Data []byte

	// Literal carries a payload that could not be decoded as bytes,
	// split into per-character strings. Populated only on the
	// decode-failure passthrough path; the exchange itself still
	// counts as successful.
	Literal []string

	// Version is the version string of a version reply.
	Version string

	// ErrorCode is the device error code for OutcomeError.
	ErrorCode int
}

// reply mirrors the JSON object a device sends. Result is a pointer so
// a reply line without the result key can be told apart from result 0.
type reply struct {
	Result  *int            `json:"result"`
	Data    json.RawMessage `json:"data"`
	Version string          `json:"version"`
}

// Codec drives command/reply exchanges over a Transport.
// Like the transport, a Codec supports one in-flight exchange at a
// time.
type Codec struct {
	t      transport.Transport
	logger log.Logger
}

// NewCodec creates a codec over t. logger may be nil.
func NewCodec(t transport.Transport, logger log.Logger) *Codec {
	return &Codec{t: t, logger: logger}
}

// Transport returns the underlying channel.
func (c *Codec) Transport() transport.Transport { return c.t }

// Exchange writes cmd and reads reply lines until one carries a result
// key or the timeout expires. The returned Exchange always has Command
// set, whatever the outcome. The error is non-nil for OutcomeError
// (a *DeviceError) and OutcomeTimeout (transport.ErrTimeout, or
// ErrMalformedResponse when undecodable output preceded the timeout).
func (c *Codec) Exchange(cmd Command, timeout time.Duration) (*Exchange, error) {
	line := cmd.Line()
	ex := &Exchange{Command: line}

	if err := c.t.WriteLine(line); err != nil {
		ex.Outcome = OutcomeTimeout
		return ex, fmt.Errorf("failed to issue %q: %w", line, err)
	}

	var lastGarbage string
	for {
		text, err := c.t.ReadLine(timeout)
		if err != nil {
			ex.Outcome = OutcomeTimeout
			if lastGarbage != "" {
				c.logExchange(ex, nil)
				return ex, fmt.Errorf("%w: last undecodable line %q", ErrMalformedResponse, lastGarbage)
			}
			c.logExchange(ex, nil)
			return ex, err
		}

		var rep reply
		if err := json.Unmarshal([]byte(text), &rep); err != nil {
			// Interleaved debug output from the device; skip it but
			// remember it for malformed-response classification.
			lastGarbage = text
			c.logGarbage(text)
			continue
		}
		if rep.Result == nil {
			// Valid JSON that does not terminate the exchange.
			continue
		}

		if *rep.Result != 0 {
			ex.Outcome = OutcomeError
			ex.ErrorCode = *rep.Result
			err := &DeviceError{Code: ex.ErrorCode}
			c.logExchange(ex, &ex.ErrorCode)
			return ex, err
		}

		ex.Outcome = OutcomeSuccess
		ex.Version = rep.Version
		if len(rep.Data) > 0 {
			ex.Data, ex.Literal = decodePayload(rep.Data)
		}
		c.logExchange(ex, nil)
		return ex, nil
	}
}

// decodePayload interprets the data field of a reply. The regular shape
// is a JSON array of byte values. Anything else is the device's
// deliberate (or buggy) non-byte payload: it is passed through as
// per-character literals rather than rejected, so callers still see
// what the device sent.
func decodePayload(raw json.RawMessage) ([]byte, []string) {
	var nums []int
	if err := json.Unmarshal(raw, &nums); err == nil {
		data := make([]byte, len(nums))
		for i, v := range nums {
			data[i] = byte(v)
		}
		return data, nil
	}

	var single int
	if err := json.Unmarshal(raw, &single); err == nil {
		return []byte{byte(single)}, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		literal := make([]string, 0, len(text))
		for _, r := range text {
			literal = append(literal, string(r))
		}
		return nil, literal
	}

	return nil, []string{string(raw)}
}

func (c *Codec) logExchange(ex *Exchange, code *int) {
	if c.logger == nil {
		return
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.t.ConnectionID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerProtocol,
		Category:     log.CategoryExchange,
		Port:         c.t.Port(),
		Exchange: &log.ExchangeEvent{
			Command:   ex.Command,
			Outcome:   ex.Outcome.String(),
			ErrorCode: code,
		},
	})
}

func (c *Codec) logGarbage(text string) {
	if c.logger == nil {
		return
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.t.ConnectionID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerProtocol,
		Category:     log.CategoryError,
		Port:         c.t.Port(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerProtocol,
			Message: "undecodable reply line",
			Context: text,
		},
	})
}
