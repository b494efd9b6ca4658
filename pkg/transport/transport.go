package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/regline-protocol/regline-go/pkg/log"
)

// Transport errors.
var (
	// ErrTimeout indicates no data arrived within the read timeout.
	ErrTimeout = errors.New("transport timeout")

	// ErrClosed indicates the channel has been closed.
	ErrClosed = errors.New("transport closed")
)

// Default configuration values.
const (
	// DefaultBaudRate is the serial baud rate used when none is set.
	DefaultBaudRate = 115200

	// DefaultReadTimeout is the read timeout used when a call passes 0.
	DefaultReadTimeout = 500 * time.Millisecond

	// StartupFlushTimeout bounds the drain read performed by the
	// flush-on-startup policy.
	StartupFlushTimeout = 300 * time.Millisecond
)

// Transport is a line-oriented byte channel to a device.
//
// ReadLine and ReadBytes fail with ErrTimeout when no complete line or
// too few bytes arrive within the timeout; they never block forever when
// a timeout is given. A timeout of 0 selects the configured default.
type Transport interface {
	// WriteLine writes one line, appending the newline terminator.
	// Any stale inbound data is discarded first so a reply cannot be
	// misaligned by leftover noise.
	WriteLine(line string) error

	// ReadLine reads one newline-terminated line, without the
	// terminator. Leading NUL bytes are stripped unless the noise
	// filter is disabled.
	ReadLine(timeout time.Duration) (string, error)

	// ReadBytes reads exactly n raw bytes.
	ReadBytes(n int, timeout time.Duration) ([]byte, error)

	// Port returns the channel's port name or remote address.
	Port() string

	// ConnectionID returns the unique ID used in log events.
	ConnectionID() string

	// Close closes the channel.
	Close() error
}

// Kind selects the channel variant. The set is closed: extending it
// means adding a variant here and a case in New.
type Kind uint8

const (
	// KindSerial is a physical serial port.
	KindSerial Kind = iota

	// KindConn is a pre-established net.Conn (virtual device, TCP
	// bridge, test pipe).
	KindConn
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "SERIAL"
	case KindConn:
		return "CONN"
	default:
		return "UNKNOWN"
	}
}

// Config describes how to construct a Transport.
type Config struct {
	// Kind selects the channel variant.
	Kind Kind

	// PortName is the serial device path (KindSerial).
	PortName string

	// BaudRate is the serial baud rate, DefaultBaudRate when 0.
	BaudRate int

	// RTS/DTR set the modem control lines after open, when non-nil.
	RTS *bool
	DTR *bool

	// Conn is the established connection (KindConn).
	Conn net.Conn

	// Dial re-establishes the connection for reconnect-on-timeout
	// (KindConn). Optional; without it a conn channel cannot
	// reconnect.
	Dial func() (net.Conn, error)

	// ReadTimeout is the default read timeout, DefaultReadTimeout
	// when 0.
	ReadTimeout time.Duration

	// ReconnectOnTimeout tears down and reopens the channel after a
	// read timeout before the error is surfaced.
	ReconnectOnTimeout bool

	// FlushOnStartup writes an empty line and drains the reply after
	// open, clearing boot noise from both directions.
	FlushOnStartup bool

	// KeepNoise disables the leading-NUL stripping in ReadLine.
	KeepNoise bool

	// Logger receives transport events. Nil disables logging.
	Logger log.Logger
}

// New constructs a Transport for the configured kind.
func New(cfg Config) (Transport, error) {
	switch cfg.Kind {
	case KindSerial:
		return newSerialTransport(cfg)
	case KindConn:
		return newConnTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown transport kind %d", cfg.Kind)
	}
}
