package transport

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"

	"github.com/regline-protocol/regline-go/pkg/connection"
	"github.com/regline-protocol/regline-go/pkg/log"
)

// reopenAttempts bounds how many times a reconnect-on-timeout cycle
// tries to reopen the port before giving up until the next timeout.
const reopenAttempts = 5

// serialTransport drives a physical serial port.
type serialTransport struct {
	chanLog

	cfg Config
	dev serial.Port
	buf lineBuffer

	closed bool
}

func newSerialTransport(cfg Config) (*serialTransport, error) {
	if cfg.PortName == "" {
		return nil, fmt.Errorf("serial transport requires a port name")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	t := &serialTransport{cfg: cfg}
	t.logger = cfg.Logger
	t.connID = uuid.NewString()
	t.port = cfg.PortName

	if err := t.open(); err != nil {
		return nil, err
	}
	t.logState("", "OPEN", "")

	if cfg.FlushOnStartup {
		t.startupFlush()
	}
	return t, nil
}

// open opens the underlying port and applies the modem control lines.
func (t *serialTransport) open() error {
	mode := &serial.Mode{
		BaudRate: t.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	dev, err := serial.Open(t.cfg.PortName, mode)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", t.cfg.PortName, err)
	}

	// RTS/DTR are best effort: some adapters reject the ioctl.
	if t.cfg.RTS != nil {
		if err := dev.SetRTS(*t.cfg.RTS); err != nil {
			t.logError(err.Error(), "set RTS")
		}
	}
	if t.cfg.DTR != nil {
		if err := dev.SetDTR(*t.cfg.DTR); err != nil {
			t.logError(err.Error(), "set DTR")
		}
	}

	t.dev = dev
	return nil
}

// startupFlush clears boot junk from both directions: write an empty
// line, drain whatever the device answers, then reset the buffers.
func (t *serialTransport) startupFlush() {
	_ = t.WriteLine("")
	if _, err := t.ReadLine(StartupFlushTimeout); err != nil {
		t.logState("OPEN", "OPEN", "startup flush drained nothing")
	}
	_ = t.dev.ResetInputBuffer()
	_ = t.dev.ResetOutputBuffer()
	t.buf.reset()
}

func (t *serialTransport) WriteLine(line string) error {
	if t.closed {
		return ErrClosed
	}
	// Discard stale inbound data so the reply to this command is the
	// next thing read.
	_ = t.dev.ResetInputBuffer()
	t.buf.reset()

	if _, err := t.dev.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	t.logLine(log.DirectionOut, line)
	return nil
}

func (t *serialTransport) ReadLine(timeout time.Duration) (string, error) {
	if t.closed {
		return "", ErrClosed
	}
	if timeout == 0 {
		timeout = t.cfg.ReadTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		if line, ok := t.buf.takeLine(t.cfg.KeepNoise); ok {
			t.logLine(log.DirectionIn, line)
			return line, nil
		}
		if err := t.fill(deadline); err != nil {
			return "", t.timedOut("readline", err)
		}
	}
}

func (t *serialTransport) ReadBytes(n int, timeout time.Duration) ([]byte, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if timeout == 0 {
		timeout = t.cfg.ReadTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		if out, ok := t.buf.takeBytes(n); ok {
			return out, nil
		}
		if err := t.fill(deadline); err != nil {
			return nil, t.timedOut("read bytes", err)
		}
	}
}

// fill performs one bounded read from the port into the line buffer.
// Returns ErrTimeout when the deadline passes without data.
func (t *serialTransport) fill(deadline time.Time) error {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return ErrTimeout
	}
	if err := t.dev.SetReadTimeout(remaining); err != nil {
		return fmt.Errorf("serial set timeout: %w", err)
	}
	tmp := make([]byte, 256)
	n, err := t.dev.Read(tmp)
	if err != nil {
		return fmt.Errorf("serial read: %w", err)
	}
	if n == 0 {
		// go.bug.st/serial signals an expired read timeout with a
		// zero-length read.
		return ErrTimeout
	}
	t.buf.feed(tmp[:n])
	return nil
}

// timedOut applies the reconnect-on-timeout policy and returns the
// error surfaced to the caller. Non-timeout read failures pass through
// unchanged.
func (t *serialTransport) timedOut(context string, cause error) error {
	if !errors.Is(cause, ErrTimeout) {
		return cause
	}
	t.logError(ErrTimeout.Error(), context)
	if t.cfg.ReconnectOnTimeout {
		t.reconnect()
	}
	return fmt.Errorf("%w during %s on %s", ErrTimeout, context, t.cfg.PortName)
}

// reconnect tears the port down and reopens it so subsequent calls use
// a fresh channel. Reopen attempts are paced by backoff; failure leaves
// the old (closed) port in place and will be retried on the next
// timeout.
func (t *serialTransport) reconnect() {
	t.logState("OPEN", "RECONNECTING", "read timeout")
	_ = t.dev.Close()
	t.buf.reset()

	backoff := connection.NewBackoff()
	for i := 0; i < reopenAttempts; i++ {
		if err := t.open(); err == nil {
			t.logState("RECONNECTING", "OPEN", "")
			return
		}
		time.Sleep(backoff.Next())
	}
	t.logError("reopen failed", fmt.Sprintf("after %d attempts", reopenAttempts))
}

func (t *serialTransport) Port() string { return t.cfg.PortName }

func (t *serialTransport) ConnectionID() string { return t.connID }

func (t *serialTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.logState("OPEN", "CLOSED", "")
	return t.dev.Close()
}

// ListPorts returns the system's serial port names, sorted.
// Used by connect wizards to offer a selection.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}
