package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/regline-protocol/regline-go/pkg/log"
)

// connTransport adapts an established net.Conn (TCP bridge, virtual
// device, test pipe) to the line-oriented Transport contract.
type connTransport struct {
	chanLog

	cfg  Config
	conn net.Conn
	buf  lineBuffer

	closed bool
}

func newConnTransport(cfg Config) (*connTransport, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("conn transport requires an established connection")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	t := &connTransport{cfg: cfg, conn: cfg.Conn}
	t.logger = cfg.Logger
	t.connID = uuid.NewString()
	t.port = cfg.Conn.RemoteAddr().String()
	t.logState("", "OPEN", "")
	return t, nil
}

func (t *connTransport) WriteLine(line string) error {
	if t.closed {
		return ErrClosed
	}
	t.flushInbound()

	if _, err := t.conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("conn write: %w", err)
	}
	t.logLine(log.DirectionOut, line)
	return nil
}

// flushInbound discards anything the device sent before this command,
// both from the internal buffer and from the socket itself.
func (t *connTransport) flushInbound() {
	t.buf.reset()
	_ = t.conn.SetReadDeadline(time.Unix(1, 0))
	tmp := make([]byte, 256)
	for {
		n, err := t.conn.Read(tmp)
		if n == 0 || err != nil {
			break
		}
	}
	_ = t.conn.SetReadDeadline(time.Time{})
}

func (t *connTransport) ReadLine(timeout time.Duration) (string, error) {
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

func (t *connTransport) ReadBytes(n int, timeout time.Duration) ([]byte, error) {
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

// fill performs one deadline-bounded read from the connection into the
// line buffer.
func (t *connTransport) fill(deadline time.Time) error {
	if !time.Now().Before(deadline) {
		return ErrTimeout
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("conn set deadline: %w", err)
	}
	tmp := make([]byte, 256)
	n, err := t.conn.Read(tmp)
	if n > 0 {
		t.buf.feed(tmp[:n])
		return nil
	}
	if err != nil {
		if os.IsTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("conn read: %w", err)
	}
	return ErrTimeout
}

// timedOut applies the reconnect-on-timeout policy and returns the
// error surfaced to the caller. Non-timeout read failures pass through
// unchanged.
func (t *connTransport) timedOut(context string, cause error) error {
	if !errors.Is(cause, ErrTimeout) {
		return cause
	}
	t.logError(ErrTimeout.Error(), context)
	if t.cfg.ReconnectOnTimeout && t.cfg.Dial != nil {
		t.reconnect()
	}
	return fmt.Errorf("%w during %s on %s", ErrTimeout, context, t.port)
}

// reconnect replaces the connection via the configured dialer so
// subsequent calls use a fresh channel.
func (t *connTransport) reconnect() {
	t.logState("OPEN", "RECONNECTING", "read timeout")
	_ = t.conn.Close()
	t.buf.reset()

	conn, err := t.cfg.Dial()
	if err != nil {
		t.logError("redial failed", err.Error())
		return
	}
	t.conn = conn
	t.port = conn.RemoteAddr().String()
	t.logState("RECONNECTING", "OPEN", "")
}

func (t *connTransport) Port() string { return t.port }

func (t *connTransport) ConnectionID() string { return t.connID }

func (t *connTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.logState("OPEN", "CLOSED", "")
	return t.conn.Close()
}
