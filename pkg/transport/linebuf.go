package transport

import (
	"bytes"
	"strings"
	"time"

	"github.com/regline-protocol/regline-go/pkg/log"
)

// lineBuffer accumulates raw channel bytes and carves complete lines
// out of them. Bytes read past a newline stay pending for later calls,
// so chatty devices cannot lose data between exchanges.
type lineBuffer struct {
	pending []byte
}

// feed appends raw bytes from the channel.
func (b *lineBuffer) feed(p []byte) {
	b.pending = append(b.pending, p...)
}

// takeLine removes and returns the first complete line, without its
// terminator. When keepNoise is false, leading and trailing NUL bytes
// (reset/noise artifacts) are stripped from the returned line.
func (b *lineBuffer) takeLine(keepNoise bool) (string, bool) {
	i := bytes.IndexByte(b.pending, '\n')
	if i < 0 {
		return "", false
	}
	raw := b.pending[:i]
	b.pending = append([]byte(nil), b.pending[i+1:]...)

	line := strings.TrimSuffix(string(raw), "\r")
	if !keepNoise {
		line = strings.Trim(line, "\x00")
	}
	return line, true
}

// takeBytes removes and returns exactly n pending bytes, if available.
func (b *lineBuffer) takeBytes(n int) ([]byte, bool) {
	if len(b.pending) < n {
		return nil, false
	}
	out := append([]byte(nil), b.pending[:n]...)
	b.pending = append([]byte(nil), b.pending[n:]...)
	return out, true
}

// buffered returns the number of pending bytes.
func (b *lineBuffer) buffered() int { return len(b.pending) }

// reset discards all pending bytes.
func (b *lineBuffer) reset() { b.pending = nil }

// chanLog carries the identity fields shared by every event a channel
// emits.
type chanLog struct {
	logger log.Logger
	connID string
	port   string
}

func (c *chanLog) logLine(dir log.Direction, text string) {
	if c.logger == nil {
		return
	}
	truncated := false
	if len(text) > log.MaxLogLineSize {
		text = text[:log.MaxLogLineSize]
		truncated = true
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryLine,
		Port:         c.port,
		Line:         &log.LineEvent{Text: text, Truncated: truncated},
	})
}

func (c *chanLog) logState(oldState, newState, reason string) {
	if c.logger == nil {
		return
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		Port:         c.port,
		StateChange:  &log.StateChangeEvent{OldState: oldState, NewState: newState, Reason: reason},
	})
}

func (c *chanLog) logError(msg, context string) {
	if c.logger == nil {
		return
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Port:         c.port,
		Error:        &log.ErrorEventData{Layer: log.LayerTransport, Message: msg, Context: context},
	})
}
