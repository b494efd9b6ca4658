package mockdev

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
)

// AppVersion is the interface version the device reports.
const AppVersion = "0.0.1"

// DefaultMemSize is the register memory size when none is given.
const DefaultMemSize = 256

// Errno codes the device replies with.
const (
	codeInvalidArg  = 22 // EINVAL
	codeBadMessage  = 74 // EBADMSG
	codeOverflow    = 75 // EOVERFLOW
	codeUnsupported = 93 // EPROTONOSUPPORT
)

// Stats is a snapshot of the device's wire activity counters.
type Stats struct {
	// BytesRead is the total register bytes served by read commands.
	BytesRead int

	// BytesWritten is the total register bytes applied by write
	// commands.
	BytesWritten int
}

// Device is a simulated register device. Memory is initialized to
// index-ascending bytes (mem[i] == i mod 256) so reads have a
// predictable pattern without fixtures.
//
// The failure injection counters apply to the next N commands and
// decrement as they fire:
//
//   - FailNext: reply with ErrorCode instead of executing.
//   - TimeoutNext: reply "{}" only, so the host never sees a result.
//   - ParseErrorNext: reply an undecodable line followed by JSON
//     without a result key.
//   - DataFailNext: execute reads but reply data "foo" instead of
//     bytes.
//   - WriteFailNext: accept writes without applying them.
type Device struct {
	mu sync.Mutex

	mem   []byte
	stats Stats

	// FailNext forces the next N commands to fail with ErrorCode.
	FailNext int

	// ErrorCode is the result code used by FailNext (default 99).
	ErrorCode int

	// TimeoutNext suppresses the result reply for the next N commands.
	TimeoutNext int

	// ParseErrorNext makes the next N commands reply undecodable
	// output.
	ParseErrorNext int

	// DataFailNext makes the next N reads reply a non-byte payload.
	DataFailNext int

	// WriteFailNext makes the next N writes no-ops.
	WriteFailNext int

	// WrOffset and WrData record the last write command received.
	WrOffset int
	WrData   []byte
}

// New creates a device with size bytes of register memory
// (DefaultMemSize when size is 0).
func New(size int) *Device {
	if size == 0 {
		size = DefaultMemSize
	}
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = byte(i)
	}
	return &Device{mem: mem, ErrorCode: 99}
}

// SetMem overwrites register memory starting at offset, for test
// fixtures that need specific initial values.
func (d *Device) SetMem(offset int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.mem[offset:], data)
}

// Mem returns a copy of the register memory range [offset, offset+n).
func (d *Device) Mem(offset, n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.mem[offset:offset+n]...)
}

// Stats returns a snapshot of the wire activity counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Serve processes command lines from conn until it closes. Each
// command produces exactly one reply burst terminated by a newline.
func (d *Device) Serve(conn net.Conn) error {
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		reply := d.handle(line)
		if _, err := conn.Write([]byte(reply)); err != nil {
			return err
		}
	}
	return sc.Err()
}

// handle executes one command line and returns the reply text,
// including all newline terminators.
func (d *Device) handle(line string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailNext > 0 {
		d.FailNext--
		return fmt.Sprintf("{\"result\":%d}\n", d.ErrorCode)
	}
	if d.TimeoutNext > 0 {
		d.TimeoutNext--
		return "{}\n"
	}
	if d.ParseErrorNext > 0 {
		d.ParseErrorNext--
		return "foobar\n{\"response\":-999}\n"
	}

	tokens := strings.Fields(line)
	switch tokens[0] {
	case "rr":
		return d.readRegs(tokens[1:])
	case "wr":
		return d.writeRegs(tokens[1:])
	case "ex", "mcu_rst":
		return "{\"result\":0}\n"
	case "version":
		return fmt.Sprintf("{\"version\":%q,\"result\":0}\n", AppVersion)
	case "special_cmd":
		return "{\"result\":0}\n"
	default:
		return fmt.Sprintf("{\"result\":%d}\n", codeUnsupported)
	}
}

func (d *Device) readRegs(args []string) string {
	if len(args) != 2 {
		return fmt.Sprintf("{\"result\":%d}\n", codeInvalidArg)
	}
	offset, err1 := strconv.Atoi(args[0])
	size, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return fmt.Sprintf("{\"result\":%d}\n", codeBadMessage)
	}
	if offset < 0 || size < 0 || offset+size > len(d.mem) {
		return fmt.Sprintf("{\"result\":%d}\n", codeInvalidArg)
	}
	d.stats.BytesRead += size

	if d.DataFailNext > 0 {
		d.DataFailNext--
		return "{\"data\":\"foo\",\"result\":0}\n"
	}

	var sb strings.Builder
	sb.WriteString("{\"data\":[")
	for i := 0; i < size; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(d.mem[offset+i])))
	}
	sb.WriteString("],\"result\":0}\n")
	return sb.String()
}

func (d *Device) writeRegs(args []string) string {
	if len(args) < 2 {
		return fmt.Sprintf("{\"result\":%d}\n", codeInvalidArg)
	}
	offset, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Sprintf("{\"result\":%d}\n", codeBadMessage)
	}
	data := make([]byte, 0, len(args)-1)
	for _, tok := range args[1:] {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return fmt.Sprintf("{\"result\":%d}\n", codeBadMessage)
		}
		if v < 0 || v > 255 {
			return fmt.Sprintf("{\"result\":%d}\n", codeOverflow)
		}
		data = append(data, byte(v))
	}
	if offset < 0 || offset+len(data) > len(d.mem) {
		return fmt.Sprintf("{\"result\":%d}\n", codeInvalidArg)
	}

	d.WrOffset = offset
	d.WrData = append([]byte(nil), data...)
	d.stats.BytesWritten += len(data)

	if d.WriteFailNext > 0 {
		d.WriteFailNext--
		return "{\"result\":0}\n"
	}
	copy(d.mem[offset:], data)
	return "{\"result\":0}\n"
}
