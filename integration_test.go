package regline_test

import (
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regline-protocol/regline-go/internal/mockdev"
	"github.com/regline-protocol/regline-go/pkg/access"
	"github.com/regline-protocol/regline-go/pkg/connection"
	"github.com/regline-protocol/regline-go/pkg/log"
	"github.com/regline-protocol/regline-go/pkg/memmap"
	"github.com/regline-protocol/regline-go/pkg/protocol"
	"github.com/regline-protocol/regline-go/pkg/transport"
	"github.com/regline-protocol/regline-go/pkg/version"
)

const e2eMap = `registers:
  - name: sys.mode
    offset: 0
    type: uint8
  - name: sys.res
    offset: 1
    type: uint8
  - name: sys.count
    offset: 2
    type: uint16
  - name: data
    offset: 8
    type: uint8
    total_size: 16
    array_size: 16
  - name: ctl.en
    offset: 24
    type: uint16
    bit_offset: 9
    bits: 3
`

// startMockServer runs a mock device behind a TCP listener, as
// regline-mockdev does.
func startMockServer(t *testing.T) (string, *mockdev.Device) {
	t.Helper()
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)

	dev := mockdev.New(0)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = dev.Serve(conn)
	}()
	t.Cleanup(func() {
		ln.Close()
		wg.Wait()
	})
	return ln.Addr().String(), dev
}

// TestE2E_RegisterAccess drives the full stack over TCP: YAML map,
// conn transport with a CBOR trace, codec, engine.
func TestE2E_RegisterAccess(t *testing.T) {
	addr, dev := startMockServer(t)

	m, err := memmap.LoadYAML(strings.NewReader(e2eMap))
	require.NoError(t, err)

	tracePath := filepath.Join(t.TempDir(), "trace.cbor")
	trace, err := log.NewFileLogger(tracePath)
	require.NoError(t, err)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	tr, err := transport.New(transport.Config{
		Kind:        transport.KindConn,
		Conn:        conn,
		ReadTimeout: time.Second,
		Logger:      trace,
	})
	require.NoError(t, err)

	handle := connection.NewHandle(tr)
	defer handle.Release()

	engine := access.New(m, protocol.NewCodec(tr, trace), access.Config{
		FragmentSize: 4,
		Timeout:      time.Second,
		Logger:       trace,
	})

	// Typed round trip through the fragmented path.
	_, err = engine.WriteRegister("sys.count", 0xABCD, access.WithVerify())
	require.NoError(t, err)
	res, err := engine.ReadRegister("sys.count")
	require.NoError(t, err)
	assert.Equal(t, int64(0xABCD), res.Value)

	// 16-byte array read splits into four fragments.
	res, err = engine.ReadRegister("data")
	require.NoError(t, err)
	require.Len(t, res.Commands, 4)
	values := res.Value.([]int64)
	assert.Equal(t, int64(8), values[0])

	// Bitfield write must preserve its container's neighbors.
	dev.SetMem(24, []byte{0x01, 0x01})
	_, err = engine.WriteRegister("ctl.en", 5, access.WithVerify())
	require.NoError(t, err)
	res, err = engine.ReadRegister("ctl.en")
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Value)

	// Struct read skips the reserved field.
	res, err = engine.ReadStruct("sys.", access.WithFieldNames())
	require.NoError(t, err)
	fields := res.Value.([]access.Field)
	require.Len(t, fields, 2)
	assert.Equal(t, "sys.mode", fields[0].Name)
	assert.Equal(t, "sys.count", fields[1].Name)
	assert.Equal(t, int64(0xABCD), fields[1].Value)

	// The reported interface version is one we support.
	res, err = engine.Version()
	require.NoError(t, err)
	v, err := version.Parse(res.Value.(string))
	require.NoError(t, err)
	assert.True(t, v.Compatible())

	// The trace file holds events from every layer.
	require.NoError(t, trace.Close())
	layers := map[log.Layer]int{}
	r, err := log.NewReader(tracePath)
	require.NoError(t, err)
	defer r.Close()
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		layers[ev.Layer]++
	}
	assert.Positive(t, layers[log.LayerTransport])
	assert.Positive(t, layers[log.LayerProtocol])
	assert.Positive(t, layers[log.LayerAccess])
}

// TestE2E_SharedHandle checks that two collaborators can share one
// channel through a reference-counted handle.
func TestE2E_SharedHandle(t *testing.T) {
	addr, _ := startMockServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	tr, err := transport.New(transport.Config{
		Kind:        transport.KindConn,
		Conn:        conn,
		ReadTimeout: time.Second,
	})
	require.NoError(t, err)

	handle := connection.NewHandle(tr)
	require.NoError(t, handle.Retain())

	m := memmap.New()
	require.NoError(t, m.Add(memmap.Descriptor{
		Name: "mode", Offset: 0, Type: memmap.TypeUint8, TypeSize: 1,
	}))
	engine := access.New(m, protocol.NewCodec(tr, nil), access.Config{Timeout: time.Second})

	_, err = engine.ReadRegister("mode")
	require.NoError(t, err)

	// First holder leaves; the channel must stay open for the second.
	require.NoError(t, handle.Release())
	_, err = engine.ReadRegister("mode")
	require.NoError(t, err)

	require.NoError(t, handle.Release())
	assert.True(t, handle.Closed())
	_, err = engine.ReadRegister("mode")
	require.ErrorIs(t, err, transport.ErrClosed)
}
