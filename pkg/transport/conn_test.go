package transport

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"
)

func newPipeTransport(t *testing.T, cfg Config) (Transport, net.Conn) {
	t.Helper()
	host, peer := net.Pipe()
	cfg.Kind = KindConn
	cfg.Conn = host
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		tr.Close()
		peer.Close()
	})
	return tr, peer
}

func TestConnTransportExchange(t *testing.T) {
	tr, peer := newPipeTransport(t, Config{})

	go func() {
		r := bufio.NewReader(peer)
		line, err := r.ReadString('\n')
		if err != nil || line != "version\n" {
			return
		}
		peer.Write([]byte("\x00\x00{\"result\":0}\r\n"))
	}()

	if err := tr.WriteLine("version"); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}
	line, err := tr.ReadLine(time.Second)
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	// Leading NULs and the \r are channel noise, not payload.
	if line != `{"result":0}` {
		t.Errorf("line = %q", line)
	}
	if tr.ConnectionID() == "" {
		t.Error("transport must carry a connection ID")
	}
}

func TestConnTransportKeepNoise(t *testing.T) {
	tr, peer := newPipeTransport(t, Config{KeepNoise: true})

	go peer.Write([]byte("\x00abc\n"))

	line, err := tr.ReadLine(time.Second)
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "\x00abc" {
		t.Errorf("line = %q, want NUL preserved", line)
	}
}

func TestConnTransportPendingLines(t *testing.T) {
	tr, peer := newPipeTransport(t, Config{})

	go peer.Write([]byte("first\nsecond\n"))

	for _, want := range []string{"first", "second"} {
		line, err := tr.ReadLine(time.Second)
		if err != nil {
			t.Fatalf("ReadLine failed: %v", err)
		}
		if line != want {
			t.Errorf("line = %q, want %q", line, want)
		}
	}
}

func TestConnTransportReadBytes(t *testing.T) {
	tr, peer := newPipeTransport(t, Config{})

	go peer.Write([]byte{0, 1, 2, 3})

	data, err := tr.ReadBytes(4, time.Second)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	if len(data) != 4 || data[3] != 3 {
		t.Errorf("data = %v, want [0 1 2 3]", data)
	}
}

func TestConnTransportTimeout(t *testing.T) {
	tr, _ := newPipeTransport(t, Config{})

	start := time.Now()
	_, err := tr.ReadLine(50 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ReadLine blocked %v past its timeout", elapsed)
	}
}

func TestConnTransportWriteFlushesStale(t *testing.T) {
	tr, peer := newPipeTransport(t, Config{})

	go func() {
		// Noise the host never asked for, then the real reply.
		peer.Write([]byte("stale noise\n"))
		r := bufio.NewReader(peer)
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		peer.Write([]byte("fresh\n"))
	}()

	time.Sleep(20 * time.Millisecond)
	if err := tr.WriteLine("rr 0 1"); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}
	line, err := tr.ReadLine(time.Second)
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if line != "fresh" {
		t.Errorf("line = %q, want the stale line discarded", line)
	}
}

func TestConnTransportClosed(t *testing.T) {
	tr, _ := newPipeTransport(t, Config{})

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.WriteLine("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteLine after close = %v, want ErrClosed", err)
	}
	if _, err := tr.ReadLine(time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadLine after close = %v, want ErrClosed", err)
	}
}

func TestConnTransportReconnectOnTimeout(t *testing.T) {
	fresh, freshPeer := net.Pipe()
	defer freshPeer.Close()
	go func() {
		r := bufio.NewReader(freshPeer)
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		freshPeer.Write([]byte("{\"result\":0}\n"))
	}()

	tr, _ := newPipeTransport(t, Config{
		ReconnectOnTimeout: true,
		Dial:               func() (net.Conn, error) { return fresh, nil },
	})

	// The silent first channel times out and is replaced.
	if _, err := tr.ReadLine(50 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}

	if err := tr.WriteLine("version"); err != nil {
		t.Fatalf("WriteLine after reconnect failed: %v", err)
	}
	line, err := tr.ReadLine(time.Second)
	if err != nil {
		t.Fatalf("ReadLine after reconnect failed: %v", err)
	}
	if line != `{"result":0}` {
		t.Errorf("line = %q", line)
	}
}

func TestLineBuffer(t *testing.T) {
	var b lineBuffer
	b.feed([]byte("par"))
	if _, ok := b.takeLine(false); ok {
		t.Error("takeLine returned an incomplete line")
	}
	b.feed([]byte("tial\nnext"))
	line, ok := b.takeLine(false)
	if !ok || line != "partial" {
		t.Errorf("takeLine = %q/%v, want partial", line, ok)
	}
	if b.buffered() != 4 {
		t.Errorf("buffered = %d, want 4", b.buffered())
	}
	out, ok := b.takeBytes(4)
	if !ok || string(out) != "next" {
		t.Errorf("takeBytes = %q/%v, want next", out, ok)
	}
}
