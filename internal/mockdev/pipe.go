package mockdev

import (
	"net"

	"github.com/regline-protocol/regline-go/pkg/log"
	"github.com/regline-protocol/regline-go/pkg/transport"
)

// Pipe creates an in-memory transport wired to a fresh device serving
// on the other end of a net.Pipe. Closing the transport stops the
// serve loop.
func Pipe(logger log.Logger) (transport.Transport, *Device, error) {
	host, devEnd := net.Pipe()
	dev := New(0)
	go func() { _ = dev.Serve(devEnd) }()

	t, err := transport.New(transport.Config{
		Kind:   transport.KindConn,
		Conn:   host,
		Logger: logger,
	})
	if err != nil {
		host.Close()
		devEnd.Close()
		return nil, nil, err
	}
	return t, dev, nil
}
