// Command regline-mockdev runs a simulated RegLine device on a TCP
// listener, for exercising regline-cli without hardware:
//
//	regline-mockdev -addr :7755
//	regline-cli -map registers.csv -tcp localhost:7755
//
// Each connection gets its own device instance with index-ascending
// register memory.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/regline-protocol/regline-go/internal/mockdev"
)

func main() {
	var (
		addr    = flag.String("addr", "localhost:7755", "Listen address")
		memSize = flag.Int("mem", mockdev.DefaultMemSize, "Register memory size in bytes")
	)
	flag.Parse()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("mock device listening on %s (%d bytes of registers)\n", ln.Addr(), *memSize)

	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Fprintf(os.Stderr, "accept: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("connection from %s\n", conn.RemoteAddr())
		go func(c net.Conn) {
			defer c.Close()
			dev := mockdev.New(*memSize)
			if err := dev.Serve(c); err != nil {
				fmt.Fprintf(os.Stderr, "serve %s: %v\n", c.RemoteAddr(), err)
			}
			fmt.Printf("connection from %s closed\n", c.RemoteAddr())
		}(conn)
	}
}
