// Package transport provides the line-oriented byte channel used by the
// RegLine protocol codec.
//
// Two channel kinds are supported: a physical serial port (KindSerial)
// and an arbitrary net.Conn (KindConn, used for virtual devices and
// tests). The set of kinds is closed; construction goes through New and
// a Config, not an open plugin registry.
//
// A Transport is not safe for concurrent use by multiple in-flight
// exchanges: the protocol is strictly request-then-response on one
// channel. Callers needing concurrency must serialize access externally.
package transport
