// Package mockdev implements a simulated RegLine device for tests and
// manual experiments. It speaks the line-oriented JSON protocol over
// any net.Conn, backs registers with a plain byte array, and offers
// failure injection (forced error codes, timeouts, undecodable output)
// plus explicit instrumentation for asserting wire traffic.
package mockdev
