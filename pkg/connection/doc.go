// Package connection provides channel lifecycle helpers: exponential
// backoff for reopen attempts and reference-counted shared ownership of
// a single physical channel.
package connection
