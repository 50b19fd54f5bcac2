// Package backoff computes reconnect delays for the feed connection.
//
// Delays grow as initialDelay * 2^attempt and saturate at maxDelay. The
// package holds no state of its own: the connection manager owns the
// attempt counter and decides when retries are exhausted.
package backoff
