// Package writer implements the sample archive writer.
//
// The writer receives accepted samples from the connection manager through a
// bounded channel and batches them into the TimescaleDB samples hypertable.
// Batches flush when full or on a fixed interval, whichever comes first.
//
// The archive is append-only. It is never read back into the live window.
package writer
