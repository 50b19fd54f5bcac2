// Package database opens the TimescaleDB pool used by the sample archive.
package database
