// Package buffer provides the fixed-capacity sliding window that holds the
// most recent feed samples.
//
// The window evicts its oldest entry when a new one arrives at capacity.
// Readers receive copies, never the backing array.
package buffer
