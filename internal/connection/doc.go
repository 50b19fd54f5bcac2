// Package connection implements the resilient feed client.
//
// The Manager owns exactly one WebSocket connection at a time:
//   - Transport events (opened, message, error, closed) are tagged with the
//     generation of the attempt that produced them and consumed one at a
//     time by a single event loop
//   - Unclean closes are retried with exponential backoff until the
//     configured attempt budget is spent
//   - Valid samples are appended to a bounded sliding window; malformed
//     frames are recorded as the last error and dropped
//   - StatusPort exposes state, last error and snapshots to the UI layer
package connection
