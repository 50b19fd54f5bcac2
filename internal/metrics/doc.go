// Package metrics provides Prometheus metrics for the feed client.
//
// Key metrics:
//   - Connection state, transitions and scheduled retries
//   - Samples received and rejected, window fill
//   - Frequency summary fetch outcomes and latency
//
// Each Metrics owns its registry, exposed through Handler.
package metrics
