// Package simulator provides a stand-in ingestion server for local runs and
// tests.
//
// The Generator produces a mean-reverting random walk with occasional jumps.
// The Server pushes one generated sample per interval to every WebSocket
// subscriber and serves the REST endpoints of the ingestion and analysis
// services:
//
//	GET /ws/timeseries                  WebSocket stream (also /api/v1/data/ws)
//	GET /api/v1/data/timeseries?points= batch of fresh samples (default 20)
//	GET /api/v1/data/latest             one fresh sample
//	GET /api/v1/data/frequency          magnitude spectrum of recent history
package simulator
