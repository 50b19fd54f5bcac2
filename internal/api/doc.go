// Package api provides the REST client for the analysis service.
//
// Endpoints:
//   - GET /api/v1/data/frequency      frequency summary of the recent window
//   - GET /api/v1/data/timeseries     backfill of generated samples (?points=N)
//   - GET /api/v1/data/latest         single most recent sample
//
// Requests are retried with jittered exponential backoff on 5xx and 429.
package api
