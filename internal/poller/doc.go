// Package poller implements the frequency summary poller.
//
// The poller:
//   - Fetches the frequency summary from the analysis service on a fixed interval
//   - Fetches again when new samples arrive, at most once per MinGap
//   - Keeps the latest summary and the last fetch error for the status API
//
// A failed fetch never clears the previous summary.
package poller
