// Package httpapi serves the feed client's status surface over HTTP.
//
// Routes:
//   - GET  /health         200 when the feed is connected, 503 otherwise
//   - GET  /v1/status      connection state, last error, retry progress
//   - GET  /v1/samples     current window, oldest first (?limit=N keeps the newest N)
//   - GET  /v1/frequency   latest frequency summary and fetch error
//   - POST /v1/reconnect   manual reconnect
//   - GET  /metrics        Prometheus exposition (path configurable)
package httpapi
