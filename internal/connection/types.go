package connection

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rickgao/tsfeed/internal/backoff"
	"github.com/rickgao/tsfeed/internal/model"
)

// Errors
var (
	ErrClosed           = errors.New("connection manager closed")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrRetriesExhausted = errors.New("exhausted retries")
)

// Default values.
const (
	DefaultURL       = "ws://localhost:8080/ws/timeseries"
	DefaultMaxPoints = 100
)

// State is the observable connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventKind is the closed set of transport lifecycle events.
type EventKind int

const (
	EventOpened EventKind = iota + 1
	EventMessage
	EventError
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a single transport lifecycle event.
type Event struct {
	Kind       EventKind
	Data       []byte    // EventMessage: raw frame
	ReceivedAt time.Time // Local timestamp when the frame was read
	Err        error     // EventError, and EventClosed when known
	Clean      bool      // EventClosed: close handshake with normal closure
	Code       int       // EventClosed: WebSocket close code
}

// Transition describes one state change, delivered to OnTransition.
type Transition struct {
	From      State
	To        State
	Attempt   int
	AttemptID string
	LastError string
	NextDelay time.Duration // Set when a retry is scheduled
	At        time.Time
}

// SampleSink receives every accepted sample after it is buffered.
// Implementations must not block.
type SampleSink interface {
	HandleSample(model.Sample)
}

// SampleSinkFunc is a function adapter for SampleSink.
type SampleSinkFunc func(model.Sample)

func (f SampleSinkFunc) HandleSample(s model.Sample) {
	f(s)
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., ws://localhost:8080/ws/timeseries)
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Dial + upgrade timeout
	PingInterval     time.Duration // Interval between keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for control frames
	BufferSize       int           // Event channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              DefaultURL,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	Client           ClientConfig   // Transport settings, including the URL
	MaxPoints        int            // Sliding window capacity
	Backoff          backoff.Policy // Reconnect schedule
	ClearOnReconnect bool           // Drop buffered samples on manual reconnect

	// OnTransition is called from the event loop on every state change.
	OnTransition func(Transition)

	// Sinks receive accepted samples from the event loop.
	Sinks []SampleSink
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:    DefaultClientConfig(),
		MaxPoints: DefaultMaxPoints,
		Backoff:   backoff.DefaultPolicy(),
	}
}

// Info is a point-in-time view of the manager for status surfaces.
type Info struct {
	State       State     `json:"state"`
	LastError   string    `json:"last_error,omitempty"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	NextDelay   string    `json:"next_delay,omitempty"`
	AttemptID   string    `json:"attempt_id,omitempty"`
	URL         string    `json:"url"`
	Buffered    int       `json:"buffered"`
	Capacity    int       `json:"capacity"`
	Received    int64     `json:"received"`
	Rejected    int64     `json:"rejected"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`
	Closed      bool      `json:"closed"`
}
