package simulator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rickgao/tsfeed/internal/buffer"
	"github.com/rickgao/tsfeed/internal/model"
)

// Route paths.
const (
	StreamPath      = "/ws/timeseries"
	LegacyPath      = "/api/v1/data/ws"
	TimeSeriesPath  = "/api/v1/data/timeseries"
	LatestPath      = "/api/v1/data/latest"
	FrequencyPath   = "/api/v1/data/frequency"
	defaultPoints   = 20
	maxPoints       = 1000
	subscriberQueue = 16
)

// ServerConfig holds simulator server configuration.
type ServerConfig struct {
	Interval     time.Duration // Time between broadcast samples (default: 1s)
	History      int           // Samples kept for the spectrum (default: 64)
	WriteTimeout time.Duration // Per-frame write deadline (default: 5s)
	DropEvery    time.Duration // Abruptly drop all subscribers this often; 0 disables
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Interval:     time.Second,
		History:      64,
		WriteTimeout: 5 * time.Second,
	}
}

// subscriber is one connected WebSocket peer.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Server broadcasts generated samples to WebSocket subscribers.
type Server struct {
	cfg      ServerConfig
	gen      *Generator
	history  *buffer.Window[model.Sample]
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewServer creates a Server.
func NewServer(cfg ServerConfig, gen *Generator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultServerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.History < 2 {
		cfg.History = def.History
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Server{
		cfg:     cfg,
		gen:     gen,
		history: buffer.NewWindow[model.Sample](cfg.History),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "simulator"),
		subs:   make(map[*subscriber]struct{}),
	}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get(StreamPath, s.handleStream)
	r.Get(LegacyPath, s.handleStream)
	r.Get(TimeSeriesPath, s.handleTimeSeries)
	r.Get(LatestPath, s.handleLatest)
	r.Get(FrequencyPath, s.handleFrequency)
	return r
}

// Run broadcasts one sample per interval until ctx is cancelled, then closes
// every subscriber with a normal closure.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var drop <-chan time.Time
	if s.cfg.DropEvery > 0 {
		dropTicker := time.NewTicker(s.cfg.DropEvery)
		defer dropTicker.Stop()
		drop = dropTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.CloseAll(websocket.CloseNormalClosure, "server shutting down")
			return
		case <-ticker.C:
			s.Broadcast(s.gen.Next())
		case <-drop:
			s.logger.Info("dropping subscribers", "count", s.Subscribers())
			s.DropAll()
		}
	}
}

// Broadcast records sample in the history and queues it for every
// subscriber. Subscribers whose queue is full are disconnected.
func (s *Server) Broadcast(sample model.Sample) {
	s.history.Append(sample)

	data, err := json.Marshal(sample)
	if err != nil {
		s.logger.Error("marshal sample", "error", err)
		return
	}

	for _, sub := range s.snapshot() {
		select {
		case sub.send <- data:
		default:
			s.logger.Warn("subscriber too slow, disconnecting")
			s.remove(sub)
			sub.conn.Close()
		}
	}
}

// Subscribers returns the number of connected peers.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// CloseAll sends a close frame with code to every subscriber and
// disconnects them.
func (s *Server) CloseAll(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	for _, sub := range s.snapshot() {
		s.remove(sub)
		sub.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		sub.conn.Close()
	}
}

// DropAll closes every subscriber's socket without a close frame.
func (s *Server) DropAll() {
	for _, sub := range s.snapshot() {
		s.remove(sub)
		sub.conn.Close()
	}
}

func (s *Server) snapshot() []*subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

func (s *Server) remove(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	sub.stop()
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, subscriberQueue),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("subscriber connected", "remote", r.RemoteAddr)

	go s.writeLoop(sub)

	// Reading keeps the control frame handlers running.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.remove(sub)
	conn.Close()
	s.logger.Debug("subscriber disconnected", "remote", r.RemoteAddr)
}

func (s *Server) writeLoop(sub *subscriber) {
	for {
		select {
		case <-sub.done:
			return
		case data := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.remove(sub)
				sub.conn.Close()
				return
			}
		}
	}
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	points := defaultPoints
	if raw := r.URL.Query().Get("points"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPoints {
			http.Error(w, "points must be between 1 and "+strconv.Itoa(maxPoints), http.StatusBadRequest)
			return
		}
		points = n
	}
	writeJSON(w, s.gen.Series(points))
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.gen.Next())
}

func (s *Server) handleFrequency(w http.ResponseWriter, _ *http.Request) {
	samples := s.history.Snapshot()
	values := make([]float64, len(samples))
	for i, sample := range samples {
		values[i] = sample.Value
	}
	writeJSON(w, Spectrum(values, 1/s.cfg.Interval.Seconds()))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
