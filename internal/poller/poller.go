package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/tsfeed/internal/model"
)

// Fetcher retrieves the frequency summary. *api.Client satisfies it.
type Fetcher interface {
	GetFrequency(ctx context.Context) ([]model.FrequencyPoint, error)
}

// Summary is one successfully fetched frequency summary.
type Summary struct {
	Points    []model.FrequencyPoint `json:"points"`
	FetchedAt time.Time              `json:"fetched_at"`
}

// ResultHandler is notified after every fetch attempt.
type ResultHandler func(points int, dur time.Duration, err error)

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval (default: 5s)
	Timeout  time.Duration // Per-request timeout (default: 10s)
	MinGap   time.Duration // Minimum spacing of sample-triggered fetches (default: 1s)
	OnResult ResultHandler // Optional
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  10 * time.Second,
		MinGap:   time.Second,
	}
}

// Poller periodically fetches the frequency summary via REST API.
type Poller struct {
	cfg     Config
	fetcher Fetcher
	logger  *slog.Logger

	trigger chan struct{}

	mu        sync.RWMutex
	latest    Summary
	hasLatest bool
	lastErr   string
	lastFetch time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, fetcher Fetcher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.With("component", "poller"),
		trigger: make(chan struct{}, 1),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("frequency poller started",
		"interval", p.cfg.Interval,
		"min_gap", p.cfg.MinGap,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("frequency poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger requests a fetch outside the regular interval. It never blocks;
// triggers that arrive while one is pending are merged.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// HandleSample triggers a refresh when the sample window changes.
func (p *Poller) HandleSample(model.Sample) {
	p.Trigger()
}

// Latest returns the most recent successful summary.
func (p *Poller) Latest() (Summary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.hasLatest {
		return Summary{}, false
	}
	out := Summary{
		Points:    make([]model.FrequencyPoint, len(p.latest.Points)),
		FetchedAt: p.latest.FetchedAt,
	}
	copy(out.Points, p.latest.Points)
	return out, true
}

// LastError returns the error of the most recent fetch, if it failed.
func (p *Poller) LastError() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr, p.lastErr != ""
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		case <-p.trigger:
			p.mu.RLock()
			since := time.Since(p.lastFetch)
			p.mu.RUnlock()
			if since < p.cfg.MinGap {
				continue
			}
			p.poll()
		}
	}
}

// poll fetches the summary once and records the outcome.
func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	points, err := p.fetcher.GetFrequency(ctx)
	dur := time.Since(start)

	p.mu.Lock()
	p.lastFetch = time.Now()
	if err != nil {
		p.lastErr = err.Error()
	} else {
		p.lastErr = ""
		p.latest = Summary{Points: points, FetchedAt: p.lastFetch}
		p.hasLatest = true
	}
	p.mu.Unlock()

	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn("failed to fetch frequency summary", "err", err)
		}
	} else {
		p.logger.Debug("frequency summary updated",
			"points", len(points),
			"duration", dur,
		)
	}

	if p.cfg.OnResult != nil {
		p.cfg.OnResult(len(points), dur, err)
	}
}
