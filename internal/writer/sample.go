package writer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/tsfeed/internal/model"
)

// DB is the subset of *pgxpool.Pool the writer needs.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// WriterConfig holds batching configuration.
type WriterConfig struct {
	Source        string        // Value of the source column (instance id)
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits before flush
	BufferSize    int           // Capacity of the input channel
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Source:        "feedclient",
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// WriterMetrics holds write counters.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}

// sampleRow is one row of the samples table.
type sampleRow struct {
	Source     string
	SampleTs   string
	Value      float64
	ReceivedAt time.Time
}

// SampleWriter archives received samples into the samples table.
type SampleWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input chan model.Sample
	db    DB

	// Batching
	batch       []sampleRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dropped atomic.Int64
	metrics WriterMetrics
}

// NewSampleWriter creates a new SampleWriter.
func NewSampleWriter(cfg WriterConfig, db DB, logger *slog.Logger) *SampleWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Source == "" {
		cfg.Source = def.Source
	}
	return &SampleWriter{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "sample_writer"),
		input:  make(chan model.Sample, cfg.BufferSize),
		batch:  make([]sampleRow, 0, cfg.BatchSize),
	}
}

// HandleSample queues a sample for archiving. It never blocks; when the
// queue is full the sample is dropped and counted.
func (w *SampleWriter) HandleSample(s model.Sample) {
	select {
	case w.input <- s:
	default:
		if w.dropped.Add(1)%1000 == 1 {
			w.logger.Warn("archive queue full, dropping samples", "dropped", w.dropped.Load())
		}
	}
}

// Start begins consuming samples and writing to the database.
func (w *SampleWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("sample writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer, flushing what is queued.
func (w *SampleWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping sample writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("sample writer stopped")
	case <-ctx.Done():
		w.logger.Warn("sample writer stop timed out")
		return ctx.Err()
	}

	w.drain()
	w.flushWith(ctx)

	return nil
}

// Stats returns current metrics.
func (w *SampleWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	m := w.metrics
	m.Dropped = w.dropped.Load()
	return m
}

// consumeLoop reads from the input channel and accumulates batches.
func (w *SampleWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case s := <-w.input:
			w.handleMessage(s)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *SampleWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// drain moves whatever is still queued into the batch.
func (w *SampleWriter) drain() {
	for {
		select {
		case s := <-w.input:
			row := w.transform(s)
			w.batchMu.Lock()
			w.batch = append(w.batch, row)
			w.batchMu.Unlock()
		default:
			return
		}
	}
}

// handleMessage transforms and adds a sample to the batch.
func (w *SampleWriter) handleMessage(s model.Sample) {
	row := w.transform(s)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a Sample to a sampleRow.
func (w *SampleWriter) transform(s model.Sample) sampleRow {
	receivedAt := s.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return sampleRow{
		Source:     w.cfg.Source,
		SampleTs:   s.Timestamp,
		Value:      s.Value,
		ReceivedAt: receivedAt.UTC(),
	}
}

func (w *SampleWriter) flush() {
	w.flushWith(w.ctx)
}

// flushWith writes the current batch to the database.
func (w *SampleWriter) flushWith(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]sampleRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed samples",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *SampleWriter) batchInsert(ctx context.Context, rows []sampleRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO samples (source, sample_ts, value, received_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING
		`, r.Source, r.SampleTs, r.Value, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
