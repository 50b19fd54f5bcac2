package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/tsfeed/internal/model"
)

// fakeDB records batches and answers every Exec with a fixed tag.
type fakeDB struct {
	mu       sync.Mutex
	batches  []int
	tag      string
	err      error
	execSQL  []string
	conflict int // number of rows per batch reported as conflicts
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	f.batches = append(f.batches, b.Len())
	f.mu.Unlock()
	return &fakeResults{db: f, n: b.Len()}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execSQL = append(f.execSQL, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), f.err
}

func (f *fakeDB) rows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.batches {
		total += n
	}
	return total
}

type fakeResults struct {
	db   *fakeDB
	n    int
	seen int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.db.err != nil {
		return pgconn.CommandTag{}, r.db.err
	}
	r.seen++
	if r.seen <= r.db.conflict {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

func TestSampleWriter_Transform(t *testing.T) {
	cfg := DefaultWriterConfig()
	cfg.Source = "client-a"
	w := NewSampleWriter(cfg, &fakeDB{}, nil)

	receivedAt := time.Date(2024, 1, 15, 10, 30, 0, 123456000, time.FixedZone("EST", -5*3600))
	row := w.transform(model.Sample{
		Timestamp:  "2024-01-15T15:30:00Z",
		Value:      101.25,
		ReceivedAt: receivedAt,
	})

	if row.Source != "client-a" {
		t.Errorf("Source = %q, want %q", row.Source, "client-a")
	}
	if row.SampleTs != "2024-01-15T15:30:00Z" {
		t.Errorf("SampleTs = %q, want %q", row.SampleTs, "2024-01-15T15:30:00Z")
	}
	if row.Value != 101.25 {
		t.Errorf("Value = %v, want 101.25", row.Value)
	}
	if !row.ReceivedAt.Equal(receivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", row.ReceivedAt, receivedAt)
	}
	if row.ReceivedAt.Location() != time.UTC {
		t.Errorf("ReceivedAt location = %v, want UTC", row.ReceivedAt.Location())
	}
}

func TestSampleWriter_Transform_ZeroReceivedAt(t *testing.T) {
	w := NewSampleWriter(DefaultWriterConfig(), &fakeDB{}, nil)

	row := w.transform(model.Sample{Timestamp: "t", Value: 1})
	if row.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should default to now")
	}
}

func TestSampleWriter_HandleMessage_AddsToBatch(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100, // Large batch so no auto-flush
		FlushInterval: time.Hour,
	}
	w := NewSampleWriter(cfg, &fakeDB{}, nil)

	w.handleMessage(model.Sample{Timestamp: "t1", Value: 1, ReceivedAt: time.Now()})

	w.batchMu.Lock()
	batchLen := len(w.batch)
	w.batchMu.Unlock()

	if batchLen != 1 {
		t.Errorf("batch length = %d, want 1", batchLen)
	}
}

func TestSampleWriter_FlushOnBatchSize(t *testing.T) {
	db := &fakeDB{}
	cfg := WriterConfig{
		BatchSize:     3,
		FlushInterval: time.Hour,
	}
	w := NewSampleWriter(cfg, db, nil)
	w.ctx = context.Background()

	for i := 0; i < 7; i++ {
		w.handleMessage(model.Sample{Timestamp: "t", Value: float64(i)})
	}

	if got := db.rows(); got != 6 {
		t.Errorf("rows written = %d, want 6", got)
	}
	stats := w.Stats()
	if stats.Flushes != 2 {
		t.Errorf("Flushes = %d, want 2", stats.Flushes)
	}
	if stats.Inserts != 6 {
		t.Errorf("Inserts = %d, want 6", stats.Inserts)
	}
}

func TestSampleWriter_Conflicts(t *testing.T) {
	db := &fakeDB{conflict: 2}
	w := NewSampleWriter(WriterConfig{BatchSize: 5, FlushInterval: time.Hour}, db, nil)
	w.ctx = context.Background()

	for i := 0; i < 5; i++ {
		w.handleMessage(model.Sample{Timestamp: "t", Value: float64(i)})
	}

	stats := w.Stats()
	if stats.Conflicts != 2 {
		t.Errorf("Conflicts = %d, want 2", stats.Conflicts)
	}
	if stats.Inserts != 3 {
		t.Errorf("Inserts = %d, want 3", stats.Inserts)
	}
}

func TestSampleWriter_InsertError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	w := NewSampleWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, db, nil)
	w.ctx = context.Background()

	w.handleMessage(model.Sample{Timestamp: "a", Value: 1})
	w.handleMessage(model.Sample{Timestamp: "b", Value: 2})

	stats := w.Stats()
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Inserts != 0 {
		t.Errorf("Inserts = %d, want 0", stats.Inserts)
	}
}

func TestSampleWriter_HandleSampleDropsWhenFull(t *testing.T) {
	w := NewSampleWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 2}, &fakeDB{}, nil)

	// Not started, so nothing drains the queue.
	for i := 0; i < 5; i++ {
		w.HandleSample(model.Sample{Timestamp: "t", Value: float64(i)})
	}

	if got := w.Stats().Dropped; got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}
}

func TestSampleWriter_Lifecycle(t *testing.T) {
	db := &fakeDB{}
	cfg := WriterConfig{
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
	}
	w := NewSampleWriter(cfg, db, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 4; i++ {
		w.HandleSample(model.Sample{Timestamp: "t", Value: float64(i), ReceivedAt: time.Now()})
	}

	// Ticker flush picks up the partial batch.
	deadline := time.Now().Add(2 * time.Second)
	for db.rows() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := db.rows(); got != 4 {
		t.Errorf("rows written = %d, want 4", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestSampleWriter_StopFlushesPending(t *testing.T) {
	db := &fakeDB{}
	w := NewSampleWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.HandleSample(model.Sample{Timestamp: "a", Value: 1})
	w.HandleSample(model.Sample{Timestamp: "b", Value: 2})

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := db.rows(); got != 2 {
		t.Errorf("rows written = %d, want 2", got)
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if len(db.execSQL) != 1 || db.execSQL[0] != Schema {
		t.Errorf("EnsureSchema executed %d statements, want Schema once", len(db.execSQL))
	}

	db.err = errors.New("permission denied")
	if err := EnsureSchema(context.Background(), db); err == nil {
		t.Error("EnsureSchema expected error, got nil")
	}
}

func TestDefaultWriterConfig(t *testing.T) {
	cfg := DefaultWriterConfig()

	if cfg.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", cfg.BatchSize)
	}
	if cfg.FlushInterval != time.Second {
		t.Errorf("FlushInterval = %v, want %v", cfg.FlushInterval, time.Second)
	}
	if cfg.BufferSize != 10000 {
		t.Errorf("BufferSize = %d, want 10000", cfg.BufferSize)
	}
}
