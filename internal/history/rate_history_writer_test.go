package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/pkg/model"
)

type fakeResults struct {
	failAt int
	execs  int
	closed bool
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	r.execs++
	if r.failAt > 0 && r.execs == r.failAt {
		return pgconn.CommandTag{}, errors.New("insert failed")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}
func (r *fakeResults) Query() (pgx.Rows, error) { return nil, nil }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error {
	r.closed = true
	return nil
}

type fakeDB struct {
	batch   *pgx.Batch
	results *fakeResults
}

func (d *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	d.batch = b
	return d.results
}

func snapshot() model.RateSnapshot {
	fetched := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return model.RateSnapshot{
		Base: "VND",
		Rates: map[string]model.ExchangeRate{
			"USD": {CurrencyCode: "USD", RateToBase: decimal.NewFromInt(25000), UpdatedAt: fetched.Add(-time.Minute)},
			"CNY": {CurrencyCode: "CNY", RateToBase: decimal.NewFromInt(3500)},
		},
		FetchedAt: fetched,
	}
}

func TestNewRateHistoryWriter(t *testing.T) {
	logger := zap.NewNop()
	w := NewRateHistoryWriter(nil, logger, "http")

	if w == nil {
		t.Fatal("expected non-nil writer")
	}
	if w.logger != logger {
		t.Error("expected logger to match")
	}
	if w.source != "http" {
		t.Errorf("expected source=http, got %s", w.source)
	}
}

func TestRecord_NilDBIsNoop(t *testing.T) {
	w := NewRateHistoryWriter(nil, nil, "http")
	if err := w.Record(context.Background(), snapshot()); err != nil {
		t.Fatalf("expected nil error without db, got: %v", err)
	}
}

func TestRecord_EmptySnapshotIsNoop(t *testing.T) {
	db := &fakeDB{results: &fakeResults{}}
	w := NewRateHistoryWriter(db, nil, "http")
	if err := w.Record(context.Background(), model.RateSnapshot{Base: "VND"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.batch != nil {
		t.Error("expected no batch for empty snapshot")
	}
}

func TestRecord_QueuesOneRowPerCurrency(t *testing.T) {
	db := &fakeDB{results: &fakeResults{}}
	w := NewRateHistoryWriter(db, zap.NewNop(), "http")
	recorded := time.Date(2026, 10, 1, 0, 5, 0, 0, time.UTC)
	w.now = func() time.Time { return recorded }

	if err := w.Record(context.Background(), snapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.batch.Len() != 2 {
		t.Fatalf("expected 2 queued rows, got %d", db.batch.Len())
	}
	if db.results.execs != 2 || !db.results.closed {
		t.Errorf("expected 2 execs and close, got execs=%d closed=%v", db.results.execs, db.results.closed)
	}

	for _, q := range db.batch.QueuedQueries {
		if q.SQL != insertRate {
			t.Errorf("unexpected SQL: %s", q.SQL)
		}
		code := q.Arguments[0].(string)
		updatedAt := q.Arguments[3].(time.Time)
		if code == "CNY" && !updatedAt.Equal(snapshot().FetchedAt) {
			t.Errorf("CNY updated_at should fall back to fetched_at, got %v", updatedAt)
		}
		if q.Arguments[4].(time.Time) != recorded {
			t.Errorf("recorded_at = %v", q.Arguments[4])
		}
		if q.Arguments[5].(string) != "http" {
			t.Errorf("source = %v", q.Arguments[5])
		}
	}
}

func TestRecord_ExecErrorStopsAndCloses(t *testing.T) {
	db := &fakeDB{results: &fakeResults{failAt: 1}}
	w := NewRateHistoryWriter(db, zap.NewNop(), "http")

	err := w.Record(context.Background(), snapshot())
	if err == nil {
		t.Fatal("expected error")
	}
	if !db.results.closed {
		t.Error("expected results closed after failure")
	}
}
