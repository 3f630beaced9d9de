package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

func row(day string, calls int64) models.DailyStatistic {
	d, _ := models.ParseDate(day)
	return models.DailyStatistic{Date: d, TotalStats: &models.TotalStats{CallsBooked: calls, Revenue: decimal.NewFromInt(calls * 100)}}
}

func TestMemoryStoreQueryInclusiveNewestFirst(t *testing.T) {
	st := NewMemoryStore()
	for i, d := range []string{"2025-06-10", "2025-06-12", "2025-06-11", "2025-06-09", "2025-06-13"} {
		st.Upsert(row(d, int64(i)))
	}
	from := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	got, err := st.QueryStatistics(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-06-12", "2025-06-11", "2025-06-10"}
	if len(got) != len(want) {
		t.Fatalf("len: got %d want %d", len(got), len(want))
	}
	for i, w := range want {
		if g := got[i].Date.Format("2006-01-02"); g != w {
			t.Errorf("row %d: got %s want %s", i, g, w)
		}
	}
}

func TestMemoryStoreUpsertReplacesDay(t *testing.T) {
	st := NewMemoryStore()
	st.Upsert(row("2025-06-10", 1))
	st.Upsert(row("2025-06-10T15:00:00Z", 7))
	if st.Len() != 1 {
		t.Fatalf("len: %d", st.Len())
	}
	got, _ := st.QueryStatistics(context.Background(), time.Time{}, time.Now())
	if got[0].CallsBooked() != 7 {
		t.Fatalf("calls: %d", got[0].CallsBooked())
	}
}

func TestMemoryStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryStore().QueryStatistics(ctx, time.Time{}, time.Now()); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `{
		"statistics": [
			{"date": "2025-06-18", "total_stats": {"callsBooked": 4, "revenue": "250.50"}},
			{"date": "2025-06-19", "total_stats": {"callsBooked": 6}}
		],
		"videos": [
			{"id": "a", "report_date": "2025-06-01"},
			{"id": "b", "report_date": "2025-06-15"}
		]
	}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	st := NewMemoryStore()
	n, err := st.LoadFile(path)
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	v, _ := st.QueryVideos(context.Background())
	if len(v) != 2 || v[0].ID != "b" {
		t.Fatalf("videos newest first: %+v", v)
	}
	if _, err := st.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
