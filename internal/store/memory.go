package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

// MemoryStore holds one statistics row per UTC day plus video reports.
type MemoryStore struct {
	mu     sync.RWMutex
	stats  map[time.Time]models.DailyStatistic
	videos map[string]models.VideoRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stats:  make(map[time.Time]models.DailyStatistic),
		videos: make(map[string]models.VideoRecord),
	}
}

// Upsert replaces the row stored for d's day.
func (s *MemoryStore) Upsert(d models.DailyStatistic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[day(d.Date.Time)] = d
}

// UpsertVideo keys reports by id, falling back to the report day.
func (s *MemoryStore) UpsertVideo(v models.VideoRecord) {
	k := v.ID
	if k == "" {
		k = day(v.ReportDate.Time).Format("2006-01-02")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[k] = v
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stats)
}

// QueryStatistics returns rows dated within [from, to], newest first.
func (s *MemoryStore) QueryStatistics(ctx context.Context, from, to time.Time) ([]models.DailyStatistic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]models.DailyStatistic, 0, len(s.stats))
	for _, v := range s.stats {
		if !v.Date.Before(from) && !v.Date.After(to) {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out, nil
}

func (s *MemoryStore) QueryVideos(ctx context.Context) ([]models.VideoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]models.VideoRecord, 0, len(s.videos))
	for _, v := range s.videos {
		out = append(out, v)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate.Time) })
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Seed is the on-disk layout accepted by LoadFile.
type Seed struct {
	Statistics []models.DailyStatistic `json:"statistics"`
	Videos     []models.VideoRecord    `json:"videos"`
}

// LoadFile upserts every row of a JSON seed file.
func (s *MemoryStore) LoadFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("store: read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return 0, fmt.Errorf("store: decode seed %s: %w", path, err)
	}
	for _, r := range seed.Statistics {
		s.Upsert(r)
	}
	for _, v := range seed.Videos {
		s.UpsertVideo(v)
	}
	return len(seed.Statistics), nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
