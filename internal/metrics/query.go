package metrics

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func csvSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = norm(p)
		if p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

// QueryVideos filters reports by ?from=&to= (YYYY-MM-DD, inclusive) and
// ?video=<id,...>, then pages with ?limit=&offset=. Order is preserved.
func QueryVideos(all []models.VideoRecord, v url.Values) []models.VideoRecord {
	from, _ := time.Parse("2006-01-02", v.Get("from"))
	to, _ := time.Parse("2006-01-02", v.Get("to"))
	ids := csvSet(v.Get("video"))
	limit := atoiDef(v.Get("limit"), 100)
	offset := atoiDef(v.Get("offset"), 0)

	rows := make([]models.VideoRecord, 0, len(all))
	for _, r := range all {
		day := dayUTC(r.ReportDate.Time)
		if !from.IsZero() && day.Before(from) {
			continue
		}
		if !to.IsZero() && day.After(to) {
			continue
		}
		if len(ids) > 0 && !hasVideo(r, ids) {
			continue
		}
		rows = append(rows, r)
	}
	limit, offset = clampLimitOffset(limit, offset, len(rows))
	return paginate(rows, limit, offset)
}

// FilterRegions keeps only the named regions (?region=Asia,Europe); an empty
// filter keeps everything.
func FilterRegions(shares []RegionShare, v url.Values) []RegionShare {
	set := csvSet(v.Get("region"))
	if len(set) == 0 {
		return shares
	}
	out := make([]RegionShare, 0, len(set))
	for _, s := range shares {
		if _, ok := set[norm(s.Region)]; ok {
			out = append(out, s)
		}
	}
	return out
}

func hasVideo(r models.VideoRecord, ids map[string]struct{}) bool {
	for _, rv := range r.Ranked() {
		if _, ok := ids[norm(rv.VideoID)]; ok {
			return true
		}
	}
	return false
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
