package metrics

import (
	"net/url"
	"testing"

	"github.com/AngelCh415/funnel-dash/internal/models"
)

func videoReport(id, date, videoID string) models.VideoRecord {
	return models.VideoRecord{
		ID:         id,
		ReportDate: day(date),
		TopVideos:  models.TopVideos{VideoOne: &models.VideoSlot{VideoID: videoID}},
	}
}

func TestQueryVideos(t *testing.T) {
	all := []models.VideoRecord{
		videoReport("3", "2025-06-20", "JFRmgIGVuMY"),
		videoReport("2", "2025-06-13", "abc"),
		videoReport("1", "2025-06-06", "xyz"),
	}

	got := QueryVideos(all, url.Values{"from": {"2025-06-10"}})
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Fatalf("from filter: %+v", got)
	}

	got = QueryVideos(all, url.Values{"video": {" jfrmgigvumy ,nope"}})
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("video filter: %+v", got)
	}

	got = QueryVideos(all, url.Values{"limit": {"1"}, "offset": {"1"}})
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("paging: %+v", got)
	}

	got = QueryVideos(all, url.Values{"offset": {"10"}})
	if len(got) != 0 {
		t.Fatalf("offset past end: %+v", got)
	}
}

func TestFilterRegions(t *testing.T) {
	shares := RegionBreakdown(map[string]int64{"Asia": 1, "Europe": 2, "Middle East": 3})
	got := FilterRegions(shares, url.Values{"region": {"middle east,asia"}})
	if len(got) != 2 || got[0].Region != "Middle East" || got[1].Region != "Asia" {
		t.Fatalf("got %+v", got)
	}
	if len(FilterRegions(shares, url.Values{})) != 3 {
		t.Fatal("empty filter should keep all")
	}
}
