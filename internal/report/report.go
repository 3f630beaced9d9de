// Package report renders a dashboard view as a CSV or XLSX download.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/funnel-dash/internal/metrics"
)

const (
	SheetTrend   = "Trend"
	SheetTotals  = "Totals"
	SheetRegions = "Regions"
)

// table is one titled block of rows shared by both renderers.
type table struct {
	name   string
	header []string
	rows   [][]any
}

func tables(d metrics.Dashboard) []table {
	trend := table{name: SheetTrend, header: []string{"date", "label", "revenue", "calls", "shows"}}
	for _, p := range d.Summary.TrendSeries {
		trend.rows = append(trend.rows, []any{p.Day.Format("2006-01-02"), p.Date, p.Revenue.StringFixed(2), p.CallsBooked, p.Shows})
	}

	totals := table{name: SheetTotals, header: []string{"metric", "current", "previous", "change_pct", "is_positive"}}
	cur, prev := d.Summary.PeriodTotals, d.Summary.PreviousPeriod
	values := map[metrics.Metric][2]string{
		metrics.MetricRevenue:        {cur.TotalRevenue.StringFixed(2), prev.TotalRevenue.StringFixed(2)},
		metrics.MetricCalls:          {itoa(cur.TotalCalls), itoa(prev.TotalCalls)},
		metrics.MetricShows:          {itoa(cur.TotalShows), itoa(prev.TotalShows)},
		metrics.MetricViews:          {itoa(cur.TotalViews), itoa(prev.TotalViews)},
		metrics.MetricVisitors:       {itoa(cur.TotalWebsiteVisitors), itoa(prev.TotalWebsiteVisitors)},
		metrics.MetricConversionRate: {ftoa(cur.AvgConversionRate), ftoa(prev.AvgConversionRate)},
	}
	for _, m := range metrics.AllMetrics {
		delta := d.Deltas[m]
		v := values[m]
		totals.rows = append(totals.rows, []any{string(m), v[0], v[1], delta.Value, delta.IsPositive})
	}

	regions := table{name: SheetRegions, header: []string{"region", "visitors", "share_of_total_pct"}}
	for _, r := range d.Regions {
		regions.rows = append(regions.rows, []any{r.Region, r.Visitors, r.ShareOfTotal})
	}
	return []table{trend, totals, regions}
}

// WriteCSV writes the blocks one after another, each preceded by a "# name"
// line and separated by an empty record.
func WriteCSV(w io.Writer, d metrics.Dashboard) error {
	cw := csv.NewWriter(w)
	for i, t := range tables(d) {
		if i > 0 {
			if err := cw.Write([]string{""}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{"# " + t.name}); err != nil {
			return err
		}
		if err := cw.Write(t.header); err != nil {
			return err
		}
		for _, r := range t.rows {
			rec := make([]string, len(r))
			for j, v := range r {
				rec[j] = fmt.Sprint(v)
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes one sheet per block.
func WriteXLSX(w io.Writer, d metrics.Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, t := range tables(d) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(t.name); err != nil {
			return err
		}
		header := make([]any, len(t.header))
		for j, h := range t.header {
			header[j] = h
		}
		if err := f.SetSheetRow(t.name, "A1", &header); err != nil {
			return err
		}
		if err := f.SetRowStyle(t.name, 1, 1, bold); err != nil {
			return err
		}
		for j, r := range t.rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			row := r
			if err := f.SetSheetRow(t.name, cell, &row); err != nil {
				return err
			}
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

func itoa(n int64) string   { return strconv.FormatInt(n, 10) }
func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
