// Package chart renders worklog aggregates as PNG bar charts.
package chart

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"worklogbot/internal/domain"
	"worklogbot/internal/report"
	"worklogbot/internal/storage/sqlite"
)

const (
	chartWidth  = 1200
	chartHeight = 800

	stackedBarSpacing = 10
)

var categoryColors = map[domain.DateCategory]drawing.Color{
	domain.Before: drawing.ColorFromHex("9e9e9e"),
	domain.Within: drawing.ColorFromHex("1f77b4"),
	domain.After:  drawing.ColorFromHex("ff7f0e"),
}

// Result lists the files written by Render. Files is empty when the window
// has no worklogs.
type Result struct {
	Files   []string
	Records int
}

// Render writes the three charts for window into outputDir. An empty window
// is reported on out and writes nothing.
func Render(ctx context.Context, src report.WorklogSource, window domain.Window, topN int, outputDir string, out io.Writer) (Result, error) {
	var result Result

	logs, err := src.FetchWorklogs(ctx, window, false)
	if err != nil {
		return result, fmt.Errorf("fetching worklogs: %w", err)
	}
	result.Records = len(logs)
	if len(logs) == 0 {
		fmt.Fprintf(out, "No worklogs between %s and %s.\n", window.StartDate(), window.EndDate())
		return result, nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return result, err
	}
	prefix := report.OutputPrefix(window)

	frame, err := openFrame(window, logs)
	if err != nil {
		return result, err
	}
	defer frame.Close()

	users, err := frame.UserTotals()
	if err != nil {
		return result, fmt.Errorf("aggregating user totals: %w", err)
	}
	path := filepath.Join(outputDir, prefix+"_worklog_summary.png")
	title := fmt.Sprintf("Spent hours on tickets between %s and %s", window.StartDate(), window.EndDate())
	userBars := lo.Map(users, func(u domain.UserTotal, _ int) gochart.Value {
		return gochart.Value{Label: u.User, Value: u.Hours}
	})
	if err := writeBarChart(path, title, userBars); err != nil {
		return result, err
	}
	result.Files = append(result.Files, path)

	pairs, err := frame.TopIssueUserPairs(topN)
	if err != nil {
		return result, fmt.Errorf("aggregating top tickets: %w", err)
	}
	path = filepath.Join(outputDir, fmt.Sprintf("%s_top%d_taking_time.png", prefix, topN))
	title = fmt.Sprintf("Top %d taking time tickets between %s and %s", topN, window.StartDate(), window.EndDate())
	pairBars := lo.Map(pairs, func(p domain.TicketTotal, _ int) gochart.Value {
		return gochart.Value{Label: pairLabel(p.IssueKey, p.User), Value: p.Hours}
	})
	if err := writeBarChart(path, title, pairBars); err != nil {
		return result, err
	}
	result.Files = append(result.Files, path)

	allLogs, err := src.FetchWorklogs(ctx, window, true)
	if err != nil {
		return result, fmt.Errorf("fetching all-range worklogs: %w", err)
	}
	allFrame, err := openFrame(window, allLogs)
	if err != nil {
		return result, err
	}
	defer allFrame.Close()

	splits, err := allFrame.TopIssuesByCategory(topN)
	if err != nil {
		return result, fmt.Errorf("aggregating all-range tickets: %w", err)
	}
	path = filepath.Join(outputDir, fmt.Sprintf("%s_top%d_taking_time_with_out_of_date_range_work.png", prefix, topN))
	title = fmt.Sprintf("Top %d taking time tickets between %s and %s (includes out of date range worklogs)", topN, window.StartDate(), window.EndDate())
	written, err := writeStackedChart(path, title, window, splits)
	if err != nil {
		return result, err
	}
	if written {
		result.Files = append(result.Files, path)
	}

	log.Printf("chart rendered window=%s files=%d records=%d", window, len(result.Files), len(logs))
	return result, nil
}

func openFrame(window domain.Window, logs []domain.Worklog) (*sqlite.Frame, error) {
	frame, err := sqlite.OpenFrame(window)
	if err != nil {
		return nil, fmt.Errorf("opening aggregation frame: %w", err)
	}
	if _, err := frame.Load(logs); err != nil {
		frame.Close()
		return nil, fmt.Errorf("loading worklogs: %w", err)
	}
	return frame, nil
}

func pairLabel(issueKey, user string) string {
	return fmt.Sprintf("%s, %s", issueKey, user)
}

func writeBarChart(path, title string, bars []gochart.Value) error {
	maxHours := lo.MaxBy(bars, func(a, b gochart.Value) bool { return a.Value > b.Value }).Value
	if maxHours <= 0 {
		maxHours = 1
	}
	graph := gochart.BarChart{
		Title: title,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Bottom: 120},
		},
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: barWidth(len(bars)),
		XAxis:    gochart.Style{TextRotationDegrees: 45},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: maxHours * 1.1},
		},
		Bars: bars,
	}
	return renderTo(path, func(f *os.File) error {
		return graph.Render(gochart.PNG, f)
	})
}

func writeStackedChart(path, title string, window domain.Window, splits []domain.CategorySplit) (bool, error) {
	bars := make([]gochart.StackedBar, 0, len(splits))
	for _, s := range splits {
		var values []gochart.Value
		for _, seg := range []struct {
			cat   domain.DateCategory
			hours float64
		}{
			{domain.Before, s.Before},
			{domain.Within, s.Within},
			{domain.After, s.After},
		} {
			if seg.hours <= 0 {
				continue
			}
			values = append(values, gochart.Value{
				Label: seg.cat.Label(window),
				Value: seg.hours,
				Style: gochart.Style{
					FillColor:   categoryColors[seg.cat],
					StrokeColor: categoryColors[seg.cat],
				},
			})
		}
		if len(values) == 0 {
			continue
		}
		bars = append(bars, gochart.StackedBar{Name: pairLabel(s.IssueKey, s.User), Values: values})
	}
	for i := range bars {
		bars[i].Width = stackedBarWidth(len(bars))
	}
	if len(bars) == 0 {
		log.Printf("chart skip stacked chart path=%s reason=no_hours", path)
		return false, nil
	}

	graph := gochart.StackedBarChart{
		Title: title,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Bottom: 120},
		},
		Width:      chartWidth,
		Height:     chartHeight,
		BarSpacing: stackedBarSpacing,
		XAxis:      gochart.Style{TextRotationDegrees: 45},
		Bars:       bars,
	}
	err := renderTo(path, func(f *os.File) error {
		return graph.Render(gochart.PNG, f)
	})
	return err == nil, err
}

func barWidth(n int) int {
	if n <= 0 {
		return 40
	}
	w := (chartWidth - 200) / n / 2
	return max(8, min(w, 60))
}

// stackedBarWidth fits n bars and their spacing into the plot area.
func stackedBarWidth(n int) int {
	w := (chartWidth-200)/max(n, 1) - stackedBarSpacing
	return max(4, min(w, 60))
}

func renderTo(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
