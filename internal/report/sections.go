package report

import (
	"context"
	"fmt"
	"log"
	"strings"

	"worklogbot/internal/domain"
	"worklogbot/internal/storage/sqlite"
)

// WorklogSource fetches worklog records for a window. With includeOutOfRange
// it returns every worklog of the issues active in the window.
type WorklogSource interface {
	FetchWorklogs(ctx context.Context, window domain.Window, includeOutOfRange bool) ([]domain.Worklog, error)
}

type Sections struct {
	Window         domain.Window
	TopN           int
	Records        int
	AllRecords     int
	UserTotals     []domain.UserTotal
	TopTickets     []domain.TicketTotal
	AllRangeSplits []domain.CategorySplit
}

func (s Sections) Empty() bool {
	return s.Records == 0
}

// Messages returns the chat messages in posting order. Empty ones are kept so
// callers can log what they skip.
func (s Sections) Messages() []string {
	return []string{
		UserSummaryMessage(s.UserTotals),
		TopTicketsMessage(s.TopTickets),
		AllRangeMessage(s.AllRangeSplits),
	}
}

// Text renders all sections as one plain-text document.
func (s Sections) Text() string {
	titles := []string{
		"Spent hours per user",
		fmt.Sprintf("Top %d tickets", s.TopN),
		fmt.Sprintf("Top %d tickets including out of range worklogs", s.TopN),
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Worklog summary %s\n", s.Window))
	for i, msg := range s.Messages() {
		b.WriteString("\n## " + titles[i] + "\n")
		if msg == "" {
			b.WriteString("(none)\n")
			continue
		}
		b.WriteString(msg + "\n")
	}
	return b.String()
}

// BuildSections fetches the window's worklogs twice (in range only, then
// including out of range worklogs) and aggregates them.
func BuildSections(ctx context.Context, src WorklogSource, window domain.Window, topN int) (Sections, error) {
	sections, err := buildInRange(ctx, src, window, topN)
	if err != nil {
		return sections, err
	}
	err = sections.addAllRange(ctx, src)
	return sections, err
}

// buildInRange fills the per-user and top ticket sections from worklogs
// updated inside the window.
func buildInRange(ctx context.Context, src WorklogSource, window domain.Window, topN int) (Sections, error) {
	sections := Sections{Window: window, TopN: topN}

	logs, err := src.FetchWorklogs(ctx, window, false)
	if err != nil {
		return sections, fmt.Errorf("fetching worklogs: %w", err)
	}
	sections.Records = len(logs)
	log.Printf("report worklogs window=%s records=%d", window, len(logs))

	frame, err := loadFrame(window, logs)
	if err != nil {
		return sections, err
	}
	defer frame.Close()

	if sections.UserTotals, err = frame.UserTotals(); err != nil {
		return sections, fmt.Errorf("aggregating user totals: %w", err)
	}
	if sections.TopTickets, err = frame.TopTickets(topN); err != nil {
		return sections, fmt.Errorf("aggregating top tickets: %w", err)
	}
	return sections, nil
}

// addAllRange fills the before/within/after breakdown from every worklog of
// the issues active in the window.
func (s *Sections) addAllRange(ctx context.Context, src WorklogSource) error {
	allLogs, err := src.FetchWorklogs(ctx, s.Window, true)
	if err != nil {
		return fmt.Errorf("fetching all-range worklogs: %w", err)
	}
	s.AllRecords = len(allLogs)
	log.Printf("report all-range worklogs window=%s records=%d", s.Window, len(allLogs))

	frame, err := loadFrame(s.Window, allLogs)
	if err != nil {
		return err
	}
	defer frame.Close()

	if s.AllRangeSplits, err = frame.TopIssuesByCategory(s.TopN); err != nil {
		return fmt.Errorf("aggregating all-range tickets: %w", err)
	}
	return nil
}

func loadFrame(window domain.Window, logs []domain.Worklog) (*sqlite.Frame, error) {
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
