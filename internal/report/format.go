package report

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"worklogbot/internal/domain"
)

const (
	inRangeGlyph = "■"
	beforeGlyph  = "◁"
	afterGlyph   = "▷"
)

// FormatSpentTime renders hours followed by a bar of two glyphs per half hour.
func FormatSpentTime(hours float64) string {
	return fmt.Sprintf("%2.2f %s", hours, bar(inRangeGlyph, hours))
}

// FormatSpentTimeSplit renders a before/within/after breakdown on two lines:
// the numbers, then one bar per category on the same scale as FormatSpentTime.
func FormatSpentTimeSplit(s domain.CategorySplit) string {
	return fmt.Sprintf("%2.2f (before %s) + %2.2f (in range %s) + %2.2f (after %s)\n%s%s%s",
		s.Before, beforeGlyph, s.Within, inRangeGlyph, s.After, afterGlyph,
		bar(beforeGlyph, s.Before), bar(inRangeGlyph, s.Within), bar(afterGlyph, s.After),
	)
}

func bar(glyph string, hours float64) string {
	halfHours := int(hours * 2)
	if halfHours <= 0 {
		return ""
	}
	return strings.Repeat(glyph, 2*halfHours)
}

func ticketLabel(issueKey, summary, user string) string {
	return strings.Join([]string{issueKey, summary, user}, ", ")
}

// UserSummaryMessage lists every user with their total hours.
func UserSummaryMessage(totals []domain.UserTotal) string {
	return strings.Join(lo.Map(totals, func(t domain.UserTotal, _ int) string {
		return t.User + "\n" + FormatSpentTime(t.Hours)
	}), "\n")
}

func TopTicketsMessage(tickets []domain.TicketTotal) string {
	return strings.Join(lo.Map(tickets, func(t domain.TicketTotal, _ int) string {
		return ticketLabel(t.IssueKey, t.Summary, t.User) + "\n" + FormatSpentTime(t.Hours)
	}), "\n")
}

// AllRangeMessage lists tickets with the hours logged before, within and
// after the report window.
func AllRangeMessage(splits []domain.CategorySplit) string {
	return strings.Join(lo.Map(splits, func(s domain.CategorySplit, _ int) string {
		return ticketLabel(s.IssueKey, s.Summary, s.User) + "\n" + FormatSpentTimeSplit(s)
	}), "\n")
}
