package report

import (
	"context"
	"fmt"
	"log"
	"strings"

	"worklogbot/internal/domain"
)

type Poster interface {
	Post(ctx context.Context, text string) error
}

// Digester writes a short narrative of the aggregated sections.
type Digester interface {
	Digest(ctx context.Context, s Sections) (string, error)
}

// NotifyResult tracks what a notification run did.
type NotifyResult struct {
	Sections Sections
	Posted   int
	Skipped  int
	Warnings []string
}

// Notify posts each non-empty message in order: per-user totals, top
// tickets, top tickets with out of range hours, and the digest when a
// digester is given. The first two are posted before the all-range fetch so
// a failure there still leaves them in the channel. A failed post aborts the
// run.
func Notify(ctx context.Context, src WorklogSource, poster Poster, digester Digester, window domain.Window, topN int) (NotifyResult, error) {
	var result NotifyResult

	sections, err := buildInRange(ctx, src, window, topN)
	result.Sections = sections
	if err != nil {
		return result, err
	}
	if err := result.post(ctx, poster, UserSummaryMessage(sections.UserTotals)); err != nil {
		return result, err
	}
	if err := result.post(ctx, poster, TopTicketsMessage(sections.TopTickets)); err != nil {
		return result, err
	}

	err = sections.addAllRange(ctx, src)
	result.Sections = sections
	if err != nil {
		return result, err
	}
	if err := result.post(ctx, poster, AllRangeMessage(sections.AllRangeSplits)); err != nil {
		return result, err
	}

	if digester == nil || sections.Empty() {
		return result, nil
	}
	digest, err := digester.Digest(ctx, sections)
	if err != nil {
		log.Printf("notify digest error (non-fatal): %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("digest: %v", err))
		return result, nil
	}
	err = result.post(ctx, poster, digest)
	return result, err
}

func (r *NotifyResult) post(ctx context.Context, poster Poster, msg string) error {
	index := r.Posted + r.Skipped + 1
	if strings.TrimSpace(msg) == "" {
		log.Printf("notify skipped empty message index=%d", index)
		r.Skipped++
		return nil
	}
	if err := poster.Post(ctx, msg); err != nil {
		return fmt.Errorf("posting message %d: %w", index, err)
	}
	r.Posted++
	return nil
}

// FormatNotifySummary returns a one-line human-readable summary of a run.
func FormatNotifySummary(result NotifyResult) string {
	s := result.Sections
	if s.Empty() {
		return fmt.Sprintf("No worklogs between %s and %s.", s.Window.StartDate(), s.Window.EndDate())
	}
	msg := fmt.Sprintf("Summarized %d worklogs (%d including out of range) for %s: %d users, posted %d messages",
		s.Records, s.AllRecords, s.Window, len(s.UserTotals), result.Posted)
	if result.Skipped > 0 {
		msg += fmt.Sprintf(", skipped %d empty", result.Skipped)
	}
	if len(result.Warnings) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Warnings, "\n"))
	}
	return msg
}
