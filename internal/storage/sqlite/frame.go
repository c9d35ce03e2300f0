// Package sqlite aggregates worklog records in a transient in-memory SQLite
// database. A Frame lives for a single run and is discarded afterwards.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"worklogbot/internal/domain"
)

type Frame struct {
	db     *sql.DB
	window domain.Window
}

// OpenFrame creates an empty in-memory table. Rows are categorized against
// window as they are loaded.
func OpenFrame(window domain.Window) (*Frame, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every pooled connection to :memory: would get its own database.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE worklogs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		issue_key     TEXT NOT NULL,
		summary       TEXT NOT NULL DEFAULT '',
		author        TEXT NOT NULL,
		updated       DATETIME,
		date_category INTEGER NOT NULL,
		spent_hours   REAL NOT NULL
	);
	CREATE INDEX idx_worklogs_issue ON worklogs(issue_key);
	CREATE INDEX idx_worklogs_author ON worklogs(author);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Frame{db: db, window: window}, nil
}

func (f *Frame) Close() error {
	return f.db.Close()
}

func (f *Frame) Window() domain.Window {
	return f.window
}

func (f *Frame) Load(logs []domain.Worklog) (int, error) {
	tx, err := f.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO worklogs (issue_key, summary, author, updated, date_category, spent_hours)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, w := range logs {
		_, err := stmt.Exec(
			w.IssueKey, w.Summary, w.User, w.Updated,
			int(f.window.Categorize(w.Updated)), w.SpentHours,
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting %s: %w", w.IssueKey, err)
		}
		inserted++
	}

	return inserted, tx.Commit()
}

func (f *Frame) Len() (int, error) {
	var count int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM worklogs`).Scan(&count)
	return count, err
}

// UserTotals sums hours per user, largest first.
func (f *Frame) UserTotals() ([]domain.UserTotal, error) {
	rows, err := f.db.Query(
		`SELECT author, SUM(spent_hours) AS hours
		 FROM worklogs
		 GROUP BY author
		 ORDER BY hours DESC, author ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []domain.UserTotal
	for rows.Next() {
		var t domain.UserTotal
		if err := rows.Scan(&t.User, &t.Hours); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TopTickets returns the n largest (issue, summary, user) totals.
func (f *Frame) TopTickets(n int) ([]domain.TicketTotal, error) {
	rows, err := f.db.Query(
		`SELECT issue_key, summary, author, SUM(spent_hours) AS hours
		 FROM worklogs
		 GROUP BY issue_key, summary, author
		 ORDER BY hours DESC, issue_key ASC, summary ASC, author ASC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, err
	}
	return scanTicketTotals(rows)
}

// TopIssueUserPairs returns the n largest (issue, user) totals. Summary is
// carried along for labelling.
func (f *Frame) TopIssueUserPairs(n int) ([]domain.TicketTotal, error) {
	rows, err := f.db.Query(
		`SELECT issue_key, MAX(summary), author, SUM(spent_hours) AS hours
		 FROM worklogs
		 GROUP BY issue_key, author
		 ORDER BY hours DESC, issue_key ASC, author ASC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, err
	}
	return scanTicketTotals(rows)
}

// TopIssuesByCategory restricts the frame to the n issues with the most
// hours overall and splits each (issue, summary, user) row into
// before/within/after hours. Rows are ordered by their total, largest first.
func (f *Frame) TopIssuesByCategory(n int) ([]domain.CategorySplit, error) {
	rows, err := f.db.Query(
		`WITH top_issues AS (
			SELECT issue_key
			FROM worklogs
			GROUP BY issue_key
			ORDER BY SUM(spent_hours) DESC, issue_key ASC
			LIMIT ?
		)
		SELECT w.issue_key, w.summary, w.author,
			SUM(CASE WHEN w.date_category = ? THEN w.spent_hours ELSE 0 END),
			SUM(CASE WHEN w.date_category = ? THEN w.spent_hours ELSE 0 END),
			SUM(CASE WHEN w.date_category = ? THEN w.spent_hours ELSE 0 END)
		FROM worklogs w
		JOIN top_issues t ON t.issue_key = w.issue_key
		GROUP BY w.issue_key, w.summary, w.author
		ORDER BY SUM(w.spent_hours) DESC, w.issue_key ASC, w.summary ASC, w.author ASC`,
		n, int(domain.Before), int(domain.Within), int(domain.After),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []domain.CategorySplit
	for rows.Next() {
		var s domain.CategorySplit
		if err := rows.Scan(&s.IssueKey, &s.Summary, &s.User, &s.Before, &s.Within, &s.After); err != nil {
			return nil, err
		}
		splits = append(splits, s)
	}
	return splits, rows.Err()
}

func scanTicketTotals(rows *sql.Rows) ([]domain.TicketTotal, error) {
	defer rows.Close()

	var totals []domain.TicketTotal
	for rows.Next() {
		var t domain.TicketTotal
		if err := rows.Scan(&t.IssueKey, &t.Summary, &t.User, &t.Hours); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
