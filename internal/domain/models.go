package domain

import "time"

// Worklog is one unit of time a user logged on an issue.
type Worklog struct {
	IssueKey   string
	Summary    string
	User       string    // author display name
	Updated    time.Time // worklog updated timestamp, drives the date category
	SpentHours float64
}

// UserTotal is the summed spent hours of one user.
type UserTotal struct {
	User  string
	Hours float64
}

// TicketTotal is the summed spent hours of one user on one issue.
type TicketTotal struct {
	IssueKey string
	Summary  string
	User     string
	Hours    float64
}

// CategorySplit holds the hours of one (issue, summary, user) row split by
// date category relative to the report window.
type CategorySplit struct {
	IssueKey string
	Summary  string
	User     string
	Before   float64
	Within   float64
	After    float64
}

// Total is the row's hours across all three categories.
func (s CategorySplit) Total() float64 {
	return s.Before + s.Within + s.After
}
