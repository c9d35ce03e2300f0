package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
)

const pageSize = 100

// Jira renders timestamps like 2024-05-06T10:15:30.000+0900.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

type searchResponse struct {
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
	Total      int           `json:"total"`
	Issues     []issueResult `json:"issues"`
}

// jqlSearchResponse is the Jira Cloud /rest/api/3/search/jql page shape.
type jqlSearchResponse struct {
	Issues        []issueResult `json:"issues"`
	NextPageToken string        `json:"nextPageToken"`
	IsLast        bool          `json:"isLast"`
}

type issueResult struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string         `json:"summary"`
		Worklog worklogResults `json:"worklog"`
	} `json:"fields"`
}

type worklogResults struct {
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
	Total      int           `json:"total"`
	Worklogs   []worklogItem `json:"worklogs"`
}

type worklogItem struct {
	Author struct {
		AccountID    string `json:"accountId"`
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"author"`
	Started          string `json:"started"`
	Updated          string `json:"updated"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
}

// FetchWorklogs returns worklog records of every issue that has at least one
// worklog dated inside the window. With includeOutOfRange false only the
// worklogs updated inside the window are kept; with it true every worklog of
// those issues is returned so callers can see time logged around the window.
func FetchWorklogs(ctx context.Context, cfg Config, window Window, includeOutOfRange bool) ([]Worklog, error) {
	jql := buildJQL(cfg.JiraJQL, window)
	log.Printf("jira fetch start jql=%q include_out_of_range=%t", jql, includeOutOfRange)

	issues, err := searchIssues(ctx, cfg, jql)
	if err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}

	var all []Worklog
	for _, issue := range issues {
		items := issue.Fields.Worklog.Worklogs
		if issue.Fields.Worklog.Total > len(items) {
			items, err = fetchIssueWorklogs(ctx, cfg, issue.Key)
			if err != nil {
				return nil, fmt.Errorf("fetching worklogs of %s: %w", issue.Key, err)
			}
		}
		for _, item := range items {
			all = append(all, convertWorklog(issue.Key, issue.Fields.Summary, item, window.Location()))
		}
	}

	if !includeOutOfRange {
		all = lo.Filter(all, func(w Worklog, _ int) bool {
			return window.Contains(w.Updated)
		})
	}

	log.Printf("jira fetch done issues=%d worklogs=%d", len(issues), len(all))
	return all, nil
}

func buildJQL(extra string, window Window) string {
	dateClause := fmt.Sprintf(`worklogDate >= "%s" AND worklogDate <= "%s"`, window.StartDate(), window.EndDate())
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return dateClause
	}
	return fmt.Sprintf("(%s) AND %s", extra, dateClause)
}

func searchIssues(ctx context.Context, cfg Config, jql string) ([]issueResult, error) {
	if strings.EqualFold(cfg.JiraSearchAPI, "v3") {
		return searchIssuesJQL(ctx, cfg, jql)
	}

	var all []issueResult
	startAt := 0

	for {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("fields", "summary,worklog")
		query.Set("startAt", fmt.Sprint(startAt))
		query.Set("maxResults", fmt.Sprint(pageSize))
		apiURL := fmt.Sprintf("%s/rest/api/2/search?%s", strings.TrimRight(cfg.JiraURL, "/"), query.Encode())
		log.Printf("jira search startAt=%d", startAt)

		var page searchResponse
		if err := getJSON(ctx, cfg, apiURL, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Issues...)

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}
	return all, nil
}

// searchIssuesJQL pages the Jira Cloud search endpoint, which replaces
// startAt offsets with an opaque nextPageToken.
func searchIssuesJQL(ctx context.Context, cfg Config, jql string) ([]issueResult, error) {
	var all []issueResult
	token := ""

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("fields", "summary,worklog")
		query.Set("maxResults", fmt.Sprint(pageSize))
		if token != "" {
			query.Set("nextPageToken", token)
		}
		apiURL := fmt.Sprintf("%s/rest/api/3/search/jql?%s", strings.TrimRight(cfg.JiraURL, "/"), query.Encode())
		log.Printf("jira search page=%d api=v3", page)

		var resp jqlSearchResponse
		if err := getJSON(ctx, cfg, apiURL, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Issues...)

		if resp.IsLast || resp.NextPageToken == "" || len(resp.Issues) == 0 {
			break
		}
		token = resp.NextPageToken
	}
	return all, nil
}

func fetchIssueWorklogs(ctx context.Context, cfg Config, issueKey string) ([]worklogItem, error) {
	var all []worklogItem
	startAt := 0

	for {
		apiURL := fmt.Sprintf("%s/rest/api/2/issue/%s/worklog?startAt=%d&maxResults=%d",
			strings.TrimRight(cfg.JiraURL, "/"), url.PathEscape(issueKey), startAt, pageSize)

		var page worklogResults
		if err := getJSON(ctx, cfg, apiURL, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Worklogs...)

		startAt += len(page.Worklogs)
		if len(page.Worklogs) == 0 || startAt >= page.Total {
			break
		}
	}
	log.Printf("jira worklogs issue=%s count=%d", issueKey, len(all))
	return all, nil
}

func getJSON(ctx context.Context, cfg Config, apiURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(cfg.JiraEmail, cfg.JiraAPIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Jira API returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func convertWorklog(issueKey, summary string, item worklogItem, loc *time.Location) Worklog {
	updated := parseJiraTime(item.Updated)
	if updated.IsZero() {
		updated = parseJiraTime(item.Started)
	}
	if updated.IsZero() {
		log.Printf("jira worklog time unparseable issue=%s author=%q updated=%q started=%q", issueKey, item.Author.DisplayName, item.Updated, item.Started)
	}
	if !updated.IsZero() && loc != nil {
		updated = updated.In(loc)
	}

	user := item.Author.DisplayName
	if user == "" {
		user = item.Author.EmailAddress
	}
	if user == "" {
		user = item.Author.AccountID
	}

	return Worklog{
		IssueKey:   issueKey,
		Summary:    summary,
		User:       user,
		Updated:    updated,
		SpentHours: float64(item.TimeSpentSeconds) / 3600,
	}
}

func parseJiraTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(jiraTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
