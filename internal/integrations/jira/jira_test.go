package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"worklogbot/internal/domain"
)

func testWindow() Window {
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	return domain.NewWindow(start, start.AddDate(0, 0, 6))
}

func worklogJSON(name, updated string, seconds int) map[string]any {
	return map[string]any{
		"author":           map[string]any{"displayName": name, "accountId": "acc-" + strings.ToLower(name)},
		"started":          updated,
		"updated":          updated,
		"timeSpentSeconds": seconds,
	}
}

func newJiraServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var searchStarts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bot@example.com" || pass != "jira-token" {
			t.Errorf("unexpected basic auth user=%q ok=%v", user, ok)
		}
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/rest/api/2/search":
			jql := r.URL.Query().Get("jql")
			if !strings.Contains(jql, `worklogDate >= "2024-05-06"`) || !strings.Contains(jql, `worklogDate <= "2024-05-12"`) {
				t.Errorf("unexpected jql: %s", jql)
			}
			if !strings.HasPrefix(jql, "(project = OPS) AND ") {
				t.Errorf("expected extra jql prefix, got %s", jql)
			}
			startAt := r.URL.Query().Get("startAt")
			searchStarts = append(searchStarts, startAt)

			var issues []map[string]any
			if startAt == "0" {
				issues = append(issues, map[string]any{
					"key": "OPS-1",
					"fields": map[string]any{
						"summary": "Fix login",
						"worklog": map[string]any{
							"startAt": 0, "maxResults": 20, "total": 2,
							"worklogs": []map[string]any{
								worklogJSON("Alice", "2024-05-07T10:00:00.000+0000", 7200),
								worklogJSON("Alice", "2024-05-01T10:00:00.000+0000", 3600),
							},
						},
					},
				})
			} else {
				issues = append(issues, map[string]any{
					"key": "OPS-2",
					"fields": map[string]any{
						"summary": "Upgrade database",
						"worklog": map[string]any{
							"startAt": 0, "maxResults": 1, "total": 2,
							"worklogs": []map[string]any{
								worklogJSON("Bob", "2024-05-08T10:00:00.000+0000", 1800),
							},
						},
					},
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"maxResults": 1, "total": 2, "issues": issues,
			})
		case r.URL.Path == "/rest/api/2/issue/OPS-2/worklog":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"startAt": 0, "maxResults": 100, "total": 2,
				"worklogs": []map[string]any{
					worklogJSON("Bob", "2024-05-08T10:00:00.000+0000", 1800),
					worklogJSON("Bob", "2024-05-14T09:00:00.000+0000", 5400),
				},
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &searchStarts
}

func testConfig(url string) Config {
	return Config{
		JiraURL:      url,
		JiraEmail:    "bot@example.com",
		JiraAPIToken: "jira-token",
		JiraJQL:      "project = OPS",
	}
}

func TestFetchWorklogsInRangeOnly(t *testing.T) {
	server, searchStarts := newJiraServer(t)

	logs, err := FetchWorklogs(context.Background(), testConfig(server.URL), testWindow(), false)
	if err != nil {
		t.Fatalf("FetchWorklogs failed: %v", err)
	}
	if got := strings.Join(*searchStarts, ","); got != "0,1" {
		t.Fatalf("expected paginated search startAt=0,1, got %s", got)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 in-range worklogs, got %d: %+v", len(logs), logs)
	}
	if logs[0].IssueKey != "OPS-1" || logs[0].User != "Alice" || logs[0].SpentHours != 2 {
		t.Fatalf("unexpected first worklog: %+v", logs[0])
	}
	if logs[1].IssueKey != "OPS-2" || logs[1].Summary != "Upgrade database" || logs[1].SpentHours != 0.5 {
		t.Fatalf("unexpected second worklog: %+v", logs[1])
	}
}

func TestFetchWorklogsIncludingOutOfRange(t *testing.T) {
	server, _ := newJiraServer(t)

	logs, err := FetchWorklogs(context.Background(), testConfig(server.URL), testWindow(), true)
	if err != nil {
		t.Fatalf("FetchWorklogs failed: %v", err)
	}
	if len(logs) != 4 {
		t.Fatalf("expected all 4 worklogs of matched issues, got %d", len(logs))
	}
	var total float64
	for _, l := range logs {
		total += l.SpentHours
	}
	if total != 5 {
		t.Fatalf("expected 5 total hours, got %v", total)
	}
}

func TestFetchWorklogsReturnsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["bad jql"]}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := FetchWorklogs(context.Background(), testConfig(server.URL), testWindow(), false)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "bad jql") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
}

func TestBuildJQLWithoutExtra(t *testing.T) {
	got := buildJQL("  ", testWindow())
	want := `worklogDate >= "2024-05-06" AND worklogDate <= "2024-05-12"`
	if got != want {
		t.Fatalf("buildJQL = %q, want %q", got, want)
	}
}

func TestConvertWorklogFallbacks(t *testing.T) {
	var item worklogItem
	item.Author.EmailAddress = "carol@example.com"
	item.Started = "2024-05-06T08:30:00.000+0900"
	item.TimeSpentSeconds = 900

	got := convertWorklog("OPS-3", "Docs", item, time.UTC)
	if got.User != "carol@example.com" {
		t.Fatalf("expected email fallback for user, got %q", got.User)
	}
	want := time.Date(2024, 5, 5, 23, 30, 0, 0, time.UTC)
	if !got.Updated.Equal(want) || got.Updated.Location() != time.UTC {
		t.Fatalf("expected started fallback converted to UTC %s, got %s", want, got.Updated)
	}
	if got.SpentHours != 0.25 {
		t.Fatalf("unexpected spent hours: %v", got.SpentHours)
	}
}

func TestParseJiraTime(t *testing.T) {
	if !parseJiraTime("garbage").IsZero() {
		t.Fatal("expected zero time for unparsable timestamp")
	}
	if parseJiraTime("2024-05-06T10:00:00Z").IsZero() {
		t.Fatal("expected RFC3339 fallback to parse")
	}
}

func TestFetchWorklogsPagesIssueWorklogs(t *testing.T) {
	var worklogStarts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rest/api/2/search":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"startAt": 0, "maxResults": 100, "total": 1,
				"issues": []map[string]any{{
					"key": "OPS-9",
					"fields": map[string]any{
						"summary": "Long migration",
						"worklog": map[string]any{
							"startAt": 0, "maxResults": 20, "total": 101,
							"worklogs": []map[string]any{worklogJSON("Alice", "2024-05-07T10:00:00.000+0000", 3600)},
						},
					},
				}},
			})
		case "/rest/api/2/issue/OPS-9/worklog":
			startAt := r.URL.Query().Get("startAt")
			worklogStarts = append(worklogStarts, startAt)
			count := 100
			if startAt != "0" {
				count = 1
			}
			items := make([]map[string]any, 0, count)
			for i := 0; i < count; i++ {
				items = append(items, worklogJSON(fmt.Sprintf("User%d", i%3), "2024-05-07T10:00:00.000+0000", 360))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"maxResults": 100, "total": 101, "worklogs": items,
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	logs, err := FetchWorklogs(context.Background(), testConfig(server.URL), testWindow(), false)
	if err != nil {
		t.Fatalf("FetchWorklogs failed: %v", err)
	}
	if got := strings.Join(worklogStarts, ","); got != "0,100" {
		t.Fatalf("expected worklog pages startAt=0,100, got %s", got)
	}
	if len(logs) != 101 {
		t.Fatalf("expected 101 worklogs across two pages, got %d", len(logs))
	}
}

func TestFetchWorklogsCloudSearchUsesPageToken(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/rest/api/3/search/jql" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Has("startAt") {
			t.Errorf("cloud search should not send startAt: %s", r.URL.RawQuery)
		}
		token := r.URL.Query().Get("nextPageToken")
		tokens = append(tokens, token)

		issue := func(key, user string) map[string]any {
			return map[string]any{
				"key": key,
				"fields": map[string]any{
					"summary": "Issue " + key,
					"worklog": map[string]any{
						"startAt": 0, "maxResults": 20, "total": 1,
						"worklogs": []map[string]any{worklogJSON(user, "2024-05-08T10:00:00.000+0000", 1800)},
					},
				},
			}
		}
		if token == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"issues": []map[string]any{issue("OPS-1", "Alice")}, "nextPageToken": "page-2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issues": []map[string]any{issue("OPS-2", "Bob")}, "isLast": true,
		})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.JiraSearchAPI = "v3"
	logs, err := FetchWorklogs(context.Background(), cfg, testWindow(), false)
	if err != nil {
		t.Fatalf("FetchWorklogs failed: %v", err)
	}
	if got := strings.Join(tokens, ","); got != ",page-2" {
		t.Fatalf("expected tokens \"\" then page-2, got %q", got)
	}
	if len(logs) != 2 || logs[0].IssueKey != "OPS-1" || logs[1].IssueKey != "OPS-2" {
		t.Fatalf("unexpected worklogs: %+v", logs)
	}
}

func TestConvertWorklogLogsUnparseableTime(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	var item worklogItem
	item.Author.DisplayName = "Dave"
	item.Updated = "yesterday"
	item.TimeSpentSeconds = 3600

	got := convertWorklog("OPS-4", "Broken", item, time.UTC)
	if !got.Updated.IsZero() {
		t.Fatalf("expected zero time, got %s", got.Updated)
	}
	out := buf.String()
	if !strings.Contains(out, "jira worklog time unparseable issue=OPS-4") || !strings.Contains(out, `updated="yesterday"`) {
		t.Fatalf("expected unparseable time to be logged, got %q", out)
	}
}
