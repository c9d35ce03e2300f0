package app

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"worklogbot/internal/config"
	"worklogbot/internal/domain"
	"worklogbot/internal/httpx"
	"worklogbot/internal/integrations/jira"
	"worklogbot/internal/integrations/llm"
	slackbot "worklogbot/internal/integrations/slack"
	"worklogbot/internal/report"
	"worklogbot/internal/secrets"
)

// App holds the collaborators used by the CLI commands. Tests swap the
// network-facing ones for fakes.
type App struct {
	Config    config.Config
	Source    report.WorklogSource
	NewPoster func(ctx context.Context) (report.Poster, error)
	Digester  report.Digester
	Uploader  slackbot.FileUploader
	Now       func() time.Time
	Out       io.Writer
}

// jiraSource binds the Jira fetcher to a config.
type jiraSource struct {
	cfg config.Config
}

func (s jiraSource) FetchWorklogs(ctx context.Context, window domain.Window, includeOutOfRange bool) ([]domain.Worklog, error) {
	return jira.FetchWorklogs(ctx, s.cfg, window, includeOutOfRange)
}

// New wires the production collaborators for cfg.
func New(cfg config.Config) *App {
	app := &App{
		Config: cfg,
		Source: jiraSource{cfg: cfg},
		NewPoster: func(ctx context.Context) (report.Poster, error) {
			url, err := secrets.ResolveWebhookURL(ctx, cfg, secrets.DefaultDecrypter)
			if err != nil {
				return nil, err
			}
			return slackbot.NewWebhookPoster(cfg, url), nil
		},
		Now: time.Now,
		Out: os.Stdout,
	}
	if cfg.LLMDigestEnabled {
		app.Digester = llm.NewDigester(cfg)
	}
	if cfg.ChartUploadConfigured() {
		app.Uploader = slackbot.NewUploader(cfg)
	}
	return app
}

func Main() {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Jira=%s Timezone=%s ReportPeriod=%q TopN=%d ChartTopN=%d Webhook=%t ChartUpload=%t LLMDigest=%t ExternalHTTPTimeout=%s",
		cfg.JiraURL,
		cfg.Timezone,
		cfg.ReportPeriod,
		cfg.TopN,
		cfg.ChartTopN,
		cfg.WebhookConfigured(),
		cfg.ChartUploadConfigured(),
		cfg.LLMDigestEnabled,
		appliedHTTPTimeout,
	)

	if err := NewRootCmd(New(cfg)).Execute(); err != nil {
		log.Fatalf("worklogbot: %v", err)
	}
}
