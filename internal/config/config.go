package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"worklogbot/internal/domain"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

type Config struct {
	JiraURL      string `yaml:"jira_url"`
	JiraEmail    string `yaml:"jira_email"`
	JiraAPIToken string `yaml:"jira_api_token"`
	JiraJQL      string `yaml:"jira_jql"`

	// JiraSearchAPI selects the issue search endpoint: "v2" for
	// /rest/api/2/search (Server, Data Center) or "v3" for the Cloud
	// /rest/api/3/search/jql endpoint.
	JiraSearchAPI string `yaml:"jira_search_api"`

	SlackWebhookURL          string `yaml:"slack_webhook_url"`
	EncryptedSlackWebhookURL string `yaml:"encrypted_slack_webhook_url"`
	SlackChannel             string `yaml:"slack_channel"`
	SlackUsername            string `yaml:"slack_username"`
	SlackBotToken            string `yaml:"slack_bot_token"`
	ChartChannelID           string `yaml:"chart_channel_id"`

	LLMDigestEnabled bool   `yaml:"llm_digest_enabled"`
	LLMModel         string `yaml:"llm_model"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`

	TopN                       int    `yaml:"top_n"`
	ChartTopN                  int    `yaml:"chart_top_n"`
	ReportPeriod               string `yaml:"report_period"`
	ReportOutputDir            string `yaml:"report_output_dir"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.JiraURL, "JIRA_URL")
	envOverride(&cfg.JiraEmail, "JIRA_EMAIL")
	envOverride(&cfg.JiraAPIToken, "JIRA_API_TOKEN")
	envOverrideAllowEmpty(&cfg.JiraJQL, "JIRA_JQL")
	envOverride(&cfg.JiraSearchAPI, "JIRA_SEARCH_API")
	envOverride(&cfg.SlackWebhookURL, "SLACK_WEBHOOK_URL")
	envOverride(&cfg.EncryptedSlackWebhookURL, "ENCRYPTED_SLACK_WEBHOOK_URL")
	envOverride(&cfg.SlackChannel, "SLACK_CHANNEL")
	envOverride(&cfg.SlackUsername, "SLACK_USERNAME")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ChartChannelID, "CHART_CHANNEL_ID")
	envOverrideBool(&cfg.LLMDigestEnabled, "LLM_DIGEST_ENABLED")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverrideInt(&cfg.TopN, "TOP_N")
	envOverrideInt(&cfg.ChartTopN, "CHART_TOP_N")
	envOverride(&cfg.ReportPeriod, "REPORT_PERIOD")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if cfg.JiraSearchAPI == "" {
		cfg.JiraSearchAPI = "v2"
	}
	if cfg.SlackUsername == "" {
		cfg.SlackUsername = "Worklog Summary"
	}
	if cfg.TopN == 0 {
		cfg.TopN = 10
	}
	if cfg.ChartTopN == 0 {
		cfg.ChartTopN = 20
	}
	if cfg.ReportPeriod == "" {
		cfg.ReportPeriod = domain.DefaultReportPeriod
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	jiraFields := map[string]string{
		"jira_url":       cfg.JiraURL,
		"jira_email":     cfg.JiraEmail,
		"jira_api_token": cfg.JiraAPIToken,
	}
	for name, val := range jiraFields {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (all of jira_url, jira_email, jira_api_token are required)", name)
		}
	}

	cfg.JiraSearchAPI = strings.ToLower(cfg.JiraSearchAPI)
	if cfg.JiraSearchAPI != "v2" && cfg.JiraSearchAPI != "v3" {
		log.Fatalf("invalid jira_search_api '%s': must be v2 or v3", cfg.JiraSearchAPI)
	}

	if cfg.LLMDigestEnabled && cfg.AnthropicAPIKey == "" {
		log.Fatalf("anthropic_api_key is required when llm_digest_enabled=true")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if _, err := domain.ParsePeriod(cfg.ReportPeriod); err != nil {
		log.Fatalf("invalid report_period '%s': %v", cfg.ReportPeriod, err)
	}
	if cfg.TopN < 1 {
		log.Fatalf("invalid top_n '%d': must be >= 1", cfg.TopN)
	}
	if cfg.ChartTopN < 1 {
		log.Fatalf("invalid chart_top_n '%d': must be >= 1", cfg.ChartTopN)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

// WebhookConfigured reports whether a chat webhook, plain or encrypted, is set.
func (c Config) WebhookConfigured() bool {
	return c.SlackWebhookURL != "" || c.EncryptedSlackWebhookURL != ""
}

func (c Config) ChartUploadConfigured() bool {
	return c.SlackBotToken != "" && c.ChartChannelID != ""
}

// RequireWebhook is checked by commands that post to chat; the chart and
// summary commands run without one.
func (c Config) RequireWebhook() error {
	if !c.WebhookConfigured() {
		return fmt.Errorf("neither slack_webhook_url nor encrypted_slack_webhook_url is set")
	}
	return nil
}
