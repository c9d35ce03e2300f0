package llm

import (
	"worklogbot/internal/config"
	"worklogbot/internal/httpx"
	"worklogbot/internal/report"
)

type Config = config.Config
type Sections = report.Sections

var externalHTTPClient = httpx.ExternalHTTPClient()
