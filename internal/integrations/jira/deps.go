package jira

import (
	"worklogbot/internal/config"
	"worklogbot/internal/domain"
	"worklogbot/internal/httpx"
)

type Config = config.Config
type Worklog = domain.Worklog
type Window = domain.Window

var externalHTTPClient = httpx.ExternalHTTPClient()
