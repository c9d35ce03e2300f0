package slackbot

import (
	"worklogbot/internal/config"
	"worklogbot/internal/httpx"
)

type Config = config.Config

var externalHTTPClient = httpx.ExternalHTTPClient()
