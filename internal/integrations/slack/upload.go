package slackbot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/slack-go/slack"
)

// FileUploader is the part of *slack.Client used to share chart images.
type FileUploader interface {
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

func NewUploader(cfg Config) *slack.Client {
	return slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(externalHTTPClient))
}

// UploadFiles shares each file in channelID. It stops at the first failure
// and returns how many files were uploaded.
func UploadFiles(ctx context.Context, api FileUploader, channelID, comment string, paths []string) (int, error) {
	uploaded := 0
	for _, path := range paths {
		fi, err := os.Stat(path)
		if err != nil {
			return uploaded, fmt.Errorf("reading %s: %w", path, err)
		}
		if fi.Size() <= 0 {
			return uploaded, fmt.Errorf("file %s is empty", path)
		}

		_, err = api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			File:           path,
			FileSize:       int(fi.Size()),
			Filename:       filepath.Base(path),
			Channel:        channelID,
			Title:          filepath.Base(path),
			InitialComment: comment,
		})
		if err != nil {
			log.Printf("slack upload error file=%s channel=%s: %v", path, channelID, err)
			return uploaded, fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
		}
		log.Printf("slack upload file=%s channel=%s size=%d", filepath.Base(path), channelID, fi.Size())
		uploaded++
	}
	return uploaded, nil
}
