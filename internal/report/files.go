package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"worklogbot/internal/domain"
)

// OutputPrefix is shared by summary files and charts: 2024-05-06-2024-05-12.
func OutputPrefix(window domain.Window) string {
	return fmt.Sprintf("%s-%s", window.StartDate(), window.EndDate())
}

func WriteSummaryFile(content, outputDir string, window domain.Window) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := sanitizeFilename(OutputPrefix(window) + "_worklog_summary.txt")
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	return replacer.Replace(s)
}
