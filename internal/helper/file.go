package helper

import (
	"os"
	"strings"

	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
)

// EnsureDir makes sure given directory exists
func EnsureDir(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Sugar().Errorf("failed to create dir %s: %v", dir, err)
	}
}

// SanitizeFilename makes a target or task name safe for use as filename
func SanitizeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "unknown"
	}
	r := strings.NewReplacer(
		"://", "_",
		":", "_",
		"/", "_",
		"?", "_",
		"&", "_",
		"=", "_",
		" ", "_",
	)
	return r.Replace(filename)
}
