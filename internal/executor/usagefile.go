package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oscarsaleta/PVMantz/internal/protocol"
)

// WriteUsageFile writes the per-task resource-usage record to
// <outDir>/<taskNumber>_mem.txt, gated on --create-memfiles. Formatting is
// deliberately plain key=value lines: prtusage is an external collaborator
// this is a minimal stand-in, not a report generator.
func WriteUsageFile(outDir string, rec protocol.UsageRecord) error {
	path := filepath.Join(outDir, fmt.Sprintf("%d_mem.txt", rec.TaskNumber))
	body := fmt.Sprintf(
		"task=%d\nuser_seconds=%.6f\nsys_seconds=%.6f\nmax_rss_kib=%d\ntimestamp=%s\n",
		rec.TaskNumber, rec.UserSeconds, rec.SysSeconds, rec.MaxRSSKiB, rec.Timestamp.Format(time.RFC3339),
	)
	return os.WriteFile(path, []byte(body), 0644)
}
