// Package archive bundles the completed outputs of a batch into a single
// zip download.
package archive

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dunamismax/batchpix/internal/domain"
	"github.com/klauspost/compress/zip"
)

// ErrNoCompletedJobs is returned when the batch holds nothing to bundle.
var ErrNoCompletedJobs = errors.New("no completed jobs to archive")

// Write streams a zip of every completed job's output to w. Pending,
// processing and failed jobs are skipped. Duplicate output filenames get a
// numeric suffix so no entry silently overwrites another.
func Write(w io.Writer, jobs []domain.Job) error {
	zw := zip.NewWriter(w)
	now := time.Now().UTC()
	seen := make(map[string]int)
	written := 0

	for _, job := range jobs {
		if job.Status != domain.JobStatusCompleted || job.Result == nil {
			continue
		}

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     uniqueName(seen, job.Result.Filename),
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("create zip entry for job %s: %w", job.ID, err)
		}
		if _, err := entry.Write(job.Result.Bytes); err != nil {
			return fmt.Errorf("write zip entry for job %s: %w", job.ID, err)
		}
		written++
	}

	if written == 0 {
		_ = zw.Close()
		return ErrNoCompletedJobs
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

func uniqueName(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}

	ext := ""
	base := name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		base, ext = name[:i], name[i:]
	}
	return fmt.Sprintf("%s_%d%s", base, n+1, ext)
}
