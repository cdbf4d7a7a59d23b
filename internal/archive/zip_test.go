package archive

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/dunamismax/batchpix/internal/domain"
	"github.com/klauspost/compress/zip"
)

func completedJob(id, filename string, payload []byte) domain.Job {
	return domain.Job{
		ID:     id,
		Status: domain.JobStatusCompleted,
		Result: &domain.Result{Filename: filename, Bytes: payload},
	}
}

func TestWriteBundlesCompletedJobsOnly(t *testing.T) {
	jobs := []domain.Job{
		completedJob("a", "photo_min.jpg", []byte("first")),
		{ID: "b", Status: domain.JobStatusError},
		{ID: "c", Status: domain.JobStatusProcessing},
		completedJob("d", "scan_min.jpg", []byte("second")),
	}

	var buf bytes.Buffer
	if err := Write(&buf, jobs); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read archive back: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(zr.File))
	}

	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		got[f.Name] = string(data)
	}

	if got["photo_min.jpg"] != "first" || got["scan_min.jpg"] != "second" {
		t.Fatalf("unexpected archive contents: %v", got)
	}
}

func TestWriteRenamesDuplicateEntries(t *testing.T) {
	jobs := []domain.Job{
		completedJob("a", "image_resized.png", []byte("one")),
		completedJob("b", "image_resized.png", []byte("two")),
		completedJob("c", "image_resized.png", []byte("three")),
	}

	var buf bytes.Buffer
	if err := Write(&buf, jobs); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read archive back: %v", err)
	}

	want := []string{"image_resized.png", "image_resized_2.png", "image_resized_3.png"}
	if len(zr.File) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(zr.File))
	}
	for i, name := range want {
		if zr.File[i].Name != name {
			t.Fatalf("entry %d: expected %s, got %s", i, name, zr.File[i].Name)
		}
	}
}

func TestWriteRejectsEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []domain.Job{{ID: "a", Status: domain.JobStatusPending}})
	if !errors.Is(err, ErrNoCompletedJobs) {
		t.Fatalf("expected ErrNoCompletedJobs, got %v", err)
	}
}
