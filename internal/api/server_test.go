package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/dunamismax/batchpix/internal/pipeline"
	"github.com/dunamismax/batchpix/internal/preview"
	"github.com/dunamismax/batchpix/internal/scheduler"
	"github.com/klauspost/compress/zip"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := log.New(io.Discard, "", 0)
	previews := preview.NewMemoryStore()
	sched := scheduler.New(logger, pipeline.NewExecutor(previews), previews, scheduler.Options{})
	sched.Start(ctx)

	server := httptest.NewServer(NewServer(logger, sched, Options{}).Handler())
	t.Cleanup(server.Close)
	return server
}

func intakeBatch(t *testing.T, server *httptest.Server, settings string, files map[string][]byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("settings", settings); err != nil {
		t.Fatalf("write settings field: %v", err)
	}
	for name, data := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		header.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, server.URL+"/v1/batch", &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post batch: %v", err)
	}
	return resp
}

func waitForBatch(t *testing.T, server *httptest.Server, status string) []map[string]any {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(server.URL + "/v1/jobs")
		if err != nil {
			t.Fatalf("list jobs: %v", err)
		}
		var payload struct {
			Jobs []map[string]any `json:"jobs"`
		}
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode job list: %v", err)
		}

		settled := len(payload.Jobs) > 0
		for _, job := range payload.Jobs {
			if job["status"] != status {
				settled = false
				break
			}
		}
		if settled {
			return payload.Jobs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for batch status %s", status)
	return nil
}

func TestBatchLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)

	resp := intakeBatch(t, server, `{"tool":"resize","format":"png","resize":{"mode":"percentage","percentage":50}}`, map[string][]byte{
		"one.png": buildAPITestPNG(t, 80, 40),
		"two.png": buildAPITestPNG(t, 60, 20),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 from intake, got %d", resp.StatusCode)
	}

	jobs := waitForBatch(t, server, "completed")
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	jobID, _ := jobs[0]["id"].(string)
	if jobID == "" {
		t.Fatal("job listing is missing ids")
	}

	result, err := http.Get(server.URL + "/v1/jobs/" + jobID + "/result")
	if err != nil {
		t.Fatalf("download result: %v", err)
	}
	defer result.Body.Close()
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from result download, got %d", result.StatusCode)
	}
	if ct := result.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png result, got %s", ct)
	}
	img, err := png.Decode(result.Body)
	if err != nil {
		t.Fatalf("decode downloaded result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 40 || bounds.Dy() != 20 {
		t.Fatalf("expected 40x20 output, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestArchiveBundlesBatchOutputs(t *testing.T) {
	server := newTestServer(t)

	resp := intakeBatch(t, server, `{"tool":"convert","format":"png"}`, map[string][]byte{
		"a.png": buildAPITestPNG(t, 10, 10),
		"b.png": buildAPITestPNG(t, 12, 12),
	})
	resp.Body.Close()
	waitForBatch(t, server, "completed")

	archiveResp, err := http.Get(server.URL + "/v1/batch/archive")
	if err != nil {
		t.Fatalf("download archive: %v", err)
	}
	defer archiveResp.Body.Close()
	if archiveResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from archive, got %d", archiveResp.StatusCode)
	}

	data, err := io.ReadAll(archiveResp.Body)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 archive entries, got %d", len(zr.File))
	}
}

func TestArchiveWithoutCompletedJobsConflicts(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/v1/batch/archive")
	if err != nil {
		t.Fatalf("download archive: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for empty batch, got %d", resp.StatusCode)
	}
}

func TestIntakeRejectsInvalidSettings(t *testing.T) {
	server := newTestServer(t)

	resp := intakeBatch(t, server, `{"tool":"resize","format":"png","resize":{"mode":"percentage","percentage":0}}`, map[string][]byte{
		"one.png": buildAPITestPNG(t, 10, 10),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid settings, got %d", resp.StatusCode)
	}
}

func TestUpdateSettingsValidates(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, server.URL+"/v1/settings", bytes.NewBufferString(`{"tool":"rotate","format":"png","rotate":{"angle":45}}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put settings: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported angle, got %d", resp.StatusCode)
	}
}

func TestResetClearsBatch(t *testing.T) {
	server := newTestServer(t)

	resp := intakeBatch(t, server, `{"tool":"convert","format":"png"}`, map[string][]byte{
		"a.png": buildAPITestPNG(t, 10, 10),
	})
	resp.Body.Close()
	waitForBatch(t, server, "completed")

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/v1/batch", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	deleteResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete batch: %v", err)
	}
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from delete, got %d", deleteResp.StatusCode)
	}

	listResp, err := http.Get(server.URL + "/v1/jobs")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	defer listResp.Body.Close()
	var payload struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode job list: %v", err)
	}
	if len(payload.Jobs) != 0 {
		t.Fatalf("expected empty batch after delete, got %d jobs", len(payload.Jobs))
	}
}

func buildAPITestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: 120, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
