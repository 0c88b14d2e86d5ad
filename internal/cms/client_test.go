package cms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/concordia/internal/cache"
	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/worker"
)

func testTarget() model.TargetConfig {
	return model.TargetConfig{
		Section:     "reports",
		RecordsPath: "/api/reports",
		UploadPath:  "/api/reports/upload-file",
		TitleField:  "title",
		IDField:     "recordId",
		FileField:   "file",
	}
}

func newTestClient(serverURL string, opts Options) *Client {
	return NewClient(model.CMSConfig{
		BaseURL:   serverURL + "/",
		Timeout:   5 * time.Second,
		UserAgent: "concordia-test",
		Token:     "secret",
	}, testTarget(), opts)
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestRecords_Envelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/reports" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "concordia-test" {
			t.Errorf("unexpected User-Agent %q", got)
		}
		_, _ = fmt.Fprint(w, `{"success":true,"data":[
			{"_id":"r1","title":"Asia Fintech Outlook - Full Report"},
			{"id":42,"title":"Europe Fintech Outlook"},
			{"_id":{"$oid":"65f0"},"title":"Mongo Style"},
			{"title":"No Id"}
		]}`)
	}))
	defer server.Close()

	records, err := newTestClient(server.URL, Options{}).Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	want := []model.CanonicalRecord{
		{ID: "r1", Title: "Asia Fintech Outlook - Full Report"},
		{ID: "42", Title: "Europe Fintech Outlook"},
		{ID: "65f0", Title: "Mongo Style"},
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], records[i])
		}
	}
}

func TestRecords_BareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `[{"id":"b1","blogName":"Ignored","title":"Hello"}]`)
	}))
	defer server.Close()

	records, err := newTestClient(server.URL, Options{}).Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "b1" || records[0].Title != "Hello" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestRecords_ServerReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"success":false,"message":"db offline"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{}).Records(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRecords_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `[{"id":"r1","title":"A"}]`)
	}))
	defer server.Close()

	records, err := newTestClient(server.URL, Options{}).Records(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestRecords_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{}).Records(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestRecords_AllRetriesExhausted(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, Options{}).Records(context.Background())
	if err == nil {
		t.Fatal("expected error after all retries exhausted")
	}
	if attempts.Load() != recordsMaxAttempts {
		t.Errorf("expected %d attempts, got %d", recordsMaxAttempts, attempts.Load())
	}
}

func TestRecords_SnapshotCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, `[{"id":"r1","title":"A"}]`)
	}))
	defer server.Close()

	snaps := cache.NewSnapshots(cache.NewMemoryStore(time.Minute, time.Minute), time.Minute)
	client := newTestClient(server.URL, Options{Snapshots: snaps})

	for i := 0; i < 3; i++ {
		if _, err := client.Records(context.Background()); err != nil {
			t.Fatalf("Records failed: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 request with caching, got %d", hits.Load())
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &StatusError{Code: 503, Status: "503 Service Unavailable"}, true},
		{"500", &StatusError{Code: 500, Status: "500 Internal Server Error"}, true},
		{"429", &StatusError{Code: 429, Status: "429 Too Many Requests"}, true},
		{"404", &StatusError{Code: 404, Status: "404 Not Found"}, false},
		{"401", &StatusError{Code: 401, Status: "401 Unauthorized"}, false},
		{"wrapped 502", fmt.Errorf("fetch: %w", &StatusError{Code: 502, Status: "502 Bad Gateway"}), true},
		{"refused", errors.New("fetch: connection refused"), true},
		{"reset", errors.New("fetch: connection reset by peer"), true},
		{"decode", errors.New("decode records: expected an array"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func writeTempFile(t *testing.T, name, content string) model.CandidateFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return model.CandidateFile{UID: "u1", OriginalName: name, DisplayName: name, Path: path, Size: int64(len(content))}
}

func TestUpload_Multipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/reports/upload-file" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got := r.FormValue("recordId"); got != "r1" {
			t.Errorf("expected recordId r1, got %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer func() { _ = f.Close() }()
		data, _ := io.ReadAll(f)
		if string(data) != "%PDF-1.7 body" {
			t.Errorf("unexpected file body %q", data)
		}
		if hdr.Filename != "asia-fintech-outlook.pdf" {
			t.Errorf("unexpected filename %q", hdr.Filename)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("unexpected part content type %q", ct)
		}
		_, _ = fmt.Fprint(w, `{"success":true,"message":"ok"}`)
	}))
	defer server.Close()

	file := writeTempFile(t, "asia-fintech-outlook.pdf", "%PDF-1.7 body")
	client := newTestClient(server.URL, Options{Limiter: worker.NewLimiter(0, 1)})

	if err := client.Upload(context.Background(), "r1", file); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
}

func TestUpload_StructuredRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = fmt.Fprint(w, `{"success":false,"message":"validation failed","errors":["file too large",{"message":"bad type"}]}`)
	}))
	defer server.Close()

	file := writeTempFile(t, "a.pdf", "x")
	err := newTestClient(server.URL, Options{}).Upload(context.Background(), "r1", file)

	var uerr *UploadError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UploadError, got %v", err)
	}
	if uerr.StatusCode != http.StatusUnprocessableEntity || uerr.Message != "validation failed" {
		t.Errorf("unexpected error: %+v", uerr)
	}
	if len(uerr.Errors) != 2 || uerr.Errors[0] != "file too large" || uerr.Errors[1] != "bad type" {
		t.Errorf("unexpected per-item errors: %v", uerr.Errors)
	}
}

func TestUpload_SuccessFalseOn200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = fmt.Fprint(w, `{"success":false,"message":"record not found"}`)
	}))
	defer server.Close()

	file := writeTempFile(t, "a.pdf", "x")
	err := newTestClient(server.URL, Options{}).Upload(context.Background(), "missing", file)
	if err == nil || err.Error() != "record not found (status 200)" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", Options{})
	err := client.Upload(context.Background(), "r1", model.CandidateFile{OriginalName: "gone.pdf", Path: "/nonexistent/gone.pdf"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseUploadResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"ok json", 200, `{"success":true}`, ""},
		{"ok no success field", 201, `{"message":"stored"}`, ""},
		{"ok non-json", 200, `stored`, ""},
		{"500 empty", 500, ``, "upload failed (status 500)"},
		{"500 text", 500, `boom`, "boom (status 500)"},
		{"400 error field", 400, `{"error":"missing recordId"}`, "missing recordId (status 400)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseUploadResponse(tt.status, []byte(tt.body))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewProxyFunc(t *testing.T) {
	fn := NewProxyFunc("http://proxy:8080", "http://secure-proxy:8443")

	req := httptest.NewRequest(http.MethodGet, "https://cms.example.com", nil)
	u, err := fn(req)
	if err != nil || u.Host != "secure-proxy:8443" {
		t.Errorf("expected https proxy, got %v (%v)", u, err)
	}

	req = httptest.NewRequest(http.MethodGet, "http://cms.example.com", nil)
	u, err = fn(req)
	if err != nil || u.Host != "proxy:8080" {
		t.Errorf("expected http proxy, got %v (%v)", u, err)
	}
}
