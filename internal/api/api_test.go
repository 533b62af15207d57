package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/docconv/internal/converter"
	"github.com/shaiso/docconv/internal/domain"
	"github.com/shaiso/docconv/internal/repo"
	"github.com/shaiso/docconv/internal/vendor"
	"github.com/shaiso/docconv/internal/vendortest"
)

// --- Test helpers ---

// countingSleeper считает паузы опроса и не ждёт.
type countingSleeper struct {
	mu    sync.Mutex
	count int
}

func (s *countingSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return ctx.Err()
}

// recordingEvents запоминает опубликованные итоги.
type recordingEvents struct {
	mu          sync.Mutex
	conversions []domain.Conversion
}

func (e *recordingEvents) PublishConversionFinished(_ context.Context, c *domain.Conversion) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conversions = append(e.conversions, *c)
	return nil
}

func (e *recordingEvents) last(t *testing.T) domain.Conversion {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.conversions) == 0 {
		t.Fatal("no conversion event published")
	}
	return e.conversions[len(e.conversions)-1]
}

type testEnv struct {
	vendor  *vendortest.Server
	sleeper *countingSleeper
	events  *recordingEvents
	tempDir string
	mux     *http.ServeMux
}

func newTestEnv(t *testing.T, maxAttempts int, opts ...func(*Config)) *testEnv {
	t.Helper()

	srv := vendortest.NewServer()
	t.Cleanup(srv.Close)

	sleeper := &countingSleeper{}
	events := &recordingEvents{}
	tempDir := t.TempDir()

	client := vendor.NewClient(vendor.Config{
		BaseURL: srv.URL,
		APIKey:  "key",
		Timeout: 5 * time.Second,
	})

	cfg := Config{
		Converter: converter.New(converter.Config{
			Vendor:          client,
			PollInterval:    time.Second,
			MaxPollAttempts: maxAttempts,
			Sleeper:         sleeper,
		}),
		Stager:          converter.NewStager(tempDir),
		Events:          events,
		CORSAllowOrigin: "http://localhost:3000",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()
	NewHandler(cfg).RegisterRoutes(mux)

	return &testEnv{
		vendor:  srv,
		sleeper: sleeper,
		events:  events,
		tempDir: tempDir,
		mux:     mux,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) assertTempDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir should be empty, got %d entries", len(entries))
	}
}

func multipartRequest(t *testing.T, path, field, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte(content))
	} else {
		mw.WriteField("comment", "no file here")
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

// --- Convert Tests ---

func TestConvert_Success(t *testing.T) {
	env := newTestEnv(t, 10)
	env.vendor.Statuses = []string{"pending", "pending", "success"}

	rec := env.do(multipartRequest(t, "/api/v1/convert", "file", "report.docx", "docx bytes"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != string(env.vendor.Result) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}

	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("parse Content-Disposition: %v", err)
	}
	if params["filename"] != "report.pdf" {
		t.Errorf("expected filename report.pdf, got %q", params["filename"])
	}

	if env.sleeper.count != 2 {
		t.Errorf("expected 2 polling delays, got %d", env.sleeper.count)
	}

	env.assertTempDirEmpty(t)

	conv := env.events.last(t)
	if conv.Outcome != domain.OutcomeSucceeded {
		t.Errorf("expected succeeded, got %s", conv.Outcome)
	}
	if conv.ResultFileName != "report.pdf" || conv.PollAttempts != 3 || conv.InputSize != int64(len("docx bytes")) {
		t.Errorf("unexpected event: %+v", conv)
	}
}

func TestConvert_BrowserFormAlias(t *testing.T) {
	env := newTestEnv(t, 3)

	rec := env.do(multipartRequest(t, "/api/convert", "file", "letter.doc", "doc"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "letter.pdf") {
		t.Errorf("unexpected Content-Disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("CORS header should be set")
	}
}

func TestConvert_RejectedBeforeVendor(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
	}{
		{
			name: "GET",
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/v1/convert", nil)
			},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name: "not multipart",
			req: func(*testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/convert", strings.NewReader(`{"file":"x"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/convert", "", "", "")
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "wrong field name",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/convert", "document", "a.docx", "x")
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 3)

			rec := env.do(tt.req(t))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if env.vendor.CallCount() != 0 {
				t.Errorf("vendor should not be called, got %v", env.vendor.Calls())
			}
			env.assertTempDirEmpty(t)
		})
	}
}

func TestConvert_TooLarge(t *testing.T) {
	env := newTestEnv(t, 3, func(cfg *Config) { cfg.MaxUploadBytes = 1024 })

	rec := env.do(multipartRequest(t, "/api/v1/convert", "file", "big.docx", strings.Repeat("x", 4096)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.vendor.CallCount() != 0 {
		t.Errorf("vendor should not be called, got %v", env.vendor.Calls())
	}
	env.assertTempDirEmpty(t)

	if conv := env.events.last(t); conv.Outcome != domain.OutcomeRejected {
		t.Errorf("expected rejected, got %s", conv.Outcome)
	}
}

func TestConvert_TruncatedUpload(t *testing.T) {
	env := newTestEnv(t, 3)

	// Заголовки части на месте, закрывающей границы нет
	body := "--B\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"a.docx\"\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"partial"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=B")

	rec := env.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if detail := decodeError(t, rec); detail.Code != ErrCodeBadRequest {
		t.Errorf("expected %s, got %s", ErrCodeBadRequest, detail.Code)
	}
	if env.vendor.CallCount() != 0 {
		t.Errorf("vendor should not be called, got %v", env.vendor.Calls())
	}
	env.assertTempDirEmpty(t)

	if conv := env.events.last(t); conv.Outcome != domain.OutcomeRejected {
		t.Errorf("expected rejected, got %s", conv.Outcome)
	}
}

func TestConvert_StagingFailure(t *testing.T) {
	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := newTestEnv(t, 3, func(cfg *Config) { cfg.Stager = converter.NewStager(notDir) })

	rec := env.do(multipartRequest(t, "/api/v1/convert", "file", "a.docx", "content"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	if detail := decodeError(t, rec); detail.Code != ErrCodeConversionFailed {
		t.Errorf("expected %s, got %s", ErrCodeConversionFailed, detail.Code)
	}
	if env.vendor.CallCount() != 0 {
		t.Errorf("vendor should not be called, got %v", env.vendor.Calls())
	}
}

func TestConvert_Failures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*vendortest.Server)
		wantMessage string
		wantOutcome domain.Outcome
	}{
		{
			name:        "auth rejected",
			setup:       func(s *vendortest.Server) { s.Codes[vendortest.PathAuth] = 401 },
			wantMessage: "authenticate",
			wantOutcome: domain.OutcomeFailed,
		},
		{
			name:        "upload rejected",
			setup:       func(s *vendortest.Server) { s.Codes[vendortest.PathUpload] = 413 },
			wantMessage: "upload",
			wantOutcome: domain.OutcomeFailed,
		},
		{
			name: "task failed",
			setup: func(s *vendortest.Server) {
				s.Statuses = []string{"pending", "failed"}
				s.FailureReason = "unsupported format"
			},
			wantMessage: "failed",
			wantOutcome: domain.OutcomeFailed,
		},
		{
			name:        "timeout",
			setup:       func(s *vendortest.Server) { s.Statuses = []string{"pending"} },
			wantMessage: "timed out",
			wantOutcome: domain.OutcomeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 3)
			tt.setup(env.vendor)

			rec := env.do(multipartRequest(t, "/api/v1/convert", "file", "a.docx", "x"))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			if rec.Header().Get("Content-Disposition") != "" {
				t.Error("no file should be streamed on failure")
			}

			detail := decodeError(t, rec)
			if detail.Code != ErrCodeConversionFailed {
				t.Errorf("expected %s, got %s", ErrCodeConversionFailed, detail.Code)
			}
			if !strings.Contains(detail.Message, tt.wantMessage) {
				t.Errorf("message %q should mention %q", detail.Message, tt.wantMessage)
			}

			env.assertTempDirEmpty(t)

			if conv := env.events.last(t); conv.Outcome != tt.wantOutcome {
				t.Errorf("expected outcome %s, got %s", tt.wantOutcome, conv.Outcome)
			}
		})
	}
}

func TestConvert_ClientCancelDoesNotAbort(t *testing.T) {
	env := newTestEnv(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := multipartRequest(t, "/api/v1/convert", "file", "a.docx", "x").WithContext(ctx)

	rec := env.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("conversion should complete despite cancelled request context, got %d: %s", rec.Code, rec.Body.String())
	}
	env.assertTempDirEmpty(t)
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t, 3)

	rec := env.do(httptest.NewRequest(http.MethodOptions, "/api/convert", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("missing Access-Control-Allow-Origin")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
		t.Error("Content-Disposition should be exposed to the browser")
	}
	if env.vendor.CallCount() != 0 {
		t.Error("preflight should not reach the vendor")
	}
}

// --- History Tests ---

type fakeHistory struct {
	conversions []domain.Conversion
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]domain.Conversion, error) {
	if limit > 0 && limit < len(f.conversions) {
		return f.conversions[:limit], nil
	}
	return f.conversions, nil
}

func (f *fakeHistory) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversion, error) {
	for i := range f.conversions {
		if f.conversions[i].ID == id {
			return &f.conversions[i], nil
		}
	}
	return nil, repo.ErrNotFound
}

func TestHistory_NotConfigured(t *testing.T) {
	env := newTestEnv(t, 3)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/conversions", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestHistory_ListAndGet(t *testing.T) {
	first := domain.NewConversion("a.docx", 1)
	first.MarkSucceeded("a.pdf")
	second := domain.NewConversion("b.doc", 2)
	second.MarkFailed(domain.OutcomeTimeout, "poll: timed out")

	history := &fakeHistory{conversions: []domain.Conversion{*first, *second}}
	env := newTestEnv(t, 3, func(cfg *Config) { cfg.History = history })

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/conversions?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list struct {
		Data  []ConversionResponse `json:"data"`
		Total int                  `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 1 || list.Data[0].ID != first.ID {
		t.Errorf("unexpected list: %+v", list)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/conversions/"+second.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Data ConversionResponse `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Data.Outcome != "timeout" {
		t.Errorf("expected timeout, got %q", got.Data.Outcome)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/conversions/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/conversions/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/conversions?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 3)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("unexpected body %s", body)
	}
}
