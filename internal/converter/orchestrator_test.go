package converter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/shaiso/docconv/internal/domain"
	"github.com/shaiso/docconv/internal/vendor"
	"github.com/shaiso/docconv/internal/vendortest"
)

// countingSleeper считает паузы и не ждёт.
type countingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func (s *countingSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sleeps)
}

func newTestOrchestrator(srv *vendortest.Server, sleeper Sleeper, maxAttempts int) *Orchestrator {
	client := vendor.NewClient(vendor.Config{
		BaseURL: srv.URL,
		APIKey:  "key",
		Timeout: 5 * time.Second,
	})
	return New(Config{
		Vendor:          client,
		PollInterval:    time.Second,
		MaxPollAttempts: maxAttempts,
		Sleeper:         sleeper,
	})
}

func stageTestFile(t *testing.T, name, content string) *StagedFile {
	t.Helper()
	staged, err := NewStager(t.TempDir()).Stage(name, strings.NewReader(content))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	t.Cleanup(func() { staged.Remove() })
	return staged
}

// --- Orchestrator Tests ---

func TestConvert_Success_AfterPending(t *testing.T) {
	srv := vendortest.NewServer()
	defer srv.Close()
	srv.Statuses = []string{"pending", "pending", "success"}

	sleeper := &countingSleeper{}
	o := newTestOrchestrator(srv, sleeper, 10)
	file := stageTestFile(t, "report.docx", "docx bytes")
	conv := domain.NewConversion(file.Name, file.Size)

	result, err := o.Convert(context.Background(), file, conv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer result.Close()

	if sleeper.count() != 2 {
		t.Errorf("expected 2 sleeps, got %d", sleeper.count())
	}
	if srv.Polls() != 3 {
		t.Errorf("expected 3 status checks, got %d", srv.Polls())
	}
	if conv.PollAttempts != 3 {
		t.Errorf("expected PollAttempts=3, got %d", conv.PollAttempts)
	}
	if conv.TaskID != vendortest.TaskID {
		t.Errorf("expected TaskID %q, got %q", vendortest.TaskID, conv.TaskID)
	}
	if result.FileName != "report.pdf" {
		t.Errorf("expected report.pdf, got %q", result.FileName)
	}
	if result.ContentType != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", result.ContentType)
	}

	data, _ := io.ReadAll(result.Body)
	if string(data) != string(srv.Result) {
		t.Errorf("unexpected result body %q", data)
	}

	uploaded, name := srv.Uploaded()
	if string(uploaded) != "docx bytes" || name != "report.docx" {
		t.Errorf("unexpected upload %q (%s)", uploaded, name)
	}

	want := []string{
		vendortest.PathAuth,
		vendortest.PathCreateTask,
		vendortest.PathUpload,
		vendortest.PathExecute,
		vendortest.PathTaskInfo,
		vendortest.PathTaskInfo,
		vendortest.PathTaskInfo,
		vendortest.PathDownload,
	}
	calls := srv.Calls()
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected call order:\n got %v\nwant %v", calls, want)
	}
}

func TestConvert_ImmediateSuccess_NoSleep(t *testing.T) {
	srv := vendortest.NewServer()
	defer srv.Close()

	sleeper := &countingSleeper{}
	o := newTestOrchestrator(srv, sleeper, 10)
	file := stageTestFile(t, "a.doc", "x")

	result, err := o.Convert(context.Background(), file, domain.NewConversion(file.Name, file.Size))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result.Close()

	if sleeper.count() != 0 {
		t.Errorf("expected no sleeps, got %d", sleeper.count())
	}
}

func TestConvert_StepFailures(t *testing.T) {
	tests := []struct {
		path      string
		step      Step
		wantCalls int
	}{
		{vendortest.PathAuth, StepAuthenticate, 1},
		{vendortest.PathCreateTask, StepCreateTask, 2},
		{vendortest.PathUpload, StepUpload, 3},
		{vendortest.PathExecute, StepExecute, 4},
		{vendortest.PathTaskInfo, StepPoll, 5},
	}

	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			srv := vendortest.NewServer()
			defer srv.Close()
			srv.Codes[tt.path] = 500

			o := newTestOrchestrator(srv, &countingSleeper{}, 3)
			file := stageTestFile(t, "a.docx", "x")

			_, err := o.Convert(context.Background(), file, domain.NewConversion(file.Name, file.Size))
			if err == nil {
				t.Fatal("expected error")
			}

			var stepErr *StepError
			if !errors.As(err, &stepErr) {
				t.Fatalf("expected *StepError, got %T", err)
			}
			if stepErr.Step != tt.step {
				t.Errorf("expected step %s, got %s", tt.step, stepErr.Step)
			}
			if !errors.Is(err, vendor.ErrVendorCode) {
				t.Errorf("expected ErrVendorCode, got %v", err)
			}
			if srv.CallCount() != tt.wantCalls {
				t.Errorf("later steps should not run: %d calls %v", srv.CallCount(), srv.Calls())
			}
		})
	}
}

func TestConvert_DownloadFailure(t *testing.T) {
	srv := vendortest.NewServer()
	defer srv.Close()
	srv.Codes[vendortest.PathDownload] = 404

	o := newTestOrchestrator(srv, &countingSleeper{}, 3)
	file := stageTestFile(t, "a.docx", "x")

	_, err := o.Convert(context.Background(), file, domain.NewConversion(file.Name, file.Size))

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepDownload {
		t.Fatalf("expected download StepError, got %v", err)
	}
	if !errors.Is(err, vendor.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestConvert_TaskFailed(t *testing.T) {
	srv := vendortest.NewServer()
	defer srv.Close()
	srv.Statuses = []string{"pending", "failed"}
	srv.FailureReason = "corrupted document"

	sleeper := &countingSleeper{}
	o := newTestOrchestrator(srv, sleeper, 10)
	file := stageTestFile(t, "a.docx", "x")

	_, err := o.Convert(context.Background(), file, domain.NewConversion(file.Name, file.Size))
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "corrupted document") {
		t.Errorf("reason should be in error: %v", err)
	}
	if sleeper.count() != 1 {
		t.Errorf("expected 1 sleep, got %d", sleeper.count())
	}
	if OutcomeOf(err) != domain.OutcomeFailed {
		t.Errorf("expected failed outcome, got %s", OutcomeOf(err))
	}
}

func TestConvert_PollTimeout(t *testing.T) {
	srv := vendortest.NewServer()
	defer srv.Close()
	srv.Statuses = []string{"pending"}

	sleeper := &countingSleeper{}
	o := newTestOrchestrator(srv, sleeper, 4)
	file := stageTestFile(t, "a.docx", "x")
	conv := domain.NewConversion(file.Name, file.Size)

	_, err := o.Convert(context.Background(), file, conv)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if srv.Polls() != 4 {
		t.Errorf("expected 4 status checks, got %d", srv.Polls())
	}
	if sleeper.count() != 3 {
		t.Errorf("expected 3 sleeps, got %d", sleeper.count())
	}
	if conv.PollAttempts != 4 {
		t.Errorf("expected PollAttempts=4, got %d", conv.PollAttempts)
	}
	if OutcomeOf(err) != domain.OutcomeTimeout {
		t.Errorf("expected timeout outcome, got %s", OutcomeOf(err))
	}
	for _, c := range srv.Calls() {
		if c == vendortest.PathDownload {
			t.Error("download should not be attempted after timeout")
		}
	}
}

func TestConvert_SuccessWithoutURL(t *testing.T) {
	srv := vendortest.NewServer()
	defer srv.Close()
	srv.OmitDownloadURL = true

	o := newTestOrchestrator(srv, &countingSleeper{}, 3)
	file := stageTestFile(t, "a.docx", "x")

	_, err := o.Convert(context.Background(), file, domain.NewConversion(file.Name, file.Size))
	if !errors.Is(err, ErrNoDownloadURL) {
		t.Errorf("expected ErrNoDownloadURL, got %v", err)
	}
}

func TestConvert_ContentTypeFallback(t *testing.T) {
	srv := vendortest.NewServer()
	defer srv.Close()
	srv.ResultContentType = "application/octet-stream"

	o := newTestOrchestrator(srv, &countingSleeper{}, 3)
	file := stageTestFile(t, "a.docx", "x")

	result, err := o.Convert(context.Background(), file, domain.NewConversion(file.Name, file.Size))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer result.Close()

	if result.ContentType != "application/pdf" {
		t.Errorf("expected application/pdf fallback, got %q", result.ContentType)
	}
}

func TestOrchestrator_Defaults(t *testing.T) {
	o := New(Config{})

	if o.pollInterval != 2*time.Second {
		t.Errorf("expected default interval 2s, got %v", o.pollInterval)
	}
	if o.maxPollAttempts != 30 {
		t.Errorf("expected default 30 attempts, got %d", o.maxPollAttempts)
	}
	if o.MaxWait() != time.Minute {
		t.Errorf("expected max wait 1m, got %v", o.MaxWait())
	}
}

// --- Stager Tests ---

func TestStager_StageAndRemove(t *testing.T) {
	dir := t.TempDir()
	staged, err := NewStager(dir).Stage("My Report.DOCX", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if staged.Size != 5 {
		t.Errorf("expected size 5, got %d", staged.Size)
	}
	if !strings.HasSuffix(staged.Path, ".docx") {
		t.Errorf("expected .docx suffix, got %s", staged.Path)
	}
	if !strings.Contains(staged.Path, StagedFilePrefix) {
		t.Errorf("expected prefix %s in %s", StagedFilePrefix, staged.Path)
	}

	if err := staged.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := staged.Remove(); err != nil {
		t.Errorf("second remove should be no-op: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp dir should be empty, got %d entries", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStager_SourceError_RemovesFile(t *testing.T) {
	dir := t.TempDir()

	_, err := NewStager(dir).Stage("a.docx", failingReader{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if errors.Is(err, ErrStaging) {
		t.Error("source read error must not be reported as a staging failure")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial file should be removed, got %d entries", len(entries))
	}
}

func TestStager_TruncatedSource(t *testing.T) {
	src := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(io.ErrUnexpectedEOF))

	_, err := NewStager(t.TempDir()).Stage("a.docx", src)
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrInvalidInput wrapping unexpected EOF, got %v", err)
	}
}

func TestStager_LocalError(t *testing.T) {
	// Путь занят обычным файлом: директорию создать нельзя
	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewStager(notDir).Stage("a.docx", strings.NewReader("data"))
	if !errors.Is(err, ErrStaging) {
		t.Fatalf("expected ErrStaging, got %v", err)
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Error("local failure must not be reported as invalid input")
	}
}
