package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, dir, name string, age time.Duration, now time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	mtime := now.Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	stale := touch(t, dir, "docconv-123.docx", 2*time.Hour, now)
	fresh := touch(t, dir, "docconv-456.docx", time.Minute, now)
	foreign := touch(t, dir, "other-789.docx", 5*time.Hour, now)

	j, err := New(Config{Dir: dir, MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	removed, err := j.Sweep(now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if exists(stale) {
		t.Error("stale staged file should be removed")
	}
	if !exists(fresh) {
		t.Error("fresh staged file should be kept")
	}
	if !exists(foreign) {
		t.Error("files without prefix should be kept")
	}
}

func TestSweep_MissingDir(t *testing.T) {
	j, err := New(Config{Dir: filepath.Join(t.TempDir(), "absent")})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	removed, err := j.Sweep(time.Now())
	if err != nil || removed != 0 {
		t.Errorf("missing dir should be a no-op: removed=%d err=%v", removed, err)
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	if _, err := New(Config{Dir: t.TempDir(), Schedule: "every minute"}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestStartStop(t *testing.T) {
	j, err := New(Config{Dir: t.TempDir(), Schedule: "* * * * *"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	j.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Stop(ctx)
}
