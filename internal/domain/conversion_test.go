package domain

import (
	"strings"
	"testing"
	"time"
)

func TestResultFileName(t *testing.T) {
	tests := []struct {
		original string
		want     string
	}{
		{"report.docx", "report.pdf"},
		{"Report.DOC", "Report.pdf"},
		{"archive.tar.docx", "archive.tar.pdf"},
		{"dir/sub/file.docx", "file.pdf"},
		{`C:\Users\me\file.doc`, "file.pdf"},
		{"noext", "noext.pdf"},
		{"", "converted.pdf"},
		{".docx", "converted.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			if got := ResultFileName(tt.original, TargetExtension); got != tt.want {
				t.Errorf("ResultFileName(%q) = %q, want %q", tt.original, got, tt.want)
			}
		})
	}
}

func TestIsSupportedExtension(t *testing.T) {
	for _, ext := range []string{".doc", ".DOCX", ".pdf"} {
		if !IsSupportedExtension(ext) {
			t.Errorf("%s should be supported", ext)
		}
	}
	for _, ext := range []string{".txt", "", "docx"} {
		if IsSupportedExtension(ext) {
			t.Errorf("%q should not be supported", ext)
		}
	}
}

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want TaskStatus
	}{
		{"success", TaskStatusSuccess},
		{" SUCCESS ", TaskStatusSuccess},
		{"TaskFinish", TaskStatusSuccess},
		{"failed", TaskStatusFailed},
		{"error", TaskStatusFailed},
		{"pending", TaskStatusPending},
		{"processing", TaskStatusPending},
		{"", TaskStatusPending},
	}

	for _, tt := range tests {
		if got := ParseTaskStatus(tt.raw); got != tt.want {
			t.Errorf("ParseTaskStatus(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}

	if TaskStatusPending.IsTerminal() {
		t.Error("pending should not be terminal")
	}
	if !TaskStatusFailed.IsTerminal() || !TaskStatusSuccess.IsTerminal() {
		t.Error("success and failed should be terminal")
	}
}

func TestConversion_Lifecycle(t *testing.T) {
	c := NewConversion("a.docx", 10)

	if c.IsFinished() {
		t.Error("new conversion should not be finished")
	}
	if c.Duration() != 0 {
		t.Error("duration should be zero before finish")
	}

	time.Sleep(time.Millisecond)
	c.MarkFailed(OutcomeTimeout, "poll: timed out")

	if !c.IsFinished() {
		t.Error("conversion should be finished")
	}
	if c.Outcome != OutcomeTimeout {
		t.Errorf("expected timeout, got %s", c.Outcome)
	}
	if c.Duration() <= 0 {
		t.Error("duration should be positive")
	}

	c.MarkSucceeded("a.pdf")
	if c.Error != "" || c.ResultFileName != "a.pdf" {
		t.Errorf("unexpected state after success: %+v", c)
	}
}

func TestConversionResult_Close_Nil(t *testing.T) {
	var r *ConversionResult
	if err := r.Close(); err != nil {
		t.Errorf("nil result close should be no-op: %v", err)
	}
}

func TestNewConversionRequest(t *testing.T) {
	req := NewConversionRequest("Quarterly.DOCX", -1, strings.NewReader("x"))

	if req.Extension != ".docx" {
		t.Errorf("expected lowercased .docx, got %q", req.Extension)
	}
	if !IsSupportedExtension(req.Extension) {
		t.Error(".docx should be supported")
	}
	if IsSupportedExtension(NewConversionRequest("notes.txt", 0, nil).Extension) {
		t.Error(".txt should not be supported")
	}
}
