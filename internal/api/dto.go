package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/docconv/internal/domain"
)

// ConversionResponse — запись истории конвертаций.
type ConversionResponse struct {
	ID             uuid.UUID  `json:"id"`
	FileName       string     `json:"file_name"`
	ResultFileName string     `json:"result_file_name,omitempty"`
	TaskID         string     `json:"task_id,omitempty"`
	Outcome        string     `json:"outcome"`
	Error          string     `json:"error,omitempty"`
	PollAttempts   int        `json:"poll_attempts"`
	InputSize      int64      `json:"input_size"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	DurationMs     int64      `json:"duration_ms"`
}

// ConversionFromDomain конвертирует domain.Conversion в ConversionResponse.
func ConversionFromDomain(c domain.Conversion) ConversionResponse {
	return ConversionResponse{
		ID:             c.ID,
		FileName:       c.FileName,
		ResultFileName: c.ResultFileName,
		TaskID:         c.TaskID,
		Outcome:        string(c.Outcome),
		Error:          c.Error,
		PollAttempts:   c.PollAttempts,
		InputSize:      c.InputSize,
		StartedAt:      c.StartedAt,
		FinishedAt:     c.FinishedAt,
		DurationMs:     c.Duration().Milliseconds(),
	}
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}
