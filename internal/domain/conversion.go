package domain

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TargetExtension — расширение результата операции word-to-pdf.
const TargetExtension = ".pdf"

// defaultResultName — имя результата, если исходное имя пустое.
const defaultResultName = "converted"

// SupportedExtensions — расширения, которые принимает клиент.
// Сервер их не проверяет: валидация только на стороне клиента (CLI, браузерная форма).
var SupportedExtensions = []string{".doc", ".docx", ".pdf"}

// IsSupportedExtension проверяет расширение без учёта регистра.
func IsSupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ConversionRequest — входящий файл для конвертации.
type ConversionRequest struct {
	// FileName — исходное имя файла от клиента.
	FileName string

	// Extension — заявленное расширение (в нижнем регистре, с точкой).
	Extension string

	// Size — размер файла в байтах, -1 если неизвестен.
	Size int64

	// Content — содержимое файла.
	Content io.Reader
}

// NewConversionRequest создаёт ConversionRequest, вычисляя расширение из имени.
func NewConversionRequest(fileName string, size int64, content io.Reader) ConversionRequest {
	return ConversionRequest{
		FileName:  fileName,
		Extension: strings.ToLower(filepath.Ext(fileName)),
		Size:      size,
		Content:   content,
	}
}

// TaskHandle — идентификатор задачи, выданный вендором.
//
// Создаётся при create-task и далее используется только для чтения
// в upload/execute/poll одного запроса.
type TaskHandle string

// String возвращает идентификатор задачи.
func (h TaskHandle) String() string {
	return string(h)
}

// AccessToken — короткоживущий токен вендора.
// Живёт только в рамках одного запроса, не кешируется и не сохраняется.
type AccessToken string

// ConversionResult — результат конвертации, который стримится клиенту.
type ConversionResult struct {
	// Body — поток результата. Закрывает вызывающая сторона.
	Body io.ReadCloser

	// FileName — имя файла для Content-Disposition.
	FileName string

	// ContentType — MIME-тип результата.
	ContentType string

	// Size — размер в байтах, -1 если неизвестен.
	Size int64
}

// Close закрывает поток результата.
func (r *ConversionResult) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// ResultFileName строит имя результата из исходного имени:
// расширение заменяется на целевое, путь отбрасывается.
func ResultFileName(original, targetExt string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(stem) == "" {
		stem = defaultResultName
	}
	return stem + targetExt
}

// Conversion — запись аудита об одном запросе на конвертацию.
//
// Не участвует в управлении процессом: заполняется по ходу запроса
// и публикуется после его завершения.
type Conversion struct {
	// ID — уникальный идентификатор запроса.
	ID uuid.UUID `json:"id"`

	// FileName — исходное имя файла.
	FileName string `json:"file_name"`

	// ResultFileName — имя отданного результата (только при успехе).
	ResultFileName string `json:"result_file_name,omitempty"`

	// TaskID — идентификатор задачи вендора (если задача была создана).
	TaskID string `json:"task_id,omitempty"`

	// Outcome — итог запроса. Пусто, пока запрос выполняется.
	Outcome Outcome `json:"outcome,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// PollAttempts — количество выполненных запросов статуса.
	PollAttempts int `json:"poll_attempts"`

	// InputSize — размер загруженного файла в байтах.
	InputSize int64 `json:"input_size"`

	// StartedAt — время начала обработки.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewConversion создаёт запись для нового запроса.
func NewConversion(fileName string, size int64) *Conversion {
	return &Conversion{
		ID:        uuid.New(),
		FileName:  fileName,
		InputSize: size,
		StartedAt: time.Now(),
	}
}

// Duration возвращает продолжительность обработки.
func (c *Conversion) Duration() time.Duration {
	if c.FinishedAt == nil {
		return 0
	}
	return c.FinishedAt.Sub(c.StartedAt)
}

// IsFinished возвращает true, если итог уже известен.
func (c *Conversion) IsFinished() bool {
	return c.Outcome != ""
}

// MarkSucceeded фиксирует успешную отдачу результата.
func (c *Conversion) MarkSucceeded(resultFileName string) {
	now := time.Now()
	c.Outcome = OutcomeSucceeded
	c.ResultFileName = resultFileName
	c.Error = ""
	c.FinishedAt = &now
}

// MarkFailed фиксирует неудачу с указанным итогом.
func (c *Conversion) MarkFailed(outcome Outcome, err string) {
	now := time.Now()
	c.Outcome = outcome
	c.Error = err
	c.FinishedAt = &now
}
