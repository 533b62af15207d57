package converter

import (
	"errors"
	"fmt"
)

// Ошибки оркестратора конвертации.
var (
	// ErrTaskFailed — вендор сообщил статус failed.
	ErrTaskFailed = errors.New("conversion task failed")

	// ErrPollTimeout — попытки опроса исчерпаны без финального статуса.
	ErrPollTimeout = errors.New("conversion timed out")

	// ErrNoDownloadURL — статус success пришёл без ссылки на результат.
	ErrNoDownloadURL = errors.New("vendor reported success without download url")

	// ErrStaging — не удалось сохранить входной файл во временную директорию
	// (локальная ошибка: директория, диск, права).
	ErrStaging = errors.New("failed to stage input file")

	// ErrInvalidInput — входной поток оборвался или повреждён при чтении.
	// Ошибка клиента, а не сервиса.
	ErrInvalidInput = errors.New("invalid input file")
)

// Step — имя шага последовательности вендора.
type Step string

// Шаги последовательности (в порядке выполнения).
const (
	StepAuthenticate Step = "authenticate"
	StepCreateTask   Step = "create_task"
	StepUpload       Step = "upload"
	StepExecute      Step = "execute"
	StepPoll         Step = "poll"
	StepDownload     Step = "download"
)

// StepError — ошибка конкретного шага. Прерывает оставшуюся последовательность.
type StepError struct {
	Step Step
	Err  error
}

// Error возвращает текст ошибки с именем шага.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap возвращает исходную ошибку.
func (e *StepError) Unwrap() error {
	return e.Err
}
