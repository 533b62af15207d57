package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/shaiso/docconv/internal/domain"
	"github.com/shaiso/docconv/internal/telemetry"
	"github.com/shaiso/docconv/internal/vendor"
)

// Default configuration values.
const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 30
	defaultContentType     = "application/pdf"
)

// Vendor — API вендора, через который выполняется конвертация.
// *vendor.Client удовлетворяет интерфейсу.
type Vendor interface {
	Authenticate(ctx context.Context) (domain.AccessToken, error)
	CreateTask(ctx context.Context, token domain.AccessToken) (domain.TaskHandle, error)
	Upload(ctx context.Context, token domain.AccessToken, task domain.TaskHandle, fileName string, content io.Reader) error
	Execute(ctx context.Context, token domain.AccessToken, task domain.TaskHandle) error
	TaskInfo(ctx context.Context, token domain.AccessToken, task domain.TaskHandle) (*vendor.TaskInfo, error)
	Download(ctx context.Context, downloadURL string) (*vendor.Download, error)
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Vendor — клиент API вендора (обязательно).
	Vendor Vendor

	// Polling configuration
	PollInterval    time.Duration // интервал между запросами статуса (default: 2s)
	MaxPollAttempts int           // максимум запросов статуса (default: 30)

	// TargetExtension — расширение результата (default: .pdf).
	TargetExtension string

	// Sleeper (опционально; если nil — реальный таймер)
	Sleeper Sleeper

	// Logger
	Logger *slog.Logger
}

// Orchestrator проводит один файл через фиксированную последовательность вендора:
//
//	authenticate → create task → upload → execute → poll → download
//
// Каждый шаг ждёт завершения предыдущего. Ошибка любого шага прерывает
// последовательность и возвращается как *StepError. Orchestrator не хранит
// состояние между вызовами Convert и безопасен для конкурентного использования.
type Orchestrator struct {
	vendor          Vendor
	pollInterval    time.Duration
	maxPollAttempts int
	targetExt       string
	sleeper         Sleeper
	logger          *slog.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	maxAttempts := cfg.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxPollAttempts
	}

	targetExt := cfg.TargetExtension
	if targetExt == "" {
		targetExt = domain.TargetExtension
	}

	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = timerSleeper{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		vendor:          cfg.Vendor,
		pollInterval:    pollInterval,
		maxPollAttempts: maxAttempts,
		targetExt:       targetExt,
		sleeper:         sleeper,
		logger:          logger,
	}
}

// MaxWait возвращает верхнюю границу ожидания в фазе опроса.
func (o *Orchestrator) MaxWait() time.Duration {
	return o.pollInterval * time.Duration(o.maxPollAttempts)
}

// Convert выполняет последовательность для staged-файла.
//
// conv заполняется по ходу (TaskID, PollAttempts); итог в conv
// выставляет вызывающая сторона. При успехе возвращает открытый поток
// результата, который вызывающая сторона обязана закрыть.
// Удаление staged-файла — ответственность вызывающей стороны.
func (o *Orchestrator) Convert(ctx context.Context, file *StagedFile, conv *domain.Conversion) (*domain.ConversionResult, error) {
	logger := telemetry.WithConversionID(o.logger, conv.ID.String())

	// 1. Authenticate
	token, err := o.vendor.Authenticate(ctx)
	if err := o.stepDone(logger, StepAuthenticate, err); err != nil {
		return nil, err
	}

	// 2. Create task
	task, err := o.vendor.CreateTask(ctx, token)
	if err := o.stepDone(logger, StepCreateTask, err); err != nil {
		return nil, err
	}
	conv.TaskID = task.String()
	logger = telemetry.WithTaskID(logger, task.String())

	// 3. Upload
	err = o.upload(ctx, token, task, file)
	if err := o.stepDone(logger, StepUpload, err); err != nil {
		return nil, err
	}

	// 4. Execute
	err = o.vendor.Execute(ctx, token, task)
	if err := o.stepDone(logger, StepExecute, err); err != nil {
		return nil, err
	}

	// 5. Poll
	info, err := o.poll(ctx, logger, token, task, conv)
	if err := o.stepDone(logger, StepPoll, err); err != nil {
		return nil, err
	}

	// 6. Download
	download, err := o.vendor.Download(ctx, info.DownloadURL)
	if err := o.stepDone(logger, StepDownload, err); err != nil {
		return nil, err
	}

	return &domain.ConversionResult{
		Body:        download.Body,
		FileName:    domain.ResultFileName(file.Name, o.targetExt),
		ContentType: resultContentType(download.ContentType),
		Size:        download.Size,
	}, nil
}

// upload открывает staged-файл и передаёт его вендору.
func (o *Orchestrator) upload(ctx context.Context, token domain.AccessToken, task domain.TaskHandle, file *StagedFile) error {
	f, err := file.Open()
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	return o.vendor.Upload(ctx, token, task, file.Name, f)
}

// poll опрашивает статус задачи не более maxPollAttempts раз.
//
// success прерывает цикл сразу, failed — сразу возвращает ErrTaskFailed.
// Ожидание выполняется только между запросами, поэтому
// последовательность [pending, pending, success] даёт ровно две паузы.
func (o *Orchestrator) poll(ctx context.Context, logger *slog.Logger, token domain.AccessToken, task domain.TaskHandle, conv *domain.Conversion) (*vendor.TaskInfo, error) {
	for attempt := 1; attempt <= o.maxPollAttempts; attempt++ {
		conv.PollAttempts = attempt

		info, err := o.vendor.TaskInfo(ctx, token, task)
		if err != nil {
			return nil, err
		}

		logger.Debug("task status",
			"attempt", attempt,
			"status", info.Status,
			"raw_status", info.RawStatus,
		)

		switch info.Status {
		case domain.TaskStatusSuccess:
			if info.DownloadURL == "" {
				return nil, ErrNoDownloadURL
			}
			return info, nil
		case domain.TaskStatusFailed:
			if info.Reason != "" {
				return nil, fmt.Errorf("%w: %s", ErrTaskFailed, info.Reason)
			}
			return nil, ErrTaskFailed
		}

		if attempt == o.maxPollAttempts {
			break
		}

		if err := o.sleeper.Sleep(ctx, o.pollInterval); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: task %s not finished after %d status checks (%s)",
		ErrPollTimeout, task, o.maxPollAttempts, o.MaxWait())
}

// stepDone записывает метрику шага и оборачивает ошибку в StepError.
func (o *Orchestrator) stepDone(logger *slog.Logger, step Step, err error) error {
	telemetry.ObserveVendorStep(string(step), err)
	if err == nil {
		logger.Debug("step completed", "step", step)
		return nil
	}

	logger.Warn("step failed", "step", step, "error", err)
	return &StepError{Step: step, Err: err}
}

// resultContentType нормализует Content-Type ответа вендора.
// Пустой или бинарный по умолчанию тип заменяется на application/pdf.
func resultContentType(ct string) string {
	if ct == "" {
		return defaultContentType
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || strings.EqualFold(mediaType, "application/octet-stream") {
		return defaultContentType
	}
	return ct
}

// OutcomeOf классифицирует ошибку Convert в итог запроса.
func OutcomeOf(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeSucceeded
	case errors.Is(err, ErrPollTimeout):
		return domain.OutcomeTimeout
	default:
		return domain.OutcomeFailed
	}
}
