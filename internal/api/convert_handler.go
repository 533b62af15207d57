package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/shaiso/docconv/internal/converter"
	"github.com/shaiso/docconv/internal/domain"
	"github.com/shaiso/docconv/internal/telemetry"
)

// formFileField — имя поля multipart-формы с файлом.
const formFileField = "file"

// Ошибки разбора входящего запроса. Все отдаются как 400.
var (
	errNotMultipart = errors.New("request must be multipart/form-data")
	errNoFile       = errors.New("file is required")
)

// Convert принимает файл и возвращает результат конвертации.
// POST /api/v1/convert, POST /api/convert
//
// Некорректный запрос отклоняется до обращения к вендору. Временный файл
// удаляется на любом пути завершения. Конвертация не прерывается при
// отключении клиента: контекст запроса отвязан от его отмены.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, http.MethodPost)
		return
	}

	conv := domain.NewConversion("", 0)
	logger := telemetry.WithConversionID(h.logger, conv.ID.String())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	part, err := filePart(r)
	if err != nil {
		h.reject(w, logger, conv, err)
		return
	}
	defer part.Close()

	// Размер заранее неизвестен: часть читается потоком
	req := domain.NewConversionRequest(part.FileName(), -1, part)
	conv.FileName = req.FileName

	// Расширение на сервере не проверяется, решение остаётся за вендором
	if !domain.IsSupportedExtension(req.Extension) {
		logger.Debug("unexpected file extension", "extension", req.Extension)
	}

	staged, err := h.stager.Stage(req.FileName, req.Content)
	if err != nil {
		// Оборванное или превышающее лимит тело — ошибка клиента,
		// ошибка временной директории — ошибка сервиса.
		if errors.Is(err, converter.ErrInvalidInput) {
			h.reject(w, logger, conv, err)
			return
		}
		h.fail(w, logger, conv, err)
		return
	}
	defer func() {
		if err := staged.Remove(); err != nil {
			logger.Warn("failed to remove staged file", "path", staged.Path, "error", err)
		}
	}()

	conv.InputSize = staged.Size
	logger.Info("conversion started", "file_name", conv.FileName, "extension", req.Extension, "size", conv.InputSize)

	result, err := h.converter.Convert(context.WithoutCancel(r.Context()), staged, conv)
	if err != nil {
		h.fail(w, logger, conv, err)
		return
	}
	defer result.Close()

	h.stream(w, logger, conv, result)
}

// filePart находит часть формы с файлом. Файл читается потоком,
// без промежуточного буфера multipart.Form.
func filePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errNotMultipart
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFile
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, fmt.Errorf("malformed multipart body: %w", err)
		}

		if part.FormName() == formFileField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// stream отдаёт результат клиенту.
func (h *Handler) stream(w http.ResponseWriter, logger *slog.Logger, conv *domain.Conversion, result *domain.ConversionResult) {
	header := w.Header()
	header.Set("Content-Type", result.ContentType)
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": result.FileName,
	}))
	if result.Size > 0 {
		header.Set("Content-Length", strconv.FormatInt(result.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, result.Body)
	if err != nil {
		// Заголовки уже отправлены: клиент получит оборванный поток
		conv.MarkFailed(domain.OutcomeFailed, fmt.Sprintf("stream result: %v", err))
		logger.Warn("failed to stream result", "written", written, "error", err)
		h.finish(logger, conv)
		return
	}

	conv.MarkSucceeded(result.FileName)
	logger.Info("conversion succeeded",
		"result_file_name", result.FileName,
		"bytes", written,
		"poll_attempts", conv.PollAttempts,
	)
	h.finish(logger, conv)
}

// reject отвечает 400 на некорректный запрос.
func (h *Handler) reject(w http.ResponseWriter, logger *slog.Logger, conv *domain.Conversion, err error) {
	message := err.Error()
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		message = fmt.Sprintf("file exceeds upload limit of %d bytes", maxErr.Limit)
	}

	conv.MarkFailed(domain.OutcomeRejected, message)
	logger.Info("conversion request rejected", "error", message)
	h.finish(logger, conv)

	BadRequest(w, message)
}

// fail отвечает 500 на ошибку конвертации.
func (h *Handler) fail(w http.ResponseWriter, logger *slog.Logger, conv *domain.Conversion, err error) {
	outcome := converter.OutcomeOf(err)
	conv.MarkFailed(outcome, err.Error())
	logger.Error("conversion failed", "outcome", outcome, "error", err)
	h.finish(logger, conv)

	ConversionFailed(w, err.Error())
}

// finish записывает метрики и публикует итог. Ошибка публикации
// не влияет на ответ клиенту.
func (h *Handler) finish(logger *slog.Logger, conv *domain.Conversion) {
	telemetry.ObserveConversion(conv.Outcome.String(), conv.Duration(), conv.PollAttempts)

	if h.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.publishTimeout)
	defer cancel()

	if err := h.events.PublishConversionFinished(ctx, conv); err != nil {
		logger.Warn("failed to publish conversion event", "error", err)
	}
}
