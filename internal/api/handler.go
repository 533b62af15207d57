package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/docconv/internal/converter"
	"github.com/shaiso/docconv/internal/domain"
)

// Default configuration values.
const (
	defaultMaxUploadBytes = 20 << 20
	defaultPublishTimeout = 5 * time.Second
)

// Converter выполняет последовательность вендора. *converter.Orchestrator удовлетворяет интерфейсу.
type Converter interface {
	Convert(ctx context.Context, file *converter.StagedFile, conv *domain.Conversion) (*domain.ConversionResult, error)
}

// Stager сохраняет входной файл. *converter.Stager удовлетворяет интерфейсу.
type Stager interface {
	Stage(name string, src io.Reader) (*converter.StagedFile, error)
}

// Events публикует итоги конвертаций. *mq.Publisher удовлетворяет интерфейсу.
type Events interface {
	PublishConversionFinished(ctx context.Context, c *domain.Conversion) error
}

// History читает историю конвертаций. *repo.ConversionRepo удовлетворяет интерфейсу.
type History interface {
	List(ctx context.Context, limit int) ([]domain.Conversion, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversion, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	converter      Converter
	stager         Stager
	events         Events
	history        History
	maxUploadBytes int64
	corsOrigin     string
	publishTimeout time.Duration
	startedAt      time.Time
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Converter и Stager обязательны.
	Converter Converter
	Stager    Stager

	// Events — публикация итогов (опционально; nil — не публикуются).
	Events Events

	// History — история (опционально; nil — эндпоинты истории отвечают 503).
	History History

	// MaxUploadBytes — лимит размера запроса (default: 20MB).
	MaxUploadBytes int64

	// CORSAllowOrigin — origin браузерной формы (пусто — CORS выключен).
	CORSAllowOrigin string

	// PublishTimeout — таймаут публикации события (default: 5s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		converter:      cfg.Converter,
		stager:         cfg.Stager,
		events:         cfg.Events,
		history:        cfg.History,
		maxUploadBytes: maxUpload,
		corsOrigin:     cfg.CORSAllowOrigin,
		publishTimeout: publishTimeout,
		startedAt:      time.Now(),
		logger:         logger,
	}
}
