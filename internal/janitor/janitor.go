package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/docconv/internal/converter"
	"github.com/shaiso/docconv/internal/telemetry"
)

// Default configuration values.
const (
	defaultSchedule = "*/10 * * * *"
	defaultMaxAge   = time.Hour
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Config — конфигурация Janitor.
type Config struct {
	// Dir — временная директория staged-файлов (обязательно).
	Dir string

	// Schedule — cron-выражение (default: каждые 10 минут).
	Schedule string

	// MaxAge — возраст, после которого файл считается брошенным (default: 1h).
	MaxAge time.Duration

	// Logger
	Logger *slog.Logger
}

// Janitor удаляет staged-файлы, оставшиеся после аварийного завершения процесса.
//
// В штатном режиме каждый запрос удаляет свой файл сам. Janitor трогает
// только файлы с префиксом converter.StagedFilePrefix старше MaxAge,
// поэтому файлы выполняющихся запросов не затрагиваются при MaxAge
// больше максимального времени конвертации.
type Janitor struct {
	dir      string
	schedule cron.Schedule
	expr     string
	maxAge   time.Duration
	logger   *slog.Logger

	cron *cron.Cron
}

// New создаёт Janitor. Возвращает ошибку при некорректном cron-выражении.
func New(cfg Config) (*Janitor, error) {
	expr := cfg.Schedule
	if expr == "" {
		expr = defaultSchedule
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		dir:      cfg.Dir,
		schedule: schedule,
		expr:     expr,
		maxAge:   maxAge,
		logger:   logger,
	}, nil
}

// Start запускает периодическую очистку.
func (j *Janitor) Start() {
	j.cron = cron.New(cron.WithParser(cronParser))
	j.cron.Schedule(j.schedule, cron.FuncJob(func() {
		if _, err := j.Sweep(time.Now()); err != nil {
			j.logger.Warn("janitor sweep failed", "error", err)
		}
	}))
	j.cron.Start()

	j.logger.Info("janitor started",
		"dir", j.dir,
		"schedule", j.expr,
		"max_age", j.maxAge,
		"next_run", j.schedule.Next(time.Now()),
	)
}

// Stop останавливает очистку и ждёт завершения текущего прохода.
func (j *Janitor) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}

	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
	j.logger.Info("janitor stopped")
}

// Sweep удаляет staged-файлы старше MaxAge относительно now.
// Возвращает количество удалённых файлов. Ошибка удаления одного
// файла не прерывает проход.
func (j *Janitor) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", j.dir, err)
	}

	var removed int
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), converter.StagedFilePrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Файл удалён между ReadDir и Info
			continue
		}
		if now.Sub(info.ModTime()) < j.maxAge {
			continue
		}

		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
		j.logger.Info("removed stale staged file", "path", path, "age", now.Sub(info.ModTime()))
	}

	if removed > 0 {
		telemetry.JanitorRemovedTotal.Add(float64(removed))
	}
	return removed, errors.Join(errs...)
}
