package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/docconv/internal/domain"
)

// Лимиты выборки истории.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// schema — таблица истории конвертаций. Создаётся при старте сервиса.
const schema = `
	CREATE TABLE IF NOT EXISTS conversions (
		id               UUID PRIMARY KEY,
		file_name        TEXT        NOT NULL,
		result_file_name TEXT,
		task_id          TEXT,
		outcome          TEXT        NOT NULL,
		error            TEXT,
		poll_attempts    INT         NOT NULL DEFAULT 0,
		input_size       BIGINT      NOT NULL DEFAULT 0,
		started_at       TIMESTAMPTZ NOT NULL,
		finished_at      TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS conversions_started_at_idx ON conversions (started_at DESC);
`

// ConversionRepo — журнал завершённых конвертаций.
// Хранит только метаданные: содержимое файлов и токены не сохраняются.
type ConversionRepo struct {
	pool *pgxpool.Pool
}

// NewConversionRepo создаёт новый ConversionRepo.
func NewConversionRepo(pool *pgxpool.Pool) *ConversionRepo {
	return &ConversionRepo{pool: pool}
}

// EnsureSchema создаёт таблицу, если её нет.
func (r *ConversionRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save сохраняет запись. Повторная доставка того же события
// перезаписывает запись, а не создаёт дубликат.
func (r *ConversionRepo) Save(ctx context.Context, c *domain.Conversion) error {
	query := `
		INSERT INTO conversions (id, file_name, result_file_name, task_id, outcome, error,
		                         poll_attempts, input_size, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET result_file_name = EXCLUDED.result_file_name,
		    task_id = EXCLUDED.task_id,
		    outcome = EXCLUDED.outcome,
		    error = EXCLUDED.error,
		    poll_attempts = EXCLUDED.poll_attempts,
		    finished_at = EXCLUDED.finished_at
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.FileName,
		nullString(c.ResultFileName),
		nullString(c.TaskID),
		string(c.Outcome),
		nullString(c.Error),
		c.PollAttempts,
		c.InputSize,
		c.StartedAt,
		c.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversion: %w", err)
	}
	return nil
}

// GetByID возвращает запись по ID.
func (r *ConversionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversion, error) {
	query := `
		SELECT id, file_name, result_file_name, task_id, outcome, error,
		       poll_attempts, input_size, started_at, finished_at
		FROM conversions
		WHERE id = $1
	`
	c, err := scanConversion(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List возвращает последние записи (новые первыми).
func (r *ConversionRepo) List(ctx context.Context, limit int) ([]domain.Conversion, error) {
	query := `
		SELECT id, file_name, result_file_name, task_id, outcome, error,
		       poll_attempts, input_size, started_at, finished_at
		FROM conversions
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()

	var conversions []domain.Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, *c)
	}
	return conversions, rows.Err()
}

// ClampLimit приводит limit к диапазону [1, MaxListLimit].
// Нулевое или отрицательное значение заменяется на DefaultListLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// scanConversion сканирует одну строку в Conversion.
// pgx.Rows удовлетворяет pgx.Row, поэтому функция общая для QueryRow и Query.
func scanConversion(row pgx.Row) (*domain.Conversion, error) {
	var c domain.Conversion
	var resultFileName, taskID, convError *string
	var outcome string

	err := row.Scan(
		&c.ID,
		&c.FileName,
		&resultFileName,
		&taskID,
		&outcome,
		&convError,
		&c.PollAttempts,
		&c.InputSize,
		&c.StartedAt,
		&c.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversion: %w", err)
	}

	c.Outcome = domain.Outcome(outcome)
	if resultFileName != nil {
		c.ResultFileName = *resultFileName
	}
	if taskID != nil {
		c.TaskID = *taskID
	}
	if convError != nil {
		c.Error = *convError
	}

	return &c, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
