package converter

import (
	"context"
	"time"
)

// Sleeper — ожидание между запросами статуса.
// Подменяется в тестах, чтобы не ждать реальное время.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// timerSleeper — Sleeper на реальном таймере.
type timerSleeper struct{}

// Sleep ждёт d или отмены ctx.
func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
