// Package telemetry обеспечивает наблюдаемость docconv.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики конвертаций и вызовов вендора
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
