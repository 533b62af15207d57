// Package api содержит HTTP API сервер docconv.
//
// Структура:
//   - handler.go            — Handler с DI (converter, stager, events, history, logger)
//   - routes.go             — регистрация маршрутов, /healthz, /metrics
//   - middleware.go         — middleware (logging, recovery, CORS)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects
//   - convert_handler.go    — приём файла и отдача результата конвертации
//   - conversion_handler.go — история конвертаций
//
// Успешная конвертация отдаётся бинарным потоком с Content-Disposition.
// Ошибки — JSON вида {"error":{"code","message"}}.
package api
