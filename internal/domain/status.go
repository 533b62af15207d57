package domain

import "strings"

// TaskStatus — статус задачи конвертации на стороне вендора.
//
// Жизненный цикл (управляется только вендором, локально лишь опрашивается):
//
//	pending → success
//	        ↘ failed
//
// Таймаут не является статусом вендора: он возникает локально,
// когда попытки опроса исчерпаны.
type TaskStatus string

const (
	// TaskStatusPending — задача принята, результат ещё не готов.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusSuccess — конвертация завершена, доступна ссылка на результат.
	TaskStatusSuccess TaskStatus = "success"

	// TaskStatusFailed — вендор сообщил об ошибке конвертации.
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// ParseTaskStatus парсит статус из ответа вендора.
// Неизвестные значения считаются pending: опрос продолжается до исчерпания попыток.
func ParseTaskStatus(s string) TaskStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "succeeded", "finished", "taskfinish":
		return TaskStatusSuccess
	case "failed", "fail", "error", "taskfailed":
		return TaskStatusFailed
	default:
		return TaskStatusPending
	}
}

// Outcome — итог обработки одного запроса на конвертацию.
type Outcome string

const (
	// OutcomeSucceeded — результат отдан клиенту.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed — ошибка одного из шагов (код вендора, сеть, задача failed).
	OutcomeFailed Outcome = "failed"

	// OutcomeTimeout — попытки опроса исчерпаны без финального статуса.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeRejected — запрос отклонён до обращения к вендору (нет файла, не multipart).
	OutcomeRejected Outcome = "rejected"
)

// String возвращает строковое представление Outcome.
func (o Outcome) String() string {
	return string(o)
}
