// Package converter проводит загруженный файл через API конвертации вендора.
//
// Последовательность одного запроса:
//
//	stage → authenticate → create task → upload → execute → poll → download → remove
//
// Stager сохраняет входной файл во временную директорию, Orchestrator
// выполняет шаги вендора строго по порядку. Ошибка шага прерывает
// последовательность; временный файл удаляет вызывающая сторона
// на любом пути завершения.
//
// Опрос статуса ограничен MaxPollAttempts запросами с паузой PollInterval
// между ними. Исчерпание попыток даёт ErrPollTimeout.
package converter
