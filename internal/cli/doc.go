// Package cli реализует инструмент командной строки docconv.
//
// # Обзор
//
// CLI — клиентская утилита для docconv API. Работает через HTTP и не
// импортирует пакеты сервера, кроме domain (проверка расширений и имя
// результата).
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Convert отправляет файл потоком через
// multipart/form-data и сохраняет PDF под именем из Content-Disposition.
//
//	client := cli.NewClient("http://localhost:8080")
//	res, err := client.Convert(ctx, "report.docx", cli.ConvertOptions{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения и индикаторы — в stderr.
// Спиннер (briandowns/spinner) и прогресс загрузки (schollz/progressbar)
// показываются только в терминале.
//
// ## Commands
//
//   - convert FILE [-o PATH]
//   - history [--limit N], history show ID
//   - health
package cli
