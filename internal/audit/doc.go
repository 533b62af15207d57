// Package audit ведёт историю конвертаций.
//
// Recorder работает в процессе docconv-audit: потребляет события
// conversion.finished из RabbitMQ и сохраняет их в Postgres.
// API читает историю через repo.ConversionRepo.
package audit
