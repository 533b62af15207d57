// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — потребление событий
//
// docconv-api публикует conversion.finished после каждого запроса,
// docconv-audit потребляет события и пишет историю в Postgres.
// Брокер необязателен: без RABBITMQ_URL события не публикуются.
package mq
