// Package telemetry обеспечивает структурное логирование через slog:
// настройку глобального логгера, передачу логгера через context.Context
// и With*-хелперы, добавляющие к логгеру доменные идентификаторы
// (instance_name, instance_id, trigger_key, job_key, lock_type). Prometheus-метрики живут отдельно, в internal/metrics.
package telemetry
