package telemetry

import (
	"context"
	"log/slog"
	"os"
)

// LogLevel определяет уровень логирования из переменной окружения.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func LogLevel() slog.Level {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию) — JSON формат для production
//   - "text" — человекочитаемый формат для разработки
func SetupLogger() *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: LogLevel() == slog.LevelDebug,
	}

	format := os.Getenv("LOG_FORMAT")
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithInstanceName возвращает логгер с добавленным instance_name —
// логической идентичностью кластера инстансов.
func WithInstanceName(logger *slog.Logger, instanceName string) *slog.Logger {
	return logger.With("instance_name", instanceName)
}

// WithInstanceID возвращает логгер с добавленным instance_id — физической
// идентичностью конкретного процесса.
func WithInstanceID(logger *slog.Logger, instanceID string) *slog.Logger {
	return logger.With("instance_id", instanceID)
}

// WithTriggerKey возвращает логгер с добавленным trigger_key в формате
// "group/name".
func WithTriggerKey(logger *slog.Logger, group, name string) *slog.Logger {
	return logger.With("trigger_key", group+"/"+name)
}

// WithJobKey возвращает логгер с добавленным job_key в формате
// "group/name".
func WithJobKey(logger *slog.Logger, group, name string) *slog.Logger {
	return logger.With("job_key", group+"/"+name)
}

// WithLockType возвращает логгер с добавленным lock_type.
func WithLockType(logger *slog.Logger, lockType string) *slog.Logger {
	return logger.With("lock_type", lockType)
}
