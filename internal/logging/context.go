package logging

import (
	"context"
	"log/slog"
	"os"
)

type loggerContextKey struct{}

func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger)
	if !ok || logger == nil {
		fallback := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		fallback = fallback.With(slog.String("logger", "fallback"))
		return fallback
	}
	return logger
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

func AddMetaToContext(ctx context.Context, args ...slog.Attr) context.Context {
	logger := FromContext(ctx)

	anySlice := make([]any, len(args))
	for i, arg := range args {
		anySlice[i] = arg
	}

	return AddToContext(ctx, logger.With(anySlice...))
}

// ParseLevel maps a level name from the environment to a slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return parsed
}
