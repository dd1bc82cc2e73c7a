package viewloader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Amund211/viewcache/internal/domain"
	"github.com/Amund211/viewcache/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Filesystem struct {
	readFile func(name string) ([]byte, error)
	tracer   trace.Tracer
}

func NewFilesystem() *Filesystem {
	return &Filesystem{
		readFile: os.ReadFile,
		tracer:   otel.Tracer("viewcache/viewloader"),
	}
}

// NewFS reads views from fsys instead of the os filesystem. Keys must be valid fs paths.
func NewFS(fsys fs.FS) *Filesystem {
	return &Filesystem{
		readFile: func(name string) ([]byte, error) {
			return fs.ReadFile(fsys, name)
		},
		tracer: otel.Tracer("viewcache/viewloader"),
	}
}

func (l *Filesystem) Load(ctx context.Context, key string) (string, error) {
	ctx, span := l.tracer.Start(ctx, "Filesystem.Load", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	data, err := l.readFile(key)
	if errors.Is(err, fs.ErrNotExist) {
		span.SetStatus(codes.Error, "not found")
		return "", fmt.Errorf("%w: %s", domain.ErrViewNotFound, key)
	}
	if err != nil {
		err := fmt.Errorf("%w: %w", domain.ErrLoadFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to read view", "key", key, "error", err.Error())
		return "", err
	}

	return string(data), nil
}
