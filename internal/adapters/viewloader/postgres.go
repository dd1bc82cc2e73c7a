package viewloader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Amund211/viewcache/internal/domain"
	"github.com/Amund211/viewcache/internal/logging"
	"github.com/Amund211/viewcache/internal/reporting"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db     *sqlx.DB
	schema string
	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	return &Postgres{
		db:     db,
		schema: schema,
		tracer: otel.Tracer("viewcache/viewloader"),
	}
}

type dbView struct {
	Key     string `db:"key"`
	Content string `db:"content"`
}

func (p *Postgres) Load(ctx context.Context, key string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.Load", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	conn, err := p.db.Connx(ctx)
	if err != nil {
		err := fmt.Errorf("%w: failed to get connection: %w", domain.ErrLoadFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "connection failed")
		reporting.Report(ctx, err)
		return "", err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(p.schema)))
	if err != nil {
		err := fmt.Errorf("%w: failed to set search path: %w", domain.ErrLoadFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "search path failed")
		reporting.Report(ctx, err, map[string]string{
			"schema": p.schema,
		})
		return "", err
	}

	var view dbView
	err = conn.GetContext(ctx, &view, "SELECT key, content FROM views WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return "", fmt.Errorf("%w: %s", domain.ErrViewNotFound, key)
	}
	if err != nil {
		err := fmt.Errorf("%w: failed to query view: %w", domain.ErrLoadFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		reporting.Report(ctx, err, map[string]string{
			"key": key,
		})
		return "", err
	}

	return view.Content, nil
}

// StoreView inserts or replaces the content of the view with the given key
func (p *Postgres) StoreView(ctx context.Context, key string, content string) error {
	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer txx.Rollback()

	_, err = txx.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(p.schema)))
	if err != nil {
		return fmt.Errorf("failed to set search path: %w", err)
	}

	_, err = txx.ExecContext(
		ctx,
		`INSERT INTO views
		(key, content, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at`,
		key,
		content,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert view: %w", err)
	}

	err = txx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.FromContext(ctx).InfoContext(ctx, "Stored view", "key", key, "bytes", len(content))

	return nil
}
