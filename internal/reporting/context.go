package reporting

import (
	"context"
	"maps"
	"time"
)

type reportingMetaContextKey struct{}

type ReportingMeta struct {
	tags      map[string]string
	extras    map[string]string
	startedAt time.Time
}

func MetaFromContext(ctx context.Context) ReportingMeta {
	meta, ok := ctx.Value(reportingMetaContextKey{}).(ReportingMeta)
	if !ok {
		return ReportingMeta{
			tags:      make(map[string]string),
			extras:    make(map[string]string),
			startedAt: time.Time{},
		}
	}
	return ReportingMeta{
		tags:      maps.Clone(meta.tags),
		extras:    maps.Clone(meta.extras),
		startedAt: meta.startedAt,
	}
}

func (m ReportingMeta) Tags() map[string]string {
	return maps.Clone(m.tags)
}

func (m ReportingMeta) Extras() map[string]string {
	return maps.Clone(m.extras)
}

func addMetaToContext(ctx context.Context, meta ReportingMeta) context.Context {
	return context.WithValue(ctx, reportingMetaContextKey{}, meta)
}

func setStartedAtInContext(ctx context.Context, startedAt time.Time) context.Context {
	meta := MetaFromContext(ctx)
	meta.startedAt = startedAt

	return addMetaToContext(ctx, meta)
}

func AddExtrasToContext(ctx context.Context, extras map[string]string) context.Context {
	meta := MetaFromContext(ctx)
	maps.Copy(meta.extras, extras)
	return addMetaToContext(ctx, meta)
}

func AddTagsToContext(ctx context.Context, tags map[string]string) context.Context {
	meta := MetaFromContext(ctx)
	maps.Copy(meta.tags, tags)
	return addMetaToContext(ctx, meta)
}
