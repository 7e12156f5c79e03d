package repository

import (
	"context"

	"myblog/internal/database"
	"myblog/internal/observability"

	"gorm.io/gorm"
)

// instrument wraps a repository call in a span and a latency observation.
type instrument struct {
	table string
}

func (i instrument) start(ctx context.Context, db *gorm.DB, method string) (context.Context, func(error)) {
	ctx, span := observability.StartRepositorySpan(ctx, database.Dialect(db), i.table, method)
	done := observability.TrackQuery(method, i.table)
	return ctx, func(err error) {
		done()
		observability.EndSpan(span, err)
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
