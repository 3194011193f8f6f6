package usecase

import (
	"context"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
)

// Transformer is the processing step between loading and rewriting a table.
type Transformer interface {
	Transform(ctx context.Context, table entity.Table) (entity.Table, error)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, table entity.Table) (entity.Table, error)

// Transform calls f.
func (f TransformFunc) Transform(ctx context.Context, table entity.Table) (entity.Table, error) {
	return f(ctx, table)
}

// Identity returns its input unchanged. It is the only transformation today.
type Identity struct{}

// Transform returns table as is.
func (Identity) Transform(_ context.Context, table entity.Table) (entity.Table, error) {
	return table, nil
}
