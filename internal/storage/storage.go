package storage

import (
	"context"
	"errors"

	"elasticOps/internal/model"
)

// Storage defines a sink for operation records.
type Storage interface {
	PutOperations(ctx context.Context, records []model.OperationRecord) error
}

// Fanout writes every batch to each sink, joining the failures.
type Fanout []Storage

func (f Fanout) PutOperations(ctx context.Context, records []model.OperationRecord) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.PutOperations(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
