package reminder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// TypeSource resolves reminder-type definitions. Returns nil with no error
// when the type does not exist.
type TypeSource interface {
	ReminderType(ctx context.Context, id uuid.UUID) (*Type, error)
}

// Types memoizes reminder-type lookups for the duration of one processing
// run, so a batch touching the same types repeatedly reconstructs each
// snapshot once. Not safe for concurrent use; create one per run and discard
// it afterwards so definition changes are picked up by the next run.
type Types struct {
	source TypeSource
	cache  map[uuid.UUID]*Type
}

// NewTypes creates an empty reminder-type cache over the given source.
func NewTypes(source TypeSource) *Types {
	return &Types{source: source, cache: make(map[uuid.UUID]*Type)}
}

// Get returns the reminder type with the given ID, or nil if none exists.
func (t *Types) Get(ctx context.Context, id uuid.UUID) (*Type, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	if cached, ok := t.cache[id]; ok {
		return cached, nil
	}
	loaded, err := t.source.ReminderType(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reminder: load type %s: %w", id, err)
	}
	t.cache[id] = loaded
	return loaded, nil
}
