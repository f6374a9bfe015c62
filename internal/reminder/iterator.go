package reminder

import (
	"context"

	"github.com/google/uuid"
)

// FetchFunc retrieves one page of results at the given offset. It returns an
// empty slice when the offset is past the end of the result set.
type FetchFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

type iterState int

const (
	iterNeedFetch iterState = iota
	iterBuffered
	iterExhausted
)

// UpdatableQueryIterator iterates a paged query whose underlying result set
// may mutate while the iteration is in flight: records already yielded can be
// updated so that they no longer match the query, shifting later records to
// earlier offsets. Callers signal such mutations via Updated, which makes the
// next fetch restart from offset zero. A set of already-yielded identifiers
// guarantees each identifier is yielded at most once per iterator lifetime,
// however often the cursor restarts.
type UpdatableQueryIterator[T any] struct {
	fetch    FetchFunc[T]
	id       func(T) uuid.UUID
	pageSize int

	state   iterState
	offset  int
	buf     []T
	seen    map[uuid.UUID]bool
	updated bool
}

// NewUpdatableQueryIterator returns an iterator over fetch, de-duplicating on
// the identifier extracted by id. pageSize must be positive.
func NewUpdatableQueryIterator[T any](fetch FetchFunc[T], id func(T) uuid.UUID, pageSize int) *UpdatableQueryIterator[T] {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &UpdatableQueryIterator[T]{
		fetch:    fetch,
		id:       id,
		pageSize: pageSize,
		seen:     make(map[uuid.UUID]bool),
	}
}

// Updated signals that the underlying result set has changed. The next fetch
// restarts from offset zero; already-yielded identifiers remain filtered out.
// An exhausted iterator becomes live again so that records added since the
// last fetch are picked up.
func (it *UpdatableQueryIterator[T]) Updated() {
	it.updated = true
	if it.state == iterExhausted {
		it.state = iterNeedFetch
	}
}

// Next returns the next unseen element. ok is false when the iteration is
// exhausted. Buffered elements from the current page are drained before any
// restart requested via Updated takes effect.
func (it *UpdatableQueryIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		switch it.state {
		case iterExhausted:
			return zero, false, nil
		case iterBuffered:
			if len(it.buf) > 0 {
				next := it.buf[0]
				it.buf = it.buf[1:]
				it.seen[it.id(next)] = true
				return next, true, nil
			}
			it.state = iterNeedFetch
		case iterNeedFetch:
			if err := it.fill(ctx); err != nil {
				return zero, false, err
			}
		}
	}
}

// fill fetches pages until it buffers at least one unseen element or runs out
// of results. A page consisting entirely of seen identifiers advances the
// offset and re-fetches, so a restarted cursor cannot loop forever over data
// it has already yielded.
func (it *UpdatableQueryIterator[T]) fill(ctx context.Context) error {
	for {
		if it.updated {
			it.offset = 0
			it.updated = false
		}
		page, err := it.fetch(ctx, it.offset, it.pageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			it.state = iterExhausted
			return nil
		}
		it.offset += len(page)
		unseen := page[:0:0]
		for _, el := range page {
			if !it.seen[it.id(el)] {
				unseen = append(unseen, el)
			}
		}
		if len(unseen) > 0 {
			it.buf = unseen
			it.state = iterBuffered
			return nil
		}
	}
}

// NewReminderIterator returns a cursor-stable iterator over due reminders,
// de-duplicated on reminder id.
func NewReminderIterator(fetch FetchFunc[*Reminder], pageSize int) *UpdatableQueryIterator[*Reminder] {
	return NewUpdatableQueryIterator(fetch, func(r *Reminder) uuid.UUID { return r.ID }, pageSize)
}

// NewItemIterator returns a cursor-stable iterator over pending reminder
// items, de-duplicated on item id.
func NewItemIterator(fetch FetchFunc[*ItemRow], pageSize int) *UpdatableQueryIterator[*ItemRow] {
	return NewUpdatableQueryIterator(fetch, func(row *ItemRow) uuid.UUID { return row.Item.ID }, pageSize)
}
