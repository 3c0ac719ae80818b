// Package inmem is an in-memory, goroutine-safe table store used by the sandbox API.
package inmem

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// Table holds rows of T keyed by an auto-incremented primary key.
type Table[T any] struct {
	mu      sync.RWMutex
	pkCount int
	rows    map[int]*T
	setPK   func(row *T, pk int)
}

// NewTable returns an empty table. setPK stores the generated primary key in a new row.
func NewTable[T any](setPK func(row *T, pk int)) *Table[T] {
	return &Table[T]{rows: make(map[int]*T), setPK: setPK}
}

// query returns the rows ordered by primary key. The caller must hold the lock.
func (t *Table[T]) query() []T {
	pks := make([]int, 0, len(t.rows))
	for pk := range t.rows {
		pks = append(pks, pk)
	}
	sort.Ints(pks)
	rows := make([]T, 0, len(pks))
	for _, pk := range pks {
		rows = append(rows, *t.rows[pk])
	}
	return rows
}

func (t *Table[T]) Insert(row T) T {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pkCount++
	t.setPK(&row, t.pkCount)
	t.rows[t.pkCount] = &row
	return row
}

func (t *Table[T]) All() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.query()
}

// Filter returns the rows matching `fn`, ordered by primary key.
func (t *Table[T]) Filter(fn func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]T, 0)
	for _, row := range t.query() {
		if fn(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

// Find returns the first row matching `fn`.
func (t *Table[T]) Find(fn func(T) bool) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, row := range t.query() {
		if fn(row) {
			return row, nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

func (t *Table[T]) Get(pk int) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if row, ok := t.rows[pk]; ok {
		return *row, nil
	}
	var zero T
	return zero, ErrNotFound
}

// Update applies `fn` to the row and returns its new value.
func (t *Table[T]) Update(pk int, fn func(row *T)) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[pk]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	updated := *row
	fn(&updated)
	t.setPK(&updated, pk) // the primary key cannot change
	t.rows[pk] = &updated
	return updated, nil
}

// Delete deletes rows by primary key and returns how many existed.
func (t *Table[T]) Delete(pks ...int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	for _, pk := range pks {
		if _, ok := t.rows[pk]; ok {
			delete(t.rows, pk)
			n++
		}
	}
	return n
}

// DeleteWhere deletes the rows matching `fn` and returns how many were deleted.
func (t *Table[T]) DeleteWhere(fn func(T) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	for pk, row := range t.rows {
		if fn(*row) {
			delete(t.rows, pk)
			n++
		}
	}
	return n
}

func (t *Table[T]) Count(fn func(T) bool) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if fn == nil {
		return len(t.rows)
	}
	var n int
	for _, row := range t.rows {
		if fn(*row) {
			n++
		}
	}
	return n
}

// Reset empties the table and restarts the primary key sequence.
func (t *Table[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = make(map[int]*T)
	t.pkCount = 0
}
