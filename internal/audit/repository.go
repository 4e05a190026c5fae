package audit

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/harborcd/harborcd/pkg/badgerfx"
)

// Repository stores audit entries. Entries are append-only; there is no
// update or delete path.
type Repository struct {
	db    *badger.DB
	store *badgerfx.Repository[*entryModel]
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db:    db,
		store: badgerfx.NewRepository(func() *entryModel { return &entryModel{} }),
	}
}

// Append stores a new audit entry.
func (r *Repository) Append(_ context.Context, draft *EntryDraft) (*Entry, error) {
	model := newEntryModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		return r.store.Write(txn, model)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	return newEntry(model), nil
}

// List returns entries matching the filter, most recent first.
func (r *Repository) List(_ context.Context, filter Filter) ([]Entry, error) {
	var entries []Entry

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = 16

		models, err := r.store.ListByIndex(txn, prefixByTime, opts)
		if err != nil {
			return err
		}

		skipped := 0
		for _, model := range models {
			entry := newEntry(model)
			if !filter.matches(entry) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}

			entries = append(entries, *entry)
			if filter.Limit > 0 && len(entries) >= filter.Limit {
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	return entries, nil
}
