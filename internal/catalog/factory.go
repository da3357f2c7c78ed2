package catalog

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed catalog when configured, otherwise
// in-memory. Either way the default course set is seeded for missing IDs.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	var store Store
	if strings.TrimSpace(databaseURL) == "" {
		store = NewInMemoryStore()
	} else {
		pg, err := NewPostgresStore(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		store = pg
	}

	if err := seedMissing(ctx, store); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func seedMissing(ctx context.Context, store Store) error {
	for _, course := range DefaultCourses() {
		if _, err := store.Get(ctx, course.ID); err == nil {
			continue
		}
		if err := store.Put(ctx, course); err != nil {
			return err
		}
	}
	return nil
}
