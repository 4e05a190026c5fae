package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap/zaptest"

	"github.com/harborcd/harborcd/pkg/badgerfx"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	db, err := badger.Open(badgerfx.Config{InMemory: true}.Build().WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	return NewRegistry(NewRepository(db), zaptest.NewLogger(t))
}

func TestRegistry_NameUnique(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	if _, err := registry.Create(ctx, &ServiceDraft{Name: "checkout"}); err != nil {
		t.Fatal(err)
	}

	if _, err := registry.Create(ctx, &ServiceDraft{Name: "checkout"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	created, err := registry.Create(ctx, &ServiceDraft{Name: "checkout", Description: "payments"})
	if err != nil {
		t.Fatal(err)
	}
	if !created.Active {
		t.Fatal("expected new service to be active")
	}

	updated, err := registry.Update(ctx, created.ID, func(service *Service) error {
		service.Active = false
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Active {
		t.Fatal("expected service deactivated")
	}

	if err := registry.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
