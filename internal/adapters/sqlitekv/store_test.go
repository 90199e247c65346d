package sqlitekv

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geopin.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestSetGetDelete(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "geopin:history", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, "geopin:history")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte(`[{"id":"a"}]`)) {
		t.Errorf("expected stored blob back, got %q", got)
	}

	// Overwrite
	if err := store.Set(ctx, "geopin:history", []byte(`[]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Get(ctx, "geopin:history")
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if !bytes.Equal(got, []byte(`[]`)) {
		t.Errorf("expected overwritten blob, got %q", got)
	}

	if err := store.Delete(ctx, "geopin:history"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = store.Get(ctx, "geopin:history")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for deleted key, got %q", got)
	}
}

func TestGetAbsentKey(t *testing.T) {
	store, _ := openStore(t)

	got, err := store.Get(context.Background(), "never-written")
	if err != nil {
		t.Fatalf("expected absent key to be silent, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil value, got %q", got)
	}
}

func TestDeleteAbsentKey(t *testing.T) {
	store, _ := openStore(t)

	if err := store.Delete(context.Background(), "never-written"); err != nil {
		t.Errorf("expected delete of absent key to succeed, got %v", err)
	}
}

func TestValueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geopin.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("expected value to survive reopen, got %q", got)
	}
}

func TestCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "geopin.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("expected parent dirs to be created, got %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
