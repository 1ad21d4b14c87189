package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalRoundTrip(t *testing.T) {
	driver, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	ctx := context.Background()

	content := "hello documents"
	if err := driver.Put(ctx, "abc123", strings.NewReader(content), int64(len(content)), "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := driver.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != content {
		t.Fatalf("expected %q got %q", content, string(data))
	}

	if err := driver.Delete(ctx, "abc123"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := driver.Get(ctx, "abc123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLocalRejectsPathKeys(t *testing.T) {
	driver, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	if err := driver.Put(context.Background(), "../evil", strings.NewReader("x"), 1, ""); err == nil {
		t.Fatal("expected error for key containing a path separator")
	}
}

func TestLocalDeleteMissingIsNoop(t *testing.T) {
	driver, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	if err := driver.Delete(context.Background(), "nothere"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}
