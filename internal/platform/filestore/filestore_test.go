package filestore

import (
	"context"
	"errors"
	"testing"
)

func testStore(t *testing.T, s FileStore) {
	t.Helper()
	ctx := context.Background()

	if err := s.Put(ctx, "a.pdf", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := s.Get(ctx, "a.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Get returned %q, want %q", data, "hello")
	}

	size, err := s.Stat(ctx, "a.pdf")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if size != 5 {
		t.Errorf("Stat returned %d, want 5", size)
	}

	if err := s.Copy(ctx, "a.pdf", "b.pdf"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	cp, err := s.Get(ctx, "b.pdf")
	if err != nil {
		t.Fatalf("Get copy: %v", err)
	}
	if string(cp) != "hello" {
		t.Errorf("copy content = %q, want %q", cp, "hello")
	}

	if _, err := s.Get(ctx, "missing.pdf"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Get missing: got %v, want ErrFileNotFound", err)
	}
	if _, err := s.Stat(ctx, "missing.pdf"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Stat missing: got %v, want ErrFileNotFound", err)
	}
	if err := s.Copy(ctx, "missing.pdf", "c.pdf"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Copy missing: got %v, want ErrFileNotFound", err)
	}
}

func TestDiskStore(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	testStore(t, s)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestInvalidNames(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, name := range []string{"", "../etc/passwd", "a/b.pdf", `a\b.pdf`} {
		if err := s.Put(ctx, name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Put(%q): got %v, want ErrInvalidName", name, err)
		}
		if _, err := s.Get(ctx, name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Get(%q): got %v, want ErrInvalidName", name, err)
		}
	}
}

func TestMemoryStore_CopySemantics(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	original := []byte("content")
	if err := s.Put(ctx, "x.pdf", original); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Mutating the caller's slice must not affect the stored copy.
	original[0] = 'X'

	data, err := s.Get(ctx, "x.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("stored data mutated: %q", data)
	}
}
