package storage

import (
	"context"
	"errors"
	"io"
	"testing"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	return s
}

func TestLocalStore_SaveOpenRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := []byte("fake png bytes")
	if err := s.Save(ctx, "qr_code_test.png", want, "image/png"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := s.Open(ctx, "qr_code_test.png")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Open() returned %q, want %q", got, want)
	}
}

func TestLocalStore_OpenMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Open(context.Background(), "no-such-file.png")
	if !errors.Is(err, ErrNotExist) {
		t.Errorf("Open() error = %v, want ErrNotExist", err)
	}
}

func TestLocalStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "qr_code_test.png", []byte("x"), "image/png"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete(ctx, "qr_code_test.png"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := s.Open(ctx, "qr_code_test.png"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Open() after delete error = %v, want ErrNotExist", err)
	}
	if err := s.Delete(ctx, "qr_code_test.png"); !errors.Is(err, ErrNotExist) {
		t.Errorf("second Delete() error = %v, want ErrNotExist", err)
	}
}

// Blob names must not be able to escape the store directory.
func TestLocalStore_StripsPathComponents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "../../etc/evil.png", []byte("x"), "image/png"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// The blob is reachable under its base name inside the directory.
	rc, err := s.Open(ctx, "evil.png")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	rc.Close()
}
