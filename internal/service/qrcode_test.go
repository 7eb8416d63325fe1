package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sakif/qr-genius/internal/apperror"
	"github.com/sakif/qr-genius/internal/model"
	"github.com/sakif/qr-genius/internal/qr"
	"github.com/sakif/qr-genius/internal/storage"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeQRRepo is an in-memory implementation of repository.QRCodeRepository.
type fakeQRRepo struct {
	byID   map[int64]*model.QRCode
	nextID int64
	// set to a non-nil error to make Create fail
	createErr error
}

func newFakeQRRepo() *fakeQRRepo {
	return &fakeQRRepo{byID: make(map[int64]*model.QRCode), nextID: 1}
}

func (f *fakeQRRepo) Create(ctx context.Context, code *model.QRCode) error {
	if f.createErr != nil {
		return f.createErr
	}
	code.ID = f.nextID
	f.nextID++
	code.CreatedAt = time.Now()
	copied := *code
	f.byID[code.ID] = &copied
	return nil
}

func (f *fakeQRRepo) GetByID(ctx context.Context, id int64) (*model.QRCode, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("qr code", strconv.FormatInt(id, 10))
	}
	copied := *c
	return &copied, nil
}

func (f *fakeQRRepo) ListByUser(ctx context.Context, userID int64) ([]model.QRCode, error) {
	out := []model.QRCode{}
	for _, c := range f.byID {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeQRRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return apperror.NotFound("qr code", strconv.FormatInt(id, 10))
	}
	delete(f.byID, id)
	return nil
}

// memStore is an in-memory storage.Store.
type memStore struct {
	objects map[string][]byte
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Save(ctx context.Context, name string, data []byte, contentType string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.objects[name] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, ok := m.objects[name]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(ctx context.Context, name string) error {
	if _, ok := m.objects[name]; !ok {
		return storage.ErrNotExist
	}
	delete(m.objects, name)
	return nil
}

func newTestQRService(repo *fakeQRRepo, store *memStore) *QRCodeService {
	return NewQRCodeService(repo, store, qr.NewEncoder(), "http://localhost:8080", discardLogger())
}

// =========================================================================
// GENERATE
// =========================================================================

func TestGenerate(t *testing.T) {
	repo := newFakeQRRepo()
	store := newMemStore()
	svc := newTestQRService(repo, store)

	code, err := svc.Generate(context.Background(), 7, "https://example.com/page", "PNG")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if code.ID == 0 {
		t.Error("expected a non-zero ID")
	}
	if code.UserID != 7 {
		t.Errorf("expected owner 7, got %d", code.UserID)
	}
	if code.Format != model.FormatPNG {
		t.Errorf("expected PNG format, got %q", code.Format)
	}
	if !strings.HasPrefix(code.Filename, "qr_code_") || !strings.HasSuffix(code.Filename, ".png") {
		t.Errorf("unexpected filename %q", code.Filename)
	}
	if code.DownloadURL != "http://localhost:8080/download_qr/1" {
		t.Errorf("unexpected download URL %q", code.DownloadURL)
	}
	if _, ok := store.objects[code.Filename]; !ok {
		t.Error("image was not saved to the store")
	}
}

func TestGenerateDefaultsToPNG(t *testing.T) {
	svc := newTestQRService(newFakeQRRepo(), newMemStore())

	code, err := svc.Generate(context.Background(), 1, "https://example.com", "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if code.Format != model.FormatPNG {
		t.Errorf("expected empty format to default to PNG, got %q", code.Format)
	}
}

func TestGenerateSVG(t *testing.T) {
	store := newMemStore()
	svc := newTestQRService(newFakeQRRepo(), store)

	code, err := svc.Generate(context.Background(), 1, "https://example.com", "svg")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if code.Format != model.FormatSVG {
		t.Errorf("expected SVG, got %q", code.Format)
	}
	if !strings.HasSuffix(code.Filename, ".svg") {
		t.Errorf("unexpected filename %q", code.Filename)
	}
	if !bytes.Contains(store.objects[code.Filename], []byte("<svg")) {
		t.Error("stored object is not an SVG document")
	}
}

func TestGenerateValidation(t *testing.T) {
	svc := newTestQRService(newFakeQRRepo(), newMemStore())

	tests := []struct {
		name   string
		url    string
		format string
	}{
		{"empty url", "", "PNG"},
		{"not a url", "not-a-url", "PNG"},
		{"relative url", "/just/a/path", "PNG"},
		{"ftp scheme", "ftp://example.com/file", "PNG"},
		{"missing host", "https://", "PNG"},
		{"loopback ip", "http://127.0.0.1/admin", "PNG"},
		{"private ip", "http://192.168.1.1/router", "PNG"},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxTargetURLLength), "PNG"},
		{"unknown format", "https://example.com", "GIF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Generate(context.Background(), 1, tt.url, tt.format)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestGenerateRollsBackImageOnInsertFailure(t *testing.T) {
	repo := newFakeQRRepo()
	repo.createErr = errors.New("disk full")
	store := newMemStore()
	svc := newTestQRService(repo, store)

	_, err := svc.Generate(context.Background(), 1, "https://example.com", "PNG")
	if err == nil {
		t.Fatal("expected Generate to fail")
	}
	if len(store.objects) != 0 {
		t.Errorf("expected the saved image to be rolled back, %d objects remain", len(store.objects))
	}
}

func TestGenerateStorageFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("bucket unreachable")
	svc := newTestQRService(newFakeQRRepo(), store)

	_, err := svc.Generate(context.Background(), 1, "https://example.com", "PNG")
	if !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

// =========================================================================
// LIST
// =========================================================================

func TestListScopedToOwner(t *testing.T) {
	svc := newTestQRService(newFakeQRRepo(), newMemStore())

	for i := 0; i < 3; i++ {
		if _, err := svc.Generate(context.Background(), 1, "https://example.com/a", "PNG"); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}
	if _, err := svc.Generate(context.Background(), 2, "https://example.com/b", "PNG"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	codes, err := svc.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("expected 3 records for owner 1, got %d", len(codes))
	}
	for _, c := range codes {
		if c.UserID != 1 {
			t.Errorf("record %d belongs to user %d", c.ID, c.UserID)
		}
		if c.DownloadURL == "" {
			t.Errorf("record %d has no download URL", c.ID)
		}
	}
}

func TestListEmptyIsNotNil(t *testing.T) {
	svc := newTestQRService(newFakeQRRepo(), newMemStore())

	codes, err := svc.List(context.Background(), 99)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if codes == nil {
		t.Error("expected an empty slice, got nil")
	}
	if len(codes) != 0 {
		t.Errorf("expected no records, got %d", len(codes))
	}
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete(t *testing.T) {
	repo := newFakeQRRepo()
	store := newMemStore()
	svc := newTestQRService(repo, store)

	code, err := svc.Generate(context.Background(), 1, "https://example.com", "PNG")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if err := svc.Delete(context.Background(), 1, code.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := store.objects[code.Filename]; ok {
		t.Error("image was not removed from the store")
	}
	if err := svc.Delete(context.Background(), 1, code.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteOwnership(t *testing.T) {
	svc := newTestQRService(newFakeQRRepo(), newMemStore())

	code, err := svc.Generate(context.Background(), 1, "https://example.com", "PNG")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if err := svc.Delete(context.Background(), 2, code.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected ErrForbidden for another user's record, got %v", err)
	}
	if err := svc.Delete(context.Background(), 2, 9999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown record, got %v", err)
	}
}

func TestDeleteToleratesMissingImage(t *testing.T) {
	repo := newFakeQRRepo()
	store := newMemStore()
	svc := newTestQRService(repo, store)

	code, err := svc.Generate(context.Background(), 1, "https://example.com", "PNG")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	delete(store.objects, code.Filename)

	if err := svc.Delete(context.Background(), 1, code.ID); err != nil {
		t.Errorf("Delete should succeed when the image is already gone, got %v", err)
	}
}

// =========================================================================
// DOWNLOAD
// =========================================================================

func TestDownload(t *testing.T) {
	store := newMemStore()
	svc := newTestQRService(newFakeQRRepo(), store)

	code, err := svc.Generate(context.Background(), 1, "https://example.com", "PNG")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	record, reader, err := svc.Download(context.Background(), 1, code.ID)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading image: %v", err)
	}
	if !bytes.Equal(data, store.objects[code.Filename]) {
		t.Error("downloaded bytes differ from the saved image")
	}
	if record.Filename != code.Filename {
		t.Errorf("expected filename %q, got %q", code.Filename, record.Filename)
	}
}

func TestDownloadOwnership(t *testing.T) {
	svc := newTestQRService(newFakeQRRepo(), newMemStore())

	code, err := svc.Generate(context.Background(), 1, "https://example.com", "PNG")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, _, err := svc.Download(context.Background(), 2, code.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, _, err := svc.Download(context.Background(), 1, 9999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDownloadMissingImage(t *testing.T) {
	store := newMemStore()
	svc := newTestQRService(newFakeQRRepo(), store)

	code, err := svc.Generate(context.Background(), 1, "https://example.com", "PNG")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	delete(store.objects, code.Filename)

	_, _, err = svc.Download(context.Background(), 1, code.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound when the image is gone, got %v", err)
	}
}
