package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/qr-genius/internal/apperror"
	"github.com/sakif/qr-genius/internal/model"
	"github.com/sakif/qr-genius/internal/qr"
	"github.com/sakif/qr-genius/internal/repository"
	"github.com/sakif/qr-genius/internal/storage"
)

// MaxTargetURLLength caps the URL we will encode. Longer content forces the
// densest QR versions, which scan poorly at print sizes.
const MaxTargetURLLength = 2048

// QRCodeService generates, lists, deletes and serves QR code records.
// A record is a database row plus an image object in the store; Generate
// keeps the two consistent by deleting the object if the insert fails.
type QRCodeService struct {
	codes   repository.QRCodeRepository
	store   storage.Store
	encoder *qr.Encoder
	// publicURL prefixes download links handed back to clients,
	// e.g. "https://qr-genius.example.com".
	publicURL string
	logger    *slog.Logger
}

// NewQRCodeService creates a QRCodeService with all required dependencies.
func NewQRCodeService(
	codes repository.QRCodeRepository,
	store storage.Store,
	encoder *qr.Encoder,
	publicURL string,
	logger *slog.Logger,
) *QRCodeService {
	return &QRCodeService{
		codes:     codes,
		store:     store,
		encoder:   encoder,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// validateTargetURL checks that raw is an absolute http(s) URL that a QR
// scanner could sensibly open. Hosts that are literal loopback or private
// IPs are rejected so the service is not used to mint codes pointing into
// someone's internal network.
func validateTargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.ValidationFailed("url", "url is required")
	}
	if len(raw) > MaxTargetURLLength {
		return "", apperror.ValidationFailed("url",
			fmt.Sprintf("url must not exceed %d characters", MaxTargetURLLength))
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", apperror.ValidationFailed("url", "invalid url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", apperror.ValidationFailed("url", "url must use http or https")
	}
	if parsed.Host == "" || parsed.Hostname() == "" {
		return "", apperror.ValidationFailed("url", "url must include a host")
	}

	if ip := net.ParseIP(parsed.Hostname()); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
			return "", apperror.ValidationFailed("url", "url host is not allowed")
		}
	}

	return raw, nil
}

// hostSlug reduces a hostname to a short filename-safe tag.
func hostSlug(target string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return "link"
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")

	var b strings.Builder
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == '.' || r == '-':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "link"
	}
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return slug
}

// buildFilename produces a unique object name for a new image:
//
//	qr_code_{timestamp}_{ownerID}_{hostslug}_{random}.{ext}
//
// The timestamp and owner make names greppable on disk; the random suffix
// guarantees uniqueness even for back-to-back requests.
func buildFilename(ownerID int64, target string, format model.ImageFormat, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("qr_code_%s_%d_%s_%s.%s",
		now.UTC().Format("20060102T150405"),
		ownerID,
		hostSlug(target),
		random,
		format.Extension(),
	)
}

func (s *QRCodeService) downloadURL(id int64) string {
	return fmt.Sprintf("%s/download_qr/%d", s.publicURL, id)
}

// Generate validates the target URL, renders the image, saves it to the
// store, and records the result. If the database insert fails after the
// image was saved, the image is deleted again so no orphan objects pile up.
func (s *QRCodeService) Generate(ctx context.Context, ownerID int64, targetURL, formatName string) (*model.QRCode, error) {
	target, err := validateTargetURL(targetURL)
	if err != nil {
		return nil, err
	}

	format, err := model.ParseImageFormat(formatName)
	if err != nil {
		return nil, apperror.ValidationFailed("format", err.Error())
	}

	data, err := s.encoder.Encode(target, format)
	if err != nil {
		return nil, apperror.ValidationFailed("url", "url cannot be encoded as a QR code")
	}

	filename := buildFilename(ownerID, target, format, time.Now())
	if err := s.store.Save(ctx, filename, data, format.ContentType()); err != nil {
		return nil, apperror.Storage("failed to save QR image", err)
	}

	code := &model.QRCode{
		UserID:    ownerID,
		TargetURL: target,
		Format:    format,
		Filename:  filename,
	}
	if err := s.codes.Create(ctx, code); err != nil {
		// Roll the saved image back; a leftover object with no row would
		// never be reachable or cleaned up.
		if delErr := s.store.Delete(ctx, filename); delErr != nil {
			s.logger.Error("failed to remove image after insert failure",
				slog.String("filename", filename),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, err
	}

	code.DownloadURL = s.downloadURL(code.ID)

	s.logger.Info("qr code generated",
		slog.Int64("id", code.ID),
		slog.Int64("userID", ownerID),
		slog.String("format", string(format)),
	)

	return code, nil
}

// List returns the caller's records, newest first, with download links
// filled in.
func (s *QRCodeService) List(ctx context.Context, ownerID int64) ([]model.QRCode, error) {
	codes, err := s.codes.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range codes {
		codes[i].DownloadURL = s.downloadURL(codes[i].ID)
	}
	return codes, nil
}

// getOwned fetches a record and verifies it belongs to ownerID. A missing
// row is NotFound; an existing row owned by someone else is Forbidden with
// a message that does not confirm the record exists.
func (s *QRCodeService) getOwned(ctx context.Context, ownerID, id int64) (*model.QRCode, error) {
	code, err := s.codes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if code.UserID != ownerID {
		return nil, apperror.Forbidden("you do not have access to this QR code")
	}
	return code, nil
}

// Delete removes the record and its stored image. A missing image is
// tolerated (logged, not surfaced): the row is the source of truth, and
// once it is gone the record is deleted from the caller's point of view.
func (s *QRCodeService) Delete(ctx context.Context, ownerID, id int64) error {
	code, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.codes.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, code.Filename); err != nil && !errors.Is(err, storage.ErrNotExist) {
		s.logger.Error("failed to delete image for removed record",
			slog.Int64("id", id),
			slog.String("filename", code.Filename),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("qr code deleted", slog.Int64("id", id), slog.Int64("userID", ownerID))
	return nil
}

// Download returns the record and a reader over its image bytes. The
// caller must close the reader. A row whose image has gone missing from
// the store reports NotFound rather than an internal error.
func (s *QRCodeService) Download(ctx context.Context, ownerID, id int64) (*model.QRCode, io.ReadCloser, error) {
	code, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.store.Open(ctx, code.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			s.logger.Error("image missing from store for existing record",
				slog.Int64("id", id),
				slog.String("filename", code.Filename),
			)
			return nil, nil, apperror.NotFoundMessage("the QR code image is no longer available")
		}
		return nil, nil, apperror.Storage("failed to open QR image", err)
	}

	return code, reader, nil
}
