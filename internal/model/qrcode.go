package model

import (
	"fmt"
	"strings"
	"time"
)

// ImageFormat is the output format of a generated QR image.
type ImageFormat string

const (
	FormatPNG ImageFormat = "PNG"
	FormatSVG ImageFormat = "SVG"
)

// ParseImageFormat normalizes and validates a format selector.
// The empty string defaults to PNG; anything outside the supported set is a
// hard error — an unrecognized format must never silently fall back.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return FormatPNG, nil
	case "PNG":
		return FormatPNG, nil
	case "SVG":
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("unsupported format %q, supported formats are PNG and SVG", s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f ImageFormat) Extension() string {
	if f == FormatSVG {
		return "svg"
	}
	return "png"
}

// ContentType returns the MIME type served on download.
func (f ImageFormat) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// QRCode represents one generated QR image owned by a user.
//
// TargetURL, Format, and Filename are immutable after creation — a record
// is only ever created, read, and deleted. Ownership (UserID) is set at
// creation and never transferred.
//
// DownloadURL is computed by the service layer when the record is returned
// to a caller; it is not a database column.
type QRCode struct {
	ID          int64       `json:"id"           db:"id"`
	UserID      int64       `json:"user_id"      db:"user_id"`
	TargetURL   string      `json:"target_url"   db:"target_url"`
	Format      ImageFormat `json:"format"       db:"format"`
	Filename    string      `json:"filename"     db:"filename"`
	CreatedAt   time.Time   `json:"created_at"   db:"created_at"`
	DownloadURL string      `json:"download_url,omitempty" db:"-"`
}
