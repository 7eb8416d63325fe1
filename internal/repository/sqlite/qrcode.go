package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/qr-genius/internal/apperror"
	"github.com/sakif/qr-genius/internal/model"
	"github.com/sakif/qr-genius/internal/repository"
)

// compile-time check that *DB implements repository.QRCodeRepository
var _ repository.QRCodeRepository = (*DB)(nil)

// Create inserts a new QR record. The pointer receives the generated row
// ID and timestamp, the same way CreateUser works.
func (db *DB) Create(ctx context.Context, code *model.QRCode) error {
	now := time.Now()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO qr_codes (user_id, target_url, format, filename, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		code.UserID,
		code.TargetURL,
		string(code.Format),
		code.Filename,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting qr code: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading qr code insert id: %w", err)
	}

	code.ID = id
	code.CreatedAt = now
	return nil
}

// GetByID returns the record regardless of owner. The service layer does
// the ownership check; returning the row here is what lets it distinguish
// 404 (no row) from 403 (row owned by someone else).
func (db *DB) GetByID(ctx context.Context, id int64) (*model.QRCode, error) {
	var c model.QRCode
	var format string

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, target_url, format, filename, created_at
		 FROM qr_codes WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.UserID, &c.TargetURL, &format, &c.Filename, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("qr code", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting qr code %d: %w", id, err)
	}

	c.Format = model.ImageFormat(format)
	return &c, nil
}

// ListByUser returns all records owned by userID, newest first. The id
// tiebreak keeps the order stable when two rows share a timestamp.
func (db *DB) ListByUser(ctx context.Context, userID int64) ([]model.QRCode, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, target_url, format, filename, created_at
		 FROM qr_codes
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing qr codes for user %d: %w", userID, err)
	}
	defer rows.Close()

	codes := make([]model.QRCode, 0)
	for rows.Next() {
		var c model.QRCode
		var format string
		if err := rows.Scan(&c.ID, &c.UserID, &c.TargetURL, &format, &c.Filename, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning qr code row: %w", err)
		}
		c.Format = model.ImageFormat(format)
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating qr codes: %w", err)
	}

	return codes, nil
}

// Delete removes a QR record by its ID. RowsAffected tells missing rows
// apart from real failures.
func (db *DB) Delete(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM qr_codes WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting qr code %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("qr code", strconv.FormatInt(id, 10))
	}

	return nil
}
