package db

import (
	"context"
	"time"

	"github.com/gardawira/twofa/internal/pkg/goerror"
	"github.com/gardawira/twofa/internal/twofactor/entity"
)

const getRecordSQL = `
SELECT user_id, method, secret_ciphertext, key_version, enabled, verified,
       backup_codes, enabled_at, last_used_at, created_at, updated_at
FROM two_factor_records
WHERE user_id = $1`

func (s *DB) GetRecord(ctx context.Context, userID int64) (_ *entity.TwoFactorRecord, err error) {
	ctx, span := s.startSpan(ctx, "GetRecord")
	defer func() { s.endSpan(span, err) }()

	var rec entity.TwoFactorRecord
	err = s.conn.QueryRow(ctx, getRecordSQL, userID).Scan(
		&rec.UserID,
		&rec.Method,
		&rec.SecretCiphertext,
		&rec.KeyVersion,
		&rec.Enabled,
		&rec.Verified,
		&rec.BackupCodeHashes,
		&rec.EnabledAt,
		&rec.LastUsedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &rec, nil
}

// upsertPendingSQL replaces the whole configuration for a user, but only
// while it is not enabled. An enabled row survives untouched and the
// statement reports zero affected rows.
const upsertPendingSQL = `
INSERT INTO two_factor_records
	(user_id, method, secret_ciphertext, key_version, enabled, verified,
	 backup_codes, created_at, updated_at)
VALUES ($1, $2, $3, $4, FALSE, FALSE, $5, $6, $6)
ON CONFLICT (user_id) DO UPDATE SET
	method            = EXCLUDED.method,
	secret_ciphertext = EXCLUDED.secret_ciphertext,
	key_version       = EXCLUDED.key_version,
	enabled           = FALSE,
	verified          = FALSE,
	backup_codes      = EXCLUDED.backup_codes,
	enabled_at        = NULL,
	last_used_at      = NULL,
	updated_at        = EXCLUDED.updated_at
WHERE NOT two_factor_records.enabled`

func (s *DB) UpsertPendingRecord(ctx context.Context, rec entity.TwoFactorRecord) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertPendingRecord")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, upsertPendingSQL,
		rec.UserID,
		rec.Method,
		rec.SecretCiphertext,
		rec.KeyVersion,
		rec.BackupCodeHashes,
		rec.CreatedAt,
	)
	if err != nil {
		return s.mapError(err)
	}

	if tag.RowsAffected() == 0 {
		err = goerror.ErrConflict
		return err
	}

	return nil
}

const enableRecordSQL = `
UPDATE two_factor_records
SET enabled = TRUE, verified = TRUE, enabled_at = $2, last_used_at = $2, updated_at = $2
WHERE user_id = $1 AND NOT enabled`

// EnableRecord flips a pending record to enabled and reports whether this
// call performed the flip. Concurrent callers race on the NOT enabled
// guard, so at most one gets true.
func (s *DB) EnableRecord(ctx context.Context, userID int64, at time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "EnableRecord")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, enableRecordSQL, userID, at)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() > 0, nil
}

const consumeBackupCodeSQL = `
UPDATE two_factor_records
SET backup_codes = array_remove(backup_codes, $2), last_used_at = $3, updated_at = $3
WHERE user_id = $1 AND $2 = ANY(backup_codes)`

// ConsumeBackupCode removes one stored digest in a single conditional
// write. Two concurrent uses of the same code cannot both match the ANY
// guard, which is what makes backup codes one-time.
func (s *DB) ConsumeBackupCode(ctx context.Context, userID int64, codeHash string, at time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeBackupCode")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, consumeBackupCodeSQL, userID, codeHash, at)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() > 0, nil
}

const touchLastUsedSQL = `
UPDATE two_factor_records
SET last_used_at = $2, updated_at = $2
WHERE user_id = $1`

func (s *DB) TouchLastUsed(ctx context.Context, userID int64, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "TouchLastUsed")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, touchLastUsedSQL, userID, at)
	if err != nil {
		return s.mapError(err)
	}

	return nil
}

const deleteRecordSQL = `DELETE FROM two_factor_records WHERE user_id = $1`

func (s *DB) DeleteRecord(ctx context.Context, userID int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "DeleteRecord")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, deleteRecordSQL, userID)
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() > 0, nil
}
