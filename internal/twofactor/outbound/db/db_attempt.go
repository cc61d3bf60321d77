package db

import (
	"context"

	"github.com/gardawira/twofa/internal/twofactor/entity"
)

const appendAttemptSQL = `
INSERT INTO two_factor_attempts
	(id, user_id, success, method, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (s *DB) AppendAttempt(ctx context.Context, att entity.Attempt) (err error) {
	ctx, span := s.startSpan(ctx, "AppendAttempt")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, appendAttemptSQL,
		att.ID,
		att.UserID,
		att.Success,
		att.Method,
		att.IPAddress,
		att.UserAgent,
		att.CreatedAt,
	)
	if err != nil {
		return s.mapError(err)
	}

	return nil
}

const listAttemptsSQL = `
SELECT id, user_id, success, method, ip_address, user_agent, created_at
FROM two_factor_attempts
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

func (s *DB) ListAttempts(ctx context.Context, userID int64, limit int32) (_ []entity.Attempt, err error) {
	ctx, span := s.startSpan(ctx, "ListAttempts")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, listAttemptsSQL, userID, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make([]entity.Attempt, 0, limit)
	for rows.Next() {
		var att entity.Attempt
		if err = rows.Scan(
			&att.ID,
			&att.UserID,
			&att.Success,
			&att.Method,
			&att.IPAddress,
			&att.UserAgent,
			&att.CreatedAt,
		); err != nil {
			return nil, s.mapError(err)
		}
		out = append(out, att)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return out, nil
}
