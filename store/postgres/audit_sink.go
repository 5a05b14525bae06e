package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/sentinelgrid/authcore"
)

// AuditSink appends audit events to the audit_events table. Rows are never
// updated or deleted by this package.
type AuditSink struct {
	db *sql.DB
}

func NewAuditSink(db *sql.DB) *AuditSink {
	return &AuditSink{db: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *AuditSink) Emit(ctx context.Context, event authcore.AuditEvent) error {
	var details []byte
	if len(event.Details) > 0 {
		var err error
		if details, err = json.Marshal(event.Details); err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events
		   (id, occurred_at, action, user_id, resource, ip, user_agent, request_id, success, error_code, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID,
		event.Timestamp.UTC(),
		event.Action,
		nullString(event.UserID),
		nullString(event.Resource),
		nullString(event.IP),
		nullString(event.UserAgent),
		nullString(event.RequestID),
		event.Success,
		nullString(event.Error),
		details,
	)
	return err
}
