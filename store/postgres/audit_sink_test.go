package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sentinelgrid/authcore"
)

func TestAuditSinkInsertsEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(
			"01J000000000000000000000AA",
			fixedNow,
			authcore.AuditRoleChanged,
			"u-1",
			"user:u-2",
			"10.0.0.1",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			true,
			sqlmock.AnyArg(),
			[]byte(`{"from":"viewer","to":"admin"}`),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewAuditSink(db)
	err = sink.Emit(context.Background(), authcore.AuditEvent{
		ID:        "01J000000000000000000000AA",
		Timestamp: fixedNow,
		Action:    authcore.AuditRoleChanged,
		UserID:    "u-1",
		Resource:  "user:u-2",
		IP:        "10.0.0.1",
		Success:   true,
		Details:   map[string]string{"from": "viewer", "to": "admin"},
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuditSinkReportsWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	boom := errors.New("disk full")
	mock.ExpectExec("INSERT INTO audit_events").WillReturnError(boom)

	err = NewAuditSink(db).Emit(context.Background(), authcore.AuditEvent{ID: "x", Action: authcore.AuditLogin})
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
}
