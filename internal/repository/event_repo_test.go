package repository

import (
	"context"
	"testing"
	"time"

	"hearthsync/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockEventRepo(t *testing.T) (*EventSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	repo := NewEventSQLite(db)
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	}
	return repo, mock, cleanup
}

func TestEventSQLite_AppendFillsDefaults(t *testing.T) {
	repo, mock, cleanup := newMockEventRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO fireplace_events").
		WithArgs(sqlmock.AnyArg(), "FP-1", sqlmock.AnyArg(), "COMMAND", "Command power accepted", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(context.Background(), models.FireplaceEvent{
		Serial:      "FP-1",
		Type:        " command ",
		Description: "Command power accepted",
		Metadata:    map[string]any{"command": "power", "value": 1},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestEventSQLite_ListAppliesFilters(t *testing.T) {
	repo, mock, cleanup := newMockEventRepo(t)
	defer cleanup()

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "serial", "occurred_at", "type", "message", "meta"}).
		AddRow("ev1", "FP-1", "2026-08-10 12:00:00", "FAULT_RAISED", "Fault raised: fan", `{"code":132}`).
		AddRow("ev2", "FP-1", "2026-08-11 08:00:00", "FAULT_CLEARED", "Fault cleared: fan", nil)

	mock.ExpectQuery("SELECT id, serial, occurred_at, type, message, meta FROM fireplace_events WHERE occurred_at >= \\? AND occurred_at <= \\? AND type = \\? AND serial = \\? ORDER BY occurred_at ASC").
		WithArgs("2026-08-01 00:00:00", "2026-08-31 23:59:59", "FAULT_RAISED", "FP-1").
		WillReturnRows(rows)

	events, err := repo.List(context.Background(), from, to, "fault_raised", "FP-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventID != "ev1" || events[0].OccurredAt.Hour() != 12 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[0].Metadata == nil {
		t.Fatal("metadata lost")
	}
	if events[1].Metadata != nil {
		t.Fatalf("nil meta decoded as %v", events[1].Metadata)
	}
}

func TestEventSQLite_ListNoFilters(t *testing.T) {
	repo, mock, cleanup := newMockEventRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, serial, occurred_at, type, message, meta FROM fireplace_events ORDER BY occurred_at ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "serial", "occurred_at", "type", "message", "meta"}))

	events, err := repo.List(context.Background(), time.Time{}, time.Time{}, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
