package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"hearthsync/internal/models"

	"github.com/google/uuid"
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

var _ EventRepo = (*EventSQLite)(nil)

// Append inserts a new event. If EventID or OccurredAt are empty, they're set.
func (r *EventSQLite) Append(ctx context.Context, e models.FireplaceEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	// marshal metadata if present
	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fireplace_events (id, serial, occurred_at, type, message, meta)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.EventID,
		e.Serial,
		e.OccurredAt.Format("2006-01-02 15:04:05"),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Description,
		metaPtr,
	)

	return err
}

// List returns events filtered by [from, to] (inclusive), type, and serial,
// ordered ascending by occurrence.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, typ, serial string) ([]models.FireplaceEvent, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC().Format("2006-01-02 15:04:05"))
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC().Format("2006-01-02 15:04:05"))
	}
	if typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(typ)))
	}
	if serial != "" {
		conds = append(conds, "serial = ?")
		args = append(args, serial)
	}

	query := "SELECT id, serial, occurred_at, type, message, meta FROM fireplace_events"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FireplaceEvent
	for rows.Next() {
		var (
			e       models.FireplaceEvent
			occured string
			meta    sql.NullString
		)
		if err := rows.Scan(&e.EventID, &e.Serial, &occured, &e.Type, &e.Description, &meta); err != nil {
			return nil, err
		}
		if t, err := time.Parse("2006-01-02 15:04:05", occured); err == nil {
			e.OccurredAt = t.UTC()
		}
		if meta.Valid && meta.String != "" {
			var m any
			if err := json.Unmarshal([]byte(meta.String), &m); err == nil {
				e.Metadata = m
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
