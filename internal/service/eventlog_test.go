package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hearthsync/internal/models"
)

type captureEventRepo struct {
	from, to    time.Time
	typ, serial string
	out         []models.FireplaceEvent
}

func (r *captureEventRepo) Append(context.Context, models.FireplaceEvent) error { return nil }

func (r *captureEventRepo) List(_ context.Context, from, to time.Time, typ, serial string) ([]models.FireplaceEvent, error) {
	r.from, r.to, r.typ, r.serial = from, to, typ, serial
	return r.out, nil
}

func TestEventLogRejectsInvertedRange(t *testing.T) {
	svc := NewEventLogService(&captureEventRepo{})
	_, err := svc.List(context.Background(), LogFilter{
		From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("expected errInvalidTimeRange, got %v", err)
	}
}

func TestEventLogNormalizesFilter(t *testing.T) {
	repo := &captureEventRepo{out: []models.FireplaceEvent{{Type: models.EventCommand}}}
	svc := NewEventLogService(repo)

	loc := time.FixedZone("X", -5*3600)
	got, err := svc.List(context.Background(), LogFilter{
		From:   time.Date(2026, 1, 1, 10, 0, 0, 0, loc),
		Type:   "  command ",
		Serial: " FP-1 ",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.from.Location() != time.UTC {
		t.Fatalf("from not normalized to UTC: %v", repo.from)
	}
	if repo.typ != models.EventCommand {
		t.Fatalf("type not normalized: %q", repo.typ)
	}
	if repo.serial != "FP-1" {
		t.Fatalf("serial not trimmed: %q", repo.serial)
	}
	if len(got) != 1 {
		t.Fatalf("expected repo results passed through, got %d", len(got))
	}
}

func TestEventLogZeroBoundsPassThrough(t *testing.T) {
	repo := &captureEventRepo{}
	svc := NewEventLogService(repo)
	if _, err := svc.List(context.Background(), LogFilter{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !repo.from.IsZero() || !repo.to.IsZero() {
		t.Fatal("zero bounds must stay zero")
	}
}
