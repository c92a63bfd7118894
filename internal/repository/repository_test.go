package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/geo"
	"github.com/septivank/city-signals/internal/store"
)

func TestMapError(t *testing.T) {
	if err := mapError(fmt.Errorf("scan: %w", pgx.ErrNoRows)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "signals_open_waste_report_idx"}
	if err := mapError(unique); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	other := &pgconn.PgError{Code: "23502"}
	if err := mapError(other); errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
		t.Errorf("unexpected mapping for %v", err)
	}
}

func TestSignalWhere_NumbersPlaceholders(t *testing.T) {
	w := signalWhere(store.SignalFilter{
		ReporterUniqueID: "device-1",
		ReferenceID:      "SOF-0001",
		Category:         db.CategoryWasteContainer,
		StatusNotIn:      db.TerminalSignalStatuses,
	})

	want := " WHERE reporter_unique_id = $1 AND reference_id = $2 AND category = $3 AND status <> ALL($4::text[])"
	if got := w.clause(); got != want {
		t.Errorf("unexpected clause:\n got %q\nwant %q", got, want)
	}
	if len(w.args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(w.args))
	}
	if statuses, ok := w.args[3].([]string); !ok || len(statuses) != 2 {
		t.Errorf("unexpected status args %#v", w.args[3])
	}

	if next := w.next(10); next != "$5" {
		t.Errorf("expected $5, got %s", next)
	}
}

func TestContainerWhere_Bounds(t *testing.T) {
	b := geo.BoundingBox(42.69, 23.32, 500)
	w := containerWhere(store.ContainerFilter{Within: &b})

	want := " WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)"
	if got := w.clause(); got != want {
		t.Errorf("unexpected clause %q", got)
	}
	if w.args[0] != b.MinLon || w.args[3] != b.MaxLat {
		t.Errorf("unexpected envelope args %v", w.args)
	}

	if empty := containerWhere(store.ContainerFilter{}); empty.clause() != "" {
		t.Errorf("expected no clause, got %q", empty.clause())
	}
}
