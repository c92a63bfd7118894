package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/septivank/city-signals/internal/db"
	"github.com/septivank/city-signals/internal/geo"
	"github.com/septivank/city-signals/internal/store"
)

func newContainer(publicNumber string, lon, lat float64) *db.WasteContainer {
	return &db.WasteContainer{
		PublicNumber:   publicNumber,
		Location:       orb.Point{lon, lat},
		CapacityVolume: 3,
		CapacitySize:   db.CapacityStandard,
		WasteType:      db.WasteGeneral,
		Source:         db.SourceOfficial,
		Status:         db.ContainerActive,
	}
}

func openReport(reporter, ref string) *db.Signal {
	return &db.Signal{
		Title:            "Overflowing bin",
		Category:         db.CategoryWasteContainer,
		CityObject:       &db.CityObject{Type: db.ObjectWasteContainer, ReferenceID: ref},
		Status:           db.SignalPending,
		ReporterUniqueID: reporter,
	}
}

func TestMemory_ContainerPublicNumberIsUnique(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	if err := m.CreateContainer(ctx, newContainer("SOF-0001", 23, 42)); err != nil {
		t.Fatalf("Expected first create to succeed, got %v", err)
	}
	err := m.CreateContainer(ctx, newContainer("SOF-0001", 23.1, 42.1))
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestMemory_LegacyIDIsUnique(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	a := newContainer("SOF-0001", 23, 42)
	a.LegacyID = "legacy-1"
	b := newContainer("SOF-0002", 23, 42)
	b.LegacyID = "legacy-1"

	if err := m.CreateContainer(ctx, a); err != nil {
		t.Fatalf("Expected first create to succeed, got %v", err)
	}
	if err := m.CreateContainer(ctx, b); !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestMemory_OpenReportIsUnique(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	first := openReport("device-1", "SOF-0001")
	if err := m.CreateSignal(ctx, first); err != nil {
		t.Fatalf("Expected first signal to be stored, got %v", err)
	}
	if err := m.CreateSignal(ctx, openReport("device-1", "SOF-0001")); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Expected ErrConflict for second open report, got %v", err)
	}

	// other reporters and other containers are unaffected
	if err := m.CreateSignal(ctx, openReport("device-2", "SOF-0001")); err != nil {
		t.Errorf("Expected other reporter to succeed, got %v", err)
	}
	if err := m.CreateSignal(ctx, openReport("device-1", "SOF-0002")); err != nil {
		t.Errorf("Expected other container to succeed, got %v", err)
	}

	resolved := db.SignalResolved
	if _, err := m.UpdateSignal(ctx, first.ID, db.SignalPatch{Status: &resolved}); err != nil {
		t.Fatalf("Expected resolve to succeed, got %v", err)
	}
	if err := m.CreateSignal(ctx, openReport("device-1", "SOF-0001")); err != nil {
		t.Errorf("Expected new report after resolution to succeed, got %v", err)
	}
}

func TestMemory_FindSignalsFilter(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	open := openReport("device-1", "SOF-0001")
	_ = m.CreateSignal(ctx, open)
	closed := openReport("device-1", "SOF-0002")
	closed.Status = db.SignalRejected
	_ = m.CreateSignal(ctx, closed)

	page, err := m.FindSignals(ctx, store.SignalFilter{
		ReporterUniqueID: "device-1",
		Category:         db.CategoryWasteContainer,
		StatusNotIn:      db.TerminalSignalStatuses,
	}, store.Pagination{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if page.TotalDocs != 1 || page.Docs[0].ID != open.ID {
		t.Errorf("Expected only the open signal, got %+v", page.Docs)
	}
}

func TestMemory_FindContainersWithinBoundsAndPaginate(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	for i := 0; i < 5; i++ {
		_ = m.CreateContainer(ctx, newContainer(fmt.Sprintf("SOF-%04d", i), 23+float64(i)*0.001, 42))
	}
	_ = m.CreateContainer(ctx, newContainer("FAR-0001", 25, 44))

	bounds := geo.BoundingBox(42, 23, 1000)
	page, err := m.FindContainers(ctx, store.ContainerFilter{Within: &bounds}, store.Pagination{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if page.TotalDocs != 5 {
		t.Errorf("Expected 5 containers in bounds, got %d", page.TotalDocs)
	}
	if len(page.Docs) != 2 || page.TotalPages != 3 || !page.HasNextPage || !page.HasPrevPage {
		t.Errorf("Unexpected page metadata: %+v", page)
	}
}

func TestMemory_UpdateContainerReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	c := newContainer("SOF-0001", 23, 42)
	_ = m.CreateContainer(ctx, c)

	state := []db.ContainerCondition{db.ConditionDirty}
	updated, err := m.UpdateContainer(ctx, c.ID, db.ContainerPatch{State: &state})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	updated.State[0] = db.ConditionFull

	stored, _ := m.FindContainerByID(ctx, c.ID)
	if stored.State[0] != db.ConditionDirty {
		t.Errorf("Expected stored state to be isolated from callers, got %v", stored.State)
	}

	if _, err := m.UpdateContainer(ctx, [16]byte{1}, db.ContainerPatch{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemory_FindContainersWithOpenSignals(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, n := range []string{"SOF-0003", "SOF-0001", "SOF-0002"} {
		if err := m.CreateContainer(ctx, newContainer(n, 23.3, 42.7)); err != nil {
			t.Fatal(err)
		}
	}

	for _, s := range []*db.Signal{
		openReport("r1", "SOF-0002"),
		openReport("r2", "SOF-0002"),
		openReport("r1", "SOF-0001"),
	} {
		if err := m.CreateSignal(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	closed := openReport("r2", "SOF-0001")
	if err := m.CreateSignal(ctx, closed); err != nil {
		t.Fatal(err)
	}
	resolved := db.SignalResolved
	if _, err := m.UpdateSignal(ctx, closed.ID, db.SignalPatch{Status: &resolved}); err != nil {
		t.Fatal(err)
	}

	lighting := openReport("r3", "SOF-0003")
	lighting.Category = db.CategoryLighting
	if err := m.CreateSignal(ctx, lighting); err != nil {
		t.Fatal(err)
	}

	page, err := m.FindContainersWithOpenSignals(ctx, store.Pagination{Page: 1, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalDocs != 2 || len(page.Docs) != 2 {
		t.Fatalf("Expected 2 containers, got %+v", page)
	}
	if page.Docs[0].PublicNumber != "SOF-0002" || page.Docs[0].OpenSignals != 2 {
		t.Errorf("Expected SOF-0002 with 2 open signals first, got %s/%d", page.Docs[0].PublicNumber, page.Docs[0].OpenSignals)
	}
	if page.Docs[1].PublicNumber != "SOF-0001" || page.Docs[1].OpenSignals != 1 {
		t.Errorf("Expected SOF-0001 with 1 open signal, got %s/%d", page.Docs[1].PublicNumber, page.Docs[1].OpenSignals)
	}

	second, _ := m.FindContainersWithOpenSignals(ctx, store.Pagination{Page: 2, Limit: 1})
	if len(second.Docs) != 1 || second.Docs[0].PublicNumber != "SOF-0001" || second.HasNextPage {
		t.Errorf("Unexpected second page %+v", second)
	}

	beyond, _ := m.FindContainersWithOpenSignals(ctx, store.Pagination{Page: 5, Limit: 10})
	if len(beyond.Docs) != 0 || beyond.TotalDocs != 2 {
		t.Errorf("Expected empty page past the end, got %+v", beyond)
	}
}
