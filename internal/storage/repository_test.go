package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"suiviclient/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testPrestation() core.Prestation {
	return core.Prestation{
		ClientName: "Dupont",
		Category:   core.CategoryWebsite,
		Date:       core.NewDate(2024, 3, 15),
		Price:      decimal.NewFromFloat(450.50),
		Provider:   core.ProviderFlorian,
	}
}

func TestInsertAndGetByID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, testPrestation())
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id == 0 {
		t.Fatal("Insert() returned zero id")
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ClientName != "Dupont" {
		t.Errorf("ClientName = %q, want Dupont", got.ClientName)
	}
	if !got.Price.Equal(decimal.NewFromFloat(450.50)) {
		t.Errorf("Price = %s, want 450.5", got.Price)
	}
	if got.Date.Year() != 2024 || got.Date.Month() != 3 || got.Date.Day() != 15 {
		t.Errorf("Date = %v, want 2024-03-15", got.Date)
	}
	if got.MentalPrep != nil {
		t.Error("MentalPrep should be nil for a website prestation")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetByID(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestInsertMentalPrepDetails(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p := testPrestation()
	p.Category = core.CategoryMentalPrep
	p.MentalPrep = &core.MentalPrepDetails{
		SessionType: "individuel",
		RangeStart:  core.NewDate(2024, 3, 1),
		RangeEnd:    core.NewDate(2024, 4, 30),
	}

	id, err := repo.Insert(ctx, p)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.MentalPrep == nil {
		t.Fatal("MentalPrep details lost in round trip")
	}
	if got.MentalPrep.SessionType != "individuel" {
		t.Errorf("SessionType = %q, want individuel", got.MentalPrep.SessionType)
	}
	if got.MentalPrep.RangeStart.Month() != 3 || got.MentalPrep.RangeEnd.Month() != 4 {
		t.Errorf("range = %v to %v, want March to April",
			got.MentalPrep.RangeStart, got.MentalPrep.RangeEnd)
	}
}

func TestListByClientIgnoresCaseAndSpaces(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	p := testPrestation()
	if _, err := repo.Insert(ctx, p); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	for _, query := range []string{"Dupont", "dupont", " DUPONT "} {
		got, err := repo.ListByClient(ctx, query)
		if err != nil {
			t.Fatalf("ListByClient(%q) error = %v", query, err)
		}
		if len(got) != 1 {
			t.Errorf("ListByClient(%q) returned %d prestations, want 1", query, len(got))
		}
	}

	got, err := repo.ListByClient(ctx, "Martin")
	if err != nil {
		t.Fatalf("ListByClient() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListByClient() for unknown client returned %d prestations, want 0", len(got))
	}
}

func TestListClientNames(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, name := range []string{"Martin", "Dupont", "Martin"} {
		p := testPrestation()
		p.ClientName = name
		if _, err := repo.Insert(ctx, p); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	names, err := repo.ListClientNames(ctx)
	if err != nil {
		t.Fatalf("ListClientNames() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("ListClientNames() returned %d names, want 2 distinct", len(names))
	}
	if names[0] != "Dupont" || names[1] != "Martin" {
		t.Errorf("ListClientNames() = %v, want alphabetical [Dupont Martin]", names)
	}
}

func TestUpdate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, testPrestation())
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	p := testPrestation()
	p.ID = id
	p.Price = decimal.NewFromInt(600)
	p.ExcludedFromObjectives = true
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Price.Equal(decimal.NewFromInt(600)) {
		t.Errorf("Price after update = %s, want 600", got.Price)
	}
	if !got.ExcludedFromObjectives {
		t.Error("ExcludedFromObjectives not persisted")
	}

	p.ID = 999
	if err := repo.Update(ctx, p); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() on missing id error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, testPrestation())
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() on missing id error = %v, want ErrNotFound", err)
	}
}

func TestMirrorBookkeeping(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, testPrestation())
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	pending, err := repo.GetPendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingMirror() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("GetPendingMirror() = %v, want one pending row with id %d", pending, id)
	}

	if err := repo.MarkMirrored(ctx, id); err != nil {
		t.Fatalf("MarkMirrored() error = %v", err)
	}
	pending, err = repo.GetPendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingMirror() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("GetPendingMirror() after MarkMirrored returned %d rows, want 0", len(pending))
	}

	// An update makes the row pending again.
	p := testPrestation()
	p.ID = id
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	pending, err = repo.GetPendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingMirror() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("GetPendingMirror() after update returned %d rows, want 1", len(pending))
	}

	if err := repo.MarkMirrorError(ctx, id); err != nil {
		t.Fatalf("MarkMirrorError() error = %v", err)
	}
	pending, err = repo.GetPendingMirror(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingMirror() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("GetPendingMirror() should skip rows with mirror errors, got %d", len(pending))
	}
}
