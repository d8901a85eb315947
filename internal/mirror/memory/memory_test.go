package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"suiviclient/internal/core"
)

func TestAppendAndRemove(t *testing.T) {
	m := New()
	ctx := context.Background()

	p := core.Prestation{
		ID:         1,
		ClientName: "Dupont",
		Category:   core.CategoryWebsite,
		Date:       core.NewDate(2024, 3, 15),
		Price:      decimal.NewFromInt(450),
		Provider:   core.ProviderFlorian,
	}
	if err := m.Append(ctx, p); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if rows := m.Rows(); len(rows) != 1 || rows[0].ID != 1 {
		t.Fatalf("Rows() = %v, want the appended prestation", rows)
	}

	if err := m.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if rows := m.Rows(); len(rows) != 0 {
		t.Errorf("Rows() after remove = %v, want empty", rows)
	}

	// Removing again must stay idempotent.
	if err := m.Remove(ctx, 1); err != nil {
		t.Errorf("Remove() of missing row error = %v, want nil", err)
	}
}
