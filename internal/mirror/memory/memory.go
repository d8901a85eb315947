package memory

import (
	"context"
	"sync"

	"suiviclient/internal/core"
	ports "suiviclient/internal/mirror"
)

// Mirror is an in-memory mirror used in tests and local development.
type Mirror struct {
	mu   sync.Mutex
	rows []core.Prestation
}

var _ ports.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Append(ctx context.Context, p core.Prestation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, p)
	return nil
}

func (m *Mirror) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	// Idempotent like the sheet client, a missing row is not an error.
	return nil
}

// Rows returns a snapshot of the mirrored rows.
func (m *Mirror) Rows() []core.Prestation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Prestation, len(m.rows))
	copy(out, m.rows)
	return out
}
