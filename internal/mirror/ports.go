package mirror

import (
	"context"

	"suiviclient/internal/core"
)

// Ports for the spreadsheet mirror.
type (
	// RowAppender writes one prestation as a spreadsheet row.
	RowAppender interface {
		Append(ctx context.Context, p core.Prestation) error
	}

	// RowRemover removes the row of a deleted prestation.
	RowRemover interface {
		Remove(ctx context.Context, id int64) error
	}

	// Mirror is the full surface the worker needs.
	Mirror interface {
		RowAppender
		RowRemover
	}
)
