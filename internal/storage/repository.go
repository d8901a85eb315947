package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"suiviclient/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no prestation matches the request.
var ErrNotFound = errors.New("prestation not found")

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const prestationColumns = `id, client_name, category, date, price, provider,
	session_type, range_start, range_end, excluded_from_objectives`

// ListAll returns every prestation ordered by date.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Prestation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+prestationColumns+` FROM prestations ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list prestations: %w", err)
	}
	defer rows.Close()
	return scanPrestations(ctx, rows)
}

// ListByClient returns the prestations of one client. The match ignores
// case and surrounding whitespace, as client names arrive from a free
// text field.
func (r *SQLiteRepository) ListByClient(ctx context.Context, clientName string) ([]core.Prestation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+prestationColumns+` FROM prestations
		 WHERE LOWER(TRIM(client_name)) = LOWER(TRIM(?))
		 ORDER BY date, id`, clientName)
	if err != nil {
		return nil, fmt.Errorf("list prestations by client: %w", err)
	}
	defer rows.Close()
	return scanPrestations(ctx, rows)
}

// ListClientNames returns the distinct client names in alphabetical order.
func (r *SQLiteRepository) ListClientNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT client_name FROM prestations ORDER BY client_name`)
	if err != nil {
		return nil, fmt.Errorf("list client names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan client name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client names: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (core.Prestation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+prestationColumns+` FROM prestations WHERE id = ?`, id)
	p, err := scanPrestation(ctx, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Prestation{}, ErrNotFound
	}
	if err != nil {
		return core.Prestation{}, fmt.Errorf("get prestation %d: %w", id, err)
	}
	return p, nil
}

// Insert stores a new prestation and returns its id.
func (r *SQLiteRepository) Insert(ctx context.Context, p core.Prestation) (int64, error) {
	sessionType, rangeStart, rangeEnd := mentalPrepFields(p.MentalPrep)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO prestations
		 (client_name, category, date, price, provider, session_type, range_start, range_end, excluded_from_objectives)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ClientName, p.Category, p.Date.Format(dateLayout), p.Price.String(),
		p.Provider, sessionType, rangeStart, rangeEnd, boolToInt(p.ExcludedFromObjectives))
	if err != nil {
		return 0, fmt.Errorf("insert prestation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert prestation id: %w", err)
	}

	slog.InfoContext(ctx, "Prestation saved",
		"id", id,
		"client", p.ClientName,
		"category", p.Category,
		"price", p.Price.String())

	return id, nil
}

// Update replaces the stored prestation. Returns ErrNotFound when the id
// does not exist.
func (r *SQLiteRepository) Update(ctx context.Context, p core.Prestation) error {
	sessionType, rangeStart, rangeEnd := mentalPrepFields(p.MentalPrep)
	res, err := r.db.ExecContext(ctx,
		`UPDATE prestations SET
		 client_name = ?, category = ?, date = ?, price = ?, provider = ?,
		 session_type = ?, range_start = ?, range_end = ?, excluded_from_objectives = ?,
		 synced = 0, sync_error = 0, updated_at = datetime('now')
		 WHERE id = ?`,
		p.ClientName, p.Category, p.Date.Format(dateLayout), p.Price.String(),
		p.Provider, sessionType, rangeStart, rangeEnd, boolToInt(p.ExcludedFromObjectives), p.ID)
	if err != nil {
		return fmt.Errorf("update prestation %d: %w", p.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update prestation %d: %w", p.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Prestation updated", "id", p.ID, "client", p.ClientName)
	return nil
}

// Delete removes a prestation. Returns ErrNotFound when the id does not
// exist.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prestations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete prestation %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete prestation %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Prestation deleted", "id", id)
	return nil
}

// PendingMirrorPrestation is the minimal row data the mirror worker needs
// to pick up unsynced prestations.
type PendingMirrorPrestation struct {
	ID        int64
	CreatedAt time.Time
}

// GetPendingMirror returns prestations not yet mirrored to the spreadsheet.
func (r *SQLiteRepository) GetPendingMirror(ctx context.Context, limit int) ([]PendingMirrorPrestation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at FROM prestations
		 WHERE synced = 0 AND sync_error = 0
		 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending mirror prestations: %w", err)
	}
	defer rows.Close()

	var pending []PendingMirrorPrestation
	for rows.Next() {
		var p PendingMirrorPrestation
		var createdAt string
		if err := rows.Scan(&p.ID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending prestation: %w", err)
		}
		if t, err := time.Parse(time.DateTime, createdAt); err == nil {
			p.CreatedAt = t
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending prestations: %w", err)
	}
	return pending, nil
}

// MarkMirrored marks a prestation as successfully mirrored.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE prestations SET synced = 1, sync_error = 0, updated_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark prestation mirrored: %w", err)
	}

	slog.InfoContext(ctx, "Prestation marked as mirrored", "id", id)
	return nil
}

// MarkMirrorError marks a prestation as having failed to mirror.
func (r *SQLiteRepository) MarkMirrorError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE prestations SET sync_error = 1, updated_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark prestation mirror error: %w", err)
	}

	slog.WarnContext(ctx, "Prestation marked with mirror error", "id", id)
	return nil
}

func scanPrestations(ctx context.Context, rows *sql.Rows) ([]core.Prestation, error) {
	var out []core.Prestation
	for rows.Next() {
		p, err := scanPrestation(ctx, rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan prestation: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prestations: %w", err)
	}
	return out, nil
}

func scanPrestation(ctx context.Context, scan func(...any) error) (core.Prestation, error) {
	var (
		p           core.Prestation
		date        string
		price       string
		sessionType sql.NullString
		rangeStart  sql.NullString
		rangeEnd    sql.NullString
		excluded    int64
	)
	if err := scan(&p.ID, &p.ClientName, &p.Category, &date, &price, &p.Provider,
		&sessionType, &rangeStart, &rangeEnd, &excluded); err != nil {
		return core.Prestation{}, err
	}

	if t, err := time.Parse(dateLayout, date); err == nil {
		p.Date = core.Date{Time: t}
	} else {
		slog.WarnContext(ctx, "Prestation has malformed date, keeping zero date",
			"id", p.ID, "date", date)
	}

	// Malformed prices are coerced to zero here so the aggregation
	// engine never sees them.
	if d, err := decimal.NewFromString(price); err == nil {
		p.Price = d
	} else {
		slog.WarnContext(ctx, "Prestation has malformed price, coercing to zero",
			"id", p.ID, "price", price)
		p.Price = decimal.Zero
	}

	p.ExcludedFromObjectives = excluded != 0

	if sessionType.Valid || rangeStart.Valid || rangeEnd.Valid {
		details := &core.MentalPrepDetails{SessionType: sessionType.String}
		if rangeStart.Valid {
			if t, err := time.Parse(dateLayout, rangeStart.String); err == nil {
				details.RangeStart = core.Date{Time: t}
			}
		}
		if rangeEnd.Valid {
			if t, err := time.Parse(dateLayout, rangeEnd.String); err == nil {
				details.RangeEnd = core.Date{Time: t}
			}
		}
		p.MentalPrep = details
	}

	return p, nil
}

func mentalPrepFields(d *core.MentalPrepDetails) (sessionType, rangeStart, rangeEnd any) {
	if d == nil {
		return nil, nil, nil
	}
	sessionType = d.SessionType
	if !d.RangeStart.IsEmpty() {
		rangeStart = d.RangeStart.Format(dateLayout)
	}
	if !d.RangeEnd.IsEmpty() {
		rangeEnd = d.RangeEnd.Format(dateLayout)
	}
	return sessionType, rangeStart, rangeEnd
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
