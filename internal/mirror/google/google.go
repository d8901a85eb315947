package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"suiviclient/internal/core"
	ports "suiviclient/internal/mirror"
)

const dateLayout = "2006-01-02"

// Client mirrors prestations into one sheet of a Google spreadsheet.
// Column A holds the prestation id so rows can be found again on delete.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// Config carries the settings the client needs. Exactly one of
// CredentialsFile and CredentialsJSON must be set.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.SheetName == "" {
		return nil, errors.New("missing sheet name")
	}

	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}, nil
}

// Append writes the prestation as a new row at the bottom of the sheet.
func (c *Client) Append(ctx context.Context, p core.Prestation) error {
	row := []any{
		strconv.FormatInt(p.ID, 10),
		p.ClientName,
		p.Category,
		p.Date.Format(dateLayout),
		p.Price.String(),
		p.Provider,
	}
	var sessionType, rangeStart, rangeEnd string
	if p.MentalPrep != nil {
		sessionType = p.MentalPrep.SessionType
		if !p.MentalPrep.RangeStart.IsEmpty() {
			rangeStart = p.MentalPrep.RangeStart.Format(dateLayout)
		}
		if !p.MentalPrep.RangeEnd.IsEmpty() {
			rangeEnd = p.MentalPrep.RangeEnd.Format(dateLayout)
		}
	}
	excluded := ""
	if p.ExcludedFromObjectives {
		excluded = "x"
	}
	row = append(row, sessionType, rangeStart, rangeEnd, excluded)

	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName+"!A:J", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	slog.InfoContext(ctx, "Prestation mirrored to sheet",
		"id", p.ID, "sheet", c.sheetName)
	return nil
}

// Remove deletes the row whose first cell matches the prestation id.
// A row that is already gone is not an error, a retried delete message
// must stay idempotent.
func (c *Client) Remove(ctx context.Context, id int64) error {
	rowIndex, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if rowIndex < 0 {
		slog.WarnContext(ctx, "Prestation row not found in sheet, nothing to remove",
			"id", id, "sheet", c.sheetName)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex),
					EndIndex:   int64(rowIndex + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}

	slog.InfoContext(ctx, "Prestation row removed from sheet",
		"id", id, "sheet", c.sheetName)
	return nil
}

// findRow returns the zero-based index of the row whose id column
// matches, or -1 when absent.
func (c *Client) findRow(ctx context.Context, id int64) (int, error) {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, c.sheetName+"!A:A").
		Context(ctx).
		Do()
	if err != nil {
		return -1, fmt.Errorf("read id column: %w", err)
	}

	want := strconv.FormatInt(id, 10)
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cell, ok := row[0].(string); ok && cell == want {
			return i, nil
		}
	}
	return -1, nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	spreadsheet, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == c.sheetName {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
