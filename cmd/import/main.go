package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"suiviclient/internal/config"
	"suiviclient/internal/core"
	applog "suiviclient/internal/log"
	"suiviclient/internal/storage"
)

// Imports prestations from a CSV export. Expected header:
// clientName,prestationType,date,price,provider,startDate,endDate,sessionType,excludeFromObjectives
func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentImport})
	applog.SetDefault(logger)

	filePath := flag.String("file", "", "path to the CSV file to import")
	flag.Parse()

	if *filePath == "" {
		logger.Error("Missing -file argument")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	f, err := os.Open(*filePath)
	if err != nil {
		logger.Error("Failed to open CSV file", "error", err, "file", *filePath)
		os.Exit(1)
	}
	defer f.Close()

	imported, skipped, err := importCSV(context.Background(), logger, repo, f)
	if err != nil {
		logger.Error("Import failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Import finished", "imported", imported, "skipped", skipped)
}

func importCSV(ctx context.Context, logger *applog.Logger, repo *storage.SQLiteRepository, r io.Reader) (imported, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"clientName", "prestationType", "date", "price", "provider"} {
		if _, ok := cols[required]; !ok {
			return 0, 0, fmt.Errorf("missing CSV column %q", required)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return imported, skipped, fmt.Errorf("read line %d: %w", line, err)
		}

		p, err := recordToPrestation(cols, record)
		if err != nil {
			logger.Warn("Skipping invalid row", "line", line, "error", err)
			skipped++
			continue
		}

		if _, err := repo.Insert(ctx, p); err != nil {
			return imported, skipped, fmt.Errorf("insert line %d: %w", line, err)
		}
		imported++
	}

	return imported, skipped, nil
}

func recordToPrestation(cols map[string]int, record []string) (core.Prestation, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	price, err := decimal.NewFromString(field("price"))
	if err != nil {
		return core.Prestation{}, fmt.Errorf("invalid price %q: %w", field("price"), err)
	}

	date, err := parseDate(field("date"))
	if err != nil {
		return core.Prestation{}, fmt.Errorf("invalid date %q: %w", field("date"), err)
	}

	p := core.Prestation{
		ClientName: field("clientName"),
		Category:   field("prestationType"),
		Date:       date,
		Price:      price,
		Provider:   field("provider"),
	}

	if v := field("excludeFromObjectives"); v != "" {
		excluded, err := strconv.ParseBool(v)
		if err != nil {
			return core.Prestation{}, fmt.Errorf("invalid excludeFromObjectives %q", v)
		}
		p.ExcludedFromObjectives = excluded
	}

	sessionType := field("sessionType")
	startDate := field("startDate")
	endDate := field("endDate")
	if sessionType != "" || startDate != "" || endDate != "" {
		details := &core.MentalPrepDetails{SessionType: sessionType}
		if startDate != "" {
			d, err := parseDate(startDate)
			if err != nil {
				return core.Prestation{}, fmt.Errorf("invalid startDate %q: %w", startDate, err)
			}
			details.RangeStart = d
		}
		if endDate != "" {
			d, err := parseDate(endDate)
			if err != nil {
				return core.Prestation{}, fmt.Errorf("invalid endDate %q: %w", endDate, err)
			}
			details.RangeEnd = d
		}
		p.MentalPrep = details
	}

	if err := p.Validate(); err != nil {
		return core.Prestation{}, err
	}

	return p, nil
}

func parseDate(s string) (core.Date, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return core.Date{}, fmt.Errorf("unrecognized date format")
}
