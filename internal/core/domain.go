package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderFlorian = "Florian"
	ProviderMelanie = "Mélanie"
	// ProviderBoth marks a prestation shared between the two providers.
	// Its price counts half for each in the objective tables.
	ProviderBoth = "les deux"

	CategoryWebsite    = "Site internet"
	CategoryTraining   = "Formation"
	CategoryMentalPrep = "Préparation mentale"
	CategoryOther      = "Autres"
)

// Categories lists the known prestation categories in display order.
var Categories = []string{CategoryWebsite, CategoryTraining, CategoryMentalPrep, CategoryOther}

var (
	ErrEmptyClientName = errors.New("empty client name")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyProvider   = errors.New("empty provider")
	ErrInvalidDate     = errors.New("invalid date")
	ErrNegativePrice   = errors.New("negative price")
)

type (
	Date struct {
		time.Time
	}

	// MentalPrepDetails carries the fields that only exist for
	// mental preparation prestations (coaching over a date range).
	MentalPrepDetails struct {
		SessionType string
		RangeStart  Date
		RangeEnd    Date
	}

	Prestation struct {
		ID                     int64
		ClientName             string
		Category               string
		Date                   Date
		Price                  decimal.Decimal
		Provider               string
		MentalPrep             *MentalPrepDetails
		ExcludedFromObjectives bool
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Quarter returns the calendar quarter, 1 through 4.
func (d Date) Quarter() int {
	return (d.Month()-1)/3 + 1
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (p Prestation) Validate() error {
	if len(strings.TrimSpace(p.ClientName)) == 0 {
		return ErrEmptyClientName
	}
	if len(p.ClientName) > 200 {
		return errors.New("client name too long (max 200 characters)")
	}
	if strings.TrimSpace(p.Category) == "" {
		return ErrEmptyCategory
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	if strings.TrimSpace(p.Provider) == "" {
		return ErrEmptyProvider
	}
	if p.MentalPrep != nil && !p.MentalPrep.RangeStart.IsEmpty() && !p.MentalPrep.RangeEnd.IsEmpty() {
		if p.MentalPrep.RangeEnd.Before(p.MentalPrep.RangeStart.Time) {
			return errors.New("range end must not be before range start")
		}
	}
	return nil
}

// SplitBetweenProviders reports whether the prestation is shared between
// both providers and its price split half each.
func (p Prestation) SplitBetweenProviders() bool {
	return strings.TrimSpace(p.Provider) == ProviderBoth
}

// SameCategory compares category names ignoring case and surrounding
// whitespace, matching how categories arrive from forms and imports.
func SameCategory(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
