package http

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"suiviclient/internal/core"
)

type quarterStatResponse struct {
	Year        int     `json:"year"`
	Quarter     int     `json:"quarter"`
	Clients     int     `json:"clients"`
	Prestations int     `json:"prestations"`
	Revenue     float64 `json:"ca"`
}

type providerObjectiveResponse struct {
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	Validated bool    `json:"validated"`
}

type objectiveRowResponse struct {
	Year      int                         `json:"year"`
	Month     int                         `json:"month"`
	Providers []providerObjectiveResponse `json:"providers"`
}

type yearRevenueResponse struct {
	Year     int        `json:"year"`
	Quarters [4]float64 `json:"quarters"`
	Total    float64    `json:"total"`
}

type categoryCountResponse struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// handleMentalPrepStats returns the quarterly mental preparation stats,
// for one year when ?year= is given, otherwise for every year present.
func (s *Server) handleMentalPrepStats(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var stats []core.QuarterStat
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Année invalide")
			return
		}
		stats = core.QuarterlyStats(records, core.CategoryMentalPrep, year)
	} else {
		stats = core.QuarterlyStatsAllYears(records, core.CategoryMentalPrep)
	}

	out := make([]quarterStatResponse, len(stats))
	for i, st := range stats {
		out[i] = quarterStatResponse{
			Year:        st.Year,
			Quarter:     st.Quarter,
			Clients:     st.Clients,
			Prestations: st.Prestations,
			Revenue:     st.Revenue.InexactFloat64(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleObjectives returns the monthly objective table for both
// providers, overflow already rolled into the following months.
func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rows := core.MonthlyObjectives(records,
		s.objectives.ProviderA, s.objectives.ProviderB, s.objectives.Target)

	out := make([]objectiveRowResponse, len(rows))
	for i, row := range rows {
		out[i] = objectiveRowResponse{
			Year:  row.Year,
			Month: row.Month,
			Providers: []providerObjectiveResponse{
				{
					Name:      s.objectives.ProviderA,
					Amount:    row.ProviderA.Amount.InexactFloat64(),
					Validated: row.ProviderA.Validated,
				},
				{
					Name:      s.objectives.ProviderB,
					Amount:    row.ProviderB.Amount.InexactFloat64(),
					Validated: row.ProviderB.Validated,
				},
			},
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRevenue returns quarter and year totals for the years selected
// with ?years=2023,2024. Without the parameter it covers every year
// present, chronologically.
func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var years []int
	if v := strings.TrimSpace(r.URL.Query().Get("years")); v != "" {
		for _, part := range strings.Split(v, ",") {
			year, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				writeError(w, http.StatusBadRequest, "Année invalide")
				return
			}
			years = append(years, year)
		}
	} else {
		seen := make(map[int]struct{})
		for _, rec := range records {
			if _, ok := seen[rec.Date.Year()]; !ok {
				seen[rec.Date.Year()] = struct{}{}
				years = append(years, rec.Date.Year())
			}
		}
		sort.Ints(years)
	}

	revenues := core.RevenueByYear(records, years)
	out := make([]yearRevenueResponse, len(revenues))
	for i, rev := range revenues {
		out[i] = yearRevenueResponse{Year: rev.Year, Total: rev.Total.InexactFloat64()}
		for q, amount := range rev.Quarters {
			out[i].Quarters[q] = amount.InexactFloat64()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCategories returns the category distribution of one year, the
// current one when ?year= is absent.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	year := time.Now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Année invalide")
			return
		}
		year = y
	}

	counts := core.CategoryDistribution(records, year)
	out := make([]categoryCountResponse, len(counts))
	for i, c := range counts {
		out[i] = categoryCountResponse{Category: c.Category, Count: c.Count}
	}
	writeJSON(w, http.StatusOK, out)
}
