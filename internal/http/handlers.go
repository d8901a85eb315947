package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"suiviclient/internal/core"
)

const dateLayout = "2006-01-02"

// prestationPayload is the JSON body of create and update requests.
// Pointers distinguish a missing field from a zero value.
type prestationPayload struct {
	ClientName            *string      `json:"clientName"`
	Category              *string      `json:"category"`
	Date                  *string      `json:"date"`
	Price                 *json.Number `json:"price"`
	Provider              *string      `json:"provider"`
	SessionType           *string      `json:"sessionType"`
	RangeStart            *string      `json:"rangeStart"`
	RangeEnd              *string      `json:"rangeEnd"`
	ExcludeFromObjectives *bool        `json:"excludeFromObjectives"`
}

type prestationResponse struct {
	ID                    int64   `json:"id"`
	ClientName            string  `json:"clientName"`
	Category              string  `json:"category"`
	Date                  string  `json:"date"`
	Price                 float64 `json:"price"`
	Provider              string  `json:"provider"`
	SessionType           string  `json:"sessionType,omitempty"`
	RangeStart            string  `json:"rangeStart,omitempty"`
	RangeEnd              string  `json:"rangeEnd,omitempty"`
	ExcludeFromObjectives bool    `json:"excludeFromObjectives"`
}

func toResponse(p core.Prestation) prestationResponse {
	resp := prestationResponse{
		ID:                    p.ID,
		ClientName:            p.ClientName,
		Category:              p.Category,
		Date:                  p.Date.Format(dateLayout),
		Price:                 p.Price.InexactFloat64(),
		Provider:              p.Provider,
		ExcludeFromObjectives: p.ExcludedFromObjectives,
	}
	if p.MentalPrep != nil {
		resp.SessionType = p.MentalPrep.SessionType
		if !p.MentalPrep.RangeStart.IsEmpty() {
			resp.RangeStart = p.MentalPrep.RangeStart.Format(dateLayout)
		}
		if !p.MentalPrep.RangeEnd.IsEmpty() {
			resp.RangeEnd = p.MentalPrep.RangeEnd.Format(dateLayout)
		}
	}
	return resp
}

func toResponses(prestations []core.Prestation) []prestationResponse {
	out := make([]prestationResponse, len(prestations))
	for i, p := range prestations {
		out[i] = toResponse(p)
	}
	return out
}

// toPrestation validates and converts the payload. Every required field
// must be present.
func (body prestationPayload) toPrestation() (core.Prestation, error) {
	if body.ClientName == nil || body.Category == nil || body.Date == nil ||
		body.Price == nil || body.Provider == nil {
		return core.Prestation{}, errors.New("missing required fields")
	}

	date, err := parseDate(*body.Date)
	if err != nil {
		return core.Prestation{}, err
	}

	price, err := decimal.NewFromString(body.Price.String())
	if err != nil {
		return core.Prestation{}, errors.New("invalid price")
	}

	p := core.Prestation{
		ClientName: strings.TrimSpace(*body.ClientName),
		Category:   strings.TrimSpace(*body.Category),
		Date:       date,
		Price:      price,
		Provider:   strings.TrimSpace(*body.Provider),
	}
	if body.ExcludeFromObjectives != nil {
		p.ExcludedFromObjectives = *body.ExcludeFromObjectives
	}

	if body.SessionType != nil || body.RangeStart != nil || body.RangeEnd != nil {
		details := &core.MentalPrepDetails{}
		if body.SessionType != nil {
			details.SessionType = strings.TrimSpace(*body.SessionType)
		}
		if body.RangeStart != nil && *body.RangeStart != "" {
			if details.RangeStart, err = parseDate(*body.RangeStart); err != nil {
				return core.Prestation{}, err
			}
		}
		if body.RangeEnd != nil && *body.RangeEnd != "" {
			if details.RangeEnd, err = parseDate(*body.RangeEnd); err != nil {
				return core.Prestation{}, err
			}
		}
		p.MentalPrep = details
	}

	if err := p.Validate(); err != nil {
		return core.Prestation{}, err
	}
	return p, nil
}

// parseDate accepts the plain date layout and RFC 3339 timestamps, as
// date pickers send either.
func parseDate(value string) (core.Date, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return core.Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return core.Date{Time: t}, nil
	}
	return core.Date{}, core.ErrInvalidDate
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (s *Server) handleListPrestations(w http.ResponseWriter, r *http.Request) {
	prestations, err := s.service.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(prestations))
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.ListClientNames(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	type client struct {
		ClientName string `json:"clientName"`
	}
	clients := make([]client, len(names))
	for i, name := range names {
		clients[i] = client{ClientName: name}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleListByClient(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	prestations, err := s.service.ListByClient(r.Context(), name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(prestations) == 0 {
		writeError(w, http.StatusNotFound, "Aucune prestation trouvée pour ce client")
		return
	}
	writeJSON(w, http.StatusOK, toResponses(prestations))
}

func (s *Server) handleGetPrestation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}
	p, err := s.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}

func (s *Server) handleCreatePrestation(w http.ResponseWriter, r *http.Request) {
	var body prestationPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Corps de requête invalide")
		return
	}

	p, err := body.toPrestation()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Champs requis manquants ou invalides: "+err.Error())
		return
	}

	id, err := s.service.Create(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"prestationId": id})
}

func (s *Server) handleUpdatePrestation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var body prestationPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Corps de requête invalide")
		return
	}

	p, err := body.toPrestation()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Champs requis manquants ou invalides: "+err.Error())
		return
	}
	p.ID = id

	if err := s.service.Update(r.Context(), p); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Prestation mise à jour"})
}

func (s *Server) handleDeletePrestation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	if err := s.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Prestation supprimée"})
}
