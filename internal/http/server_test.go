package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"suiviclient/internal/core"
	"suiviclient/internal/storage"
)

type fakeService struct {
	prestations map[int64]core.Prestation
	nextID      int64
	failAll     bool
}

func newFakeService() *fakeService {
	return &fakeService{prestations: make(map[int64]core.Prestation), nextID: 1}
}

func (f *fakeService) ListAll(ctx context.Context) ([]core.Prestation, error) {
	if f.failAll {
		return nil, fmt.Errorf("database gone")
	}
	out := make([]core.Prestation, 0, len(f.prestations))
	for id := int64(1); id < f.nextID; id++ {
		if p, ok := f.prestations[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeService) ListByClient(ctx context.Context, clientName string) ([]core.Prestation, error) {
	var out []core.Prestation
	for _, p := range f.prestations {
		if strings.EqualFold(strings.TrimSpace(p.ClientName), strings.TrimSpace(clientName)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeService) ListClientNames(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	for _, p := range f.prestations {
		if _, ok := seen[p.ClientName]; !ok {
			seen[p.ClientName] = struct{}{}
			names = append(names, p.ClientName)
		}
	}
	return names, nil
}

func (f *fakeService) GetByID(ctx context.Context, id int64) (core.Prestation, error) {
	p, ok := f.prestations[id]
	if !ok {
		return core.Prestation{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeService) Create(ctx context.Context, p core.Prestation) (int64, error) {
	id := f.nextID
	f.nextID++
	p.ID = id
	f.prestations[id] = p
	return id, nil
}

func (f *fakeService) Update(ctx context.Context, p core.Prestation) error {
	if _, ok := f.prestations[p.ID]; !ok {
		return storage.ErrNotFound
	}
	f.prestations[p.ID] = p
	return nil
}

func (f *fakeService) Delete(ctx context.Context, id int64) error {
	if _, ok := f.prestations[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.prestations, id)
	return nil
}

func testObjectives() Objectives {
	return Objectives{
		ProviderA: core.ProviderFlorian,
		ProviderB: core.ProviderMelanie,
		Target:    decimal.NewFromInt(2500),
	}
}

func newTestServer(svc PrestationService) *Server {
	return NewServer(":0", svc, testObjectives())
}

func doRequest(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func createPayload() map[string]any {
	return map[string]any{
		"clientName": "Dupont",
		"category":   core.CategoryWebsite,
		"date":       "2024-03-15",
		"price":      450.5,
		"provider":   core.ProviderFlorian,
	}
}

func TestCreateAndGetPrestation(t *testing.T) {
	s := newTestServer(newFakeService())

	rec := doRequest(t, s, http.MethodPost, "/prestations", createPayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /prestations status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[map[string]int64](t, rec)
	id := created["prestationId"]
	if id == 0 {
		t.Fatal("response should carry the new prestationId")
	}

	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/prestations/%d", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /prestations/{id} status = %d, want 200", rec.Code)
	}
	got := decodeBody[prestationResponse](t, rec)
	if got.ClientName != "Dupont" || got.Date != "2024-03-15" || got.Price != 450.5 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestCreateMissingFieldReturns400(t *testing.T) {
	s := newTestServer(newFakeService())

	for _, field := range []string{"clientName", "category", "date", "price", "provider"} {
		payload := createPayload()
		delete(payload, field)
		rec := doRequest(t, s, http.MethodPost, "/prestations", payload)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("POST without %s status = %d, want 400", field, rec.Code)
		}
		resp := decodeBody[map[string]string](t, rec)
		if resp["error"] == "" {
			t.Errorf("POST without %s should return an error message", field)
		}
	}
}

func TestCreateInvalidBodyReturns400(t *testing.T) {
	s := newTestServer(newFakeService())

	req := httptest.NewRequest(http.MethodPost, "/prestations", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST with invalid JSON status = %d, want 400", rec.Code)
	}
}

func TestCreateWithMentalPrepDetails(t *testing.T) {
	svc := newFakeService()
	s := newTestServer(svc)

	payload := createPayload()
	payload["category"] = core.CategoryMentalPrep
	payload["sessionType"] = "individuel"
	payload["rangeStart"] = "2024-03-01"
	payload["rangeEnd"] = "2024-04-30"

	rec := doRequest(t, s, http.MethodPost, "/prestations", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/prestations/1", nil)
	got := decodeBody[prestationResponse](t, rec)
	if got.SessionType != "individuel" || got.RangeStart != "2024-03-01" || got.RangeEnd != "2024-04-30" {
		t.Errorf("mental prep fields lost: %+v", got)
	}
}

func TestGetPrestationNotFound(t *testing.T) {
	s := newTestServer(newFakeService())

	rec := doRequest(t, s, http.MethodGet, "/prestations/42", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing prestation status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/prestations/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET with non-numeric id status = %d, want 400", rec.Code)
	}
}

func TestUpdatePrestation(t *testing.T) {
	s := newTestServer(newFakeService())

	doRequest(t, s, http.MethodPost, "/prestations", createPayload())

	payload := createPayload()
	payload["price"] = 600
	rec := doRequest(t, s, http.MethodPut, "/prestations/1", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/prestations/1", nil)
	got := decodeBody[prestationResponse](t, rec)
	if got.Price != 600 {
		t.Errorf("price after update = %v, want 600", got.Price)
	}

	rec = doRequest(t, s, http.MethodPut, "/prestations/99", payload)
	if rec.Code != http.StatusNotFound {
		t.Errorf("PUT missing prestation status = %d, want 404", rec.Code)
	}
}

func TestDeletePrestation(t *testing.T) {
	s := newTestServer(newFakeService())

	doRequest(t, s, http.MethodPost, "/prestations", createPayload())

	rec := doRequest(t, s, http.MethodDelete, "/prestations/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", rec.Code)
	}
	rec = doRequest(t, s, http.MethodDelete, "/prestations/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("DELETE already removed prestation status = %d, want 404", rec.Code)
	}
}

func TestListClients(t *testing.T) {
	s := newTestServer(newFakeService())

	doRequest(t, s, http.MethodPost, "/prestations", createPayload())
	second := createPayload()
	second["clientName"] = "Martin"
	doRequest(t, s, http.MethodPost, "/prestations", second)

	rec := doRequest(t, s, http.MethodGet, "/prestations/clients", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /prestations/clients status = %d, want 200", rec.Code)
	}
	clients := decodeBody[[]map[string]string](t, rec)
	if len(clients) != 2 {
		t.Errorf("clients = %v, want 2 entries", clients)
	}
}

func TestListByClient(t *testing.T) {
	s := newTestServer(newFakeService())

	doRequest(t, s, http.MethodPost, "/prestations", createPayload())

	rec := doRequest(t, s, http.MethodGet, "/prestations/client/dupont", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET by client status = %d, want 200", rec.Code)
	}
	prestations := decodeBody[[]prestationResponse](t, rec)
	if len(prestations) != 1 {
		t.Errorf("prestations = %v, want 1 entry", prestations)
	}

	rec = doRequest(t, s, http.MethodGet, "/prestations/client/inconnu", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET unknown client status = %d, want 404", rec.Code)
	}
}

func TestMentalPrepStatsFourBuckets(t *testing.T) {
	s := newTestServer(newFakeService())

	payload := createPayload()
	payload["category"] = core.CategoryMentalPrep
	doRequest(t, s, http.MethodPost, "/prestations", payload)

	rec := doRequest(t, s, http.MethodGet, "/prestations/stats/mental-preparation?year=2024", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET stats status = %d, want 200", rec.Code)
	}
	stats := decodeBody[[]quarterStatResponse](t, rec)
	if len(stats) != 4 {
		t.Fatalf("stats buckets = %d, want 4 even with sparse data", len(stats))
	}
	if stats[0].Prestations != 1 || stats[0].Revenue != 450.5 {
		t.Errorf("Q1 = %+v, want the March prestation", stats[0])
	}
	for q := 1; q < 4; q++ {
		if stats[q].Prestations != 0 {
			t.Errorf("Q%d should be empty, got %+v", q+1, stats[q])
		}
	}

	rec = doRequest(t, s, http.MethodGet, "/prestations/stats/mental-preparation?year=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET stats with bad year status = %d, want 400", rec.Code)
	}
}

func TestObjectivesEndpoint(t *testing.T) {
	s := newTestServer(newFakeService())

	payload := createPayload()
	payload["price"] = 3000
	doRequest(t, s, http.MethodPost, "/prestations", payload)

	rec := doRequest(t, s, http.MethodGet, "/prestations/stats/objectives", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET objectives status = %d, want 200", rec.Code)
	}
	rows := decodeBody[[]objectiveRowResponse](t, rec)
	if len(rows) != 2 {
		t.Fatalf("objective rows = %d, want 2 (earning month plus carry month)", len(rows))
	}
	first := rows[0]
	if first.Providers[0].Name != core.ProviderFlorian {
		t.Errorf("first provider = %s, want %s", first.Providers[0].Name, core.ProviderFlorian)
	}
	if first.Providers[0].Amount != 3000 || !first.Providers[0].Validated {
		t.Errorf("March = %+v, want 3000 validated", first.Providers[0])
	}
	if rows[1].Month != 4 || rows[1].Providers[0].Amount != 500 {
		t.Errorf("April carry = %+v, want 500", rows[1].Providers[0])
	}
}

func TestRevenueEndpoint(t *testing.T) {
	s := newTestServer(newFakeService())

	doRequest(t, s, http.MethodPost, "/prestations", createPayload())

	rec := doRequest(t, s, http.MethodGet, "/prestations/stats/revenue?years=2024,2023", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET revenue status = %d, want 200", rec.Code)
	}
	revenues := decodeBody[[]yearRevenueResponse](t, rec)
	if len(revenues) != 2 {
		t.Fatalf("revenue years = %d, want 2", len(revenues))
	}
	if revenues[0].Year != 2024 || revenues[0].Quarters[0] != 450.5 || revenues[0].Total != 450.5 {
		t.Errorf("2024 revenue = %+v", revenues[0])
	}
	if revenues[1].Total != 0 {
		t.Errorf("2023 revenue = %+v, want empty", revenues[1])
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	s := newTestServer(newFakeService())

	doRequest(t, s, http.MethodPost, "/prestations", createPayload())

	rec := doRequest(t, s, http.MethodGet, "/prestations/stats/categories?year=2024", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET categories status = %d, want 200", rec.Code)
	}
	counts := decodeBody[[]categoryCountResponse](t, rec)
	if len(counts) != len(core.Categories) {
		t.Fatalf("categories = %d, want %d", len(counts), len(core.Categories))
	}
	if counts[0].Category != core.CategoryWebsite || counts[0].Count != 1 {
		t.Errorf("website bucket = %+v, want count 1", counts[0])
	}
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	svc := newFakeService()
	svc.failAll = true
	s := newTestServer(svc)

	rec := doRequest(t, s, http.MethodGet, "/prestations", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("GET with failing store status = %d, want 500", rec.Code)
	}
	resp := decodeBody[map[string]string](t, rec)
	if strings.Contains(resp["error"], "database gone") {
		t.Errorf("internal detail leaked to the client: %q", resp["error"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(newFakeService())

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}
