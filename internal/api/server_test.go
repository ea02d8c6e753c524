package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davoli/bussola/internal/agent"
	"github.com/davoli/bussola/internal/gemini"
	"github.com/davoli/bussola/internal/profile"
	"github.com/davoli/bussola/internal/search"
	"github.com/davoli/bussola/internal/session"
)

type fixedGenerator struct {
	extraction string
	generation string
}

func (g *fixedGenerator) Generate(_ context.Context, prompt string, _ gemini.Options) (string, error) {
	if strings.HasPrefix(prompt, "Analizza questo messaggio") {
		return g.extraction, nil
	}
	return g.generation, nil
}

type fixedRecommender struct {
	results *search.Results
	err     error
}

func (f *fixedRecommender) ForProfile(context.Context, search.Query) (*search.Results, error) {
	return f.results, f.err
}

func newTestDeps(gen agent.Generator, rec Recommender) (Deps, session.Store) {
	store := session.NewMemoryStore(0)
	return Deps{
		Agent:      agent.New(store, gen, nil),
		Store:      store,
		Recommends: rec,
		Origins:    []string{"http://localhost:3000"},
		Version:    "test",
	}, store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestChatCreatesSessionSilently(t *testing.T) {
	gen := &fixedGenerator{
		extraction: `[{"field_name": "location", "value": "Milano", "confidence": "alta"}]`,
		generation: "Che scuola frequenti?",
	}
	deps, _ := newTestDeps(gen, nil)
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/api/chat", ChatRequest{Message: "Abito a Milano"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}

	var resp ChatResponse
	decodeBody(t, rr, &resp)
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if resp.Response != "Che scuola frequenti?" {
		t.Errorf("response = %q", resp.Response)
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("no recommendations expected yet, got %v", resp.Recommendations)
	}
	if len(resp.ConversationHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(resp.ConversationHistory))
	}

	// A follow-up with the same session id must reuse it.
	rr = doJSON(t, h, http.MethodPost, "/api/chat", ChatRequest{Message: "Liceo", SessionID: resp.SessionID})
	var second ChatResponse
	decodeBody(t, rr, &second)
	if second.SessionID != resp.SessionID {
		t.Errorf("session id changed: %q vs %q", second.SessionID, resp.SessionID)
	}
}

func TestChatRequiresMessage(t *testing.T) {
	deps, _ := newTestDeps(&fixedGenerator{extraction: "[]", generation: "?"}, nil)
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/api/chat", ChatRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestChatHistoryCappedAtFive(t *testing.T) {
	gen := &fixedGenerator{extraction: "[]", generation: "Dove vivi?"}
	deps, _ := newTestDeps(gen, nil)
	h := NewHandler(deps)

	var sessionID string
	for i := 0; i < 4; i++ {
		rr := doJSON(t, h, http.MethodPost, "/api/chat", ChatRequest{Message: "ciao", SessionID: sessionID})
		var resp ChatResponse
		decodeBody(t, rr, &resp)
		sessionID = resp.SessionID
	}

	rr := doJSON(t, h, http.MethodPost, "/api/chat", ChatRequest{Message: "ciao", SessionID: sessionID})
	var resp ChatResponse
	decodeBody(t, rr, &resp)
	if len(resp.ConversationHistory) != 5 {
		t.Errorf("history length = %d, want 5", len(resp.ConversationHistory))
	}
}

func TestChatAttachesRecommendationsWhenSufficient(t *testing.T) {
	gen := &fixedGenerator{
		extraction: `[{"field_name": "materie", "value": "informatica", "confidence": "alta"}]`,
		generation: "Ecco i consigli...",
	}
	deps, store := newTestDeps(gen, nil)

	seed, _ := store.Create()
	profile.Apply(seed, profile.Update{Field: profile.FieldLocation, Value: "Torino", Confidence: profile.ConfidenceHigh})
	profile.Apply(seed, profile.Update{Field: profile.FieldSchoolType, Value: "Liceo", Confidence: profile.ConfidenceHigh})
	profile.Apply(seed, profile.Update{Field: profile.FieldPrimaryGoal, Value: "lavoro", Confidence: profile.ConfidenceHigh})
	store.Put(seed.SessionID, seed)

	h := NewHandler(deps)
	rr := doJSON(t, h, http.MethodPost, "/api/chat", ChatRequest{Message: "Mi piace informatica", SessionID: seed.SessionID})

	var resp ChatResponse
	decodeBody(t, rr, &resp)
	if len(resp.Recommendations) != 1 {
		t.Fatalf("recommendations = %v, want exactly one", resp.Recommendations)
	}
	if resp.Recommendations[0].Name != "Corsi in informatica" {
		t.Errorf("recommendation name = %q", resp.Recommendations[0].Name)
	}
}

func TestProfileSnapshotAndNotFound(t *testing.T) {
	deps, store := newTestDeps(&fixedGenerator{extraction: "[]", generation: "?"}, nil)
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodGet, "/api/profile/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	var errResp struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, rr, &errResp)
	if errResp.Error.Type != "not_found" {
		t.Errorf("error type = %q", errResp.Error.Type)
	}

	seed, _ := store.Create()
	profile.Apply(seed, profile.Update{Field: profile.FieldLocation, Value: "Bari", Confidence: profile.ConfidenceHigh})
	store.Put(seed.SessionID, seed)

	rr = doJSON(t, h, http.MethodGet, "/api/profile/"+seed.SessionID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var snap agent.Snapshot
	decodeBody(t, rr, &snap)
	if snap.Location != "Bari" || snap.Completeness != 0.2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestRecommendationsFromSearch(t *testing.T) {
	rec := &fixedRecommender{results: &search.Results{
		Recommendations: []string{
			"🎓 **Informatica** presso Alma Mater Bologna",
			"🔧 ITS Tech Talent Factory: ITS Sviluppo Software",
		},
	}}
	deps, _ := newTestDeps(&fixedGenerator{extraction: "[]", generation: "?"}, rec)
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/api/recommendations", RecommendationRequest{
		Interests: []string{"informatica"},
		Location:  "Bologna",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Recommendations) != 2 {
		t.Fatalf("recommendations = %v", resp.Recommendations)
	}
	if resp.Recommendations[0].Type != "university" || resp.Recommendations[1].Type != "its" {
		t.Errorf("types = %q, %q", resp.Recommendations[0].Type, resp.Recommendations[1].Type)
	}
	if strings.Contains(resp.Recommendations[0].Name, "🎓") {
		t.Errorf("marker not stripped: %q", resp.Recommendations[0].Name)
	}
}

func TestRecommendationsStaticFallback(t *testing.T) {
	cases := map[string]Recommender{
		"nil recommender": nil,
		"search failure":  &fixedRecommender{err: errors.New("network down")},
		"empty search":    &fixedRecommender{results: &search.Results{}},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			deps, _ := newTestDeps(&fixedGenerator{extraction: "[]", generation: "?"}, rec)
			h := NewHandler(deps)

			rr := doJSON(t, h, http.MethodPost, "/api/recommendations", RecommendationRequest{
				Interests: []string{"storia"},
			})
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			var resp struct {
				Recommendations []Recommendation `json:"recommendations"`
			}
			decodeBody(t, rr, &resp)
			if len(resp.Recommendations) != 2 || resp.Recommendations[0].Name != "Informatica" {
				t.Errorf("expected the static fallback, got %v", resp.Recommendations)
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	deps, store := newTestDeps(&fixedGenerator{extraction: "[]", generation: "?"}, nil)
	h := NewHandler(deps)

	seed, _ := store.Create()

	rr := doJSON(t, h, http.MethodDelete, "/api/sessions/"+seed.SessionID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodDelete, "/api/sessions/"+seed.SessionID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	deps, store := newTestDeps(&fixedGenerator{extraction: "[]", generation: "?"}, nil)
	h := NewHandler(deps)

	old, _ := store.Create()
	aged := old.Clone()
	aged.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	store.Put(aged.SessionID, aged)
	store.Create() // fresh session survives

	rr := doJSON(t, h, http.MethodPost, "/api/sessions/sweep", SweepRequest{MaxAgeHours: 24})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var resp struct {
		Removed int `json:"removed"`
	}
	decodeBody(t, rr, &resp)
	if resp.Removed != 1 {
		t.Errorf("removed = %d, want 1", resp.Removed)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/sessions/sweep", SweepRequest{MaxAgeHours: -1})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("negative max_age status = %d, want 400", rr.Code)
	}
}

func TestDocumentRejectsBadPayloads(t *testing.T) {
	deps, store := newTestDeps(&fixedGenerator{extraction: "[]", generation: "?"}, nil)
	h := NewHandler(deps)

	seed, _ := store.Create()
	base := "/api/profile/" + seed.SessionID + "/document"

	rr := doJSON(t, h, http.MethodPost, base, DocumentRequest{Content: ""})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty content status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, base, DocumentRequest{Content: "not-base64!!!"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad base64 status = %d, want 400", rr.Code)
	}

	// Valid base64 but not a PDF.
	rr = doJSON(t, h, http.MethodPost, base, DocumentRequest{Content: "aGVsbG8gd29ybGQ="})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("non-pdf status = %d, want 422", rr.Code)
	}
}

func TestHealthReportsDegradedWithoutGenerator(t *testing.T) {
	store := session.NewMemoryStore(0)
	deps := Deps{
		Agent: agent.New(store, nil, nil),
		Store: store,
	}
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	var resp struct {
		Status     string `json:"status"`
		AgentReady bool   `json:"agent_ready"`
	}
	decodeBody(t, rr, &resp)
	if resp.Status != "degraded" || resp.AgentReady {
		t.Errorf("health = %+v, want degraded", resp)
	}
}
