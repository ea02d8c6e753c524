// Package api exposes the orientation agent over HTTP (chi router) and
// over MCP. The HTTP surface mirrors what the reference frontend expects:
// a chat endpoint, profile snapshots, web-search recommendations, document
// ingest, and session maintenance.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/davoli/bussola/internal/agent"
	"github.com/davoli/bussola/internal/document"
	"github.com/davoli/bussola/internal/search"
	"github.com/davoli/bussola/internal/session"
)

const maxRequestBodySize = 1 << 20   // 1MB
const maxDocumentBodySize = 10 << 20 // 10MB

// Recommender abstracts the web searcher for the standalone
// recommendations endpoint.
type Recommender interface {
	ForProfile(ctx context.Context, q search.Query) (*search.Results, error)
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Agent      *agent.Agent
	Store      session.Store
	Recommends Recommender // optional; nil disables web-backed recommendations
	Origins    []string
	Version    string
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", handleRoot(deps))
	r.Get("/health", handleHealth(deps))
	r.Post("/api/chat", handleChat(deps))
	r.Get("/api/profile/{sessionID}", handleProfile(deps))
	r.Post("/api/profile/{sessionID}/document", handleDocument(deps))
	r.Post("/api/recommendations", handleRecommendations(deps))
	r.Delete("/api/sessions/{sessionID}", handleDeleteSession(deps))
	r.Post("/api/sessions/sweep", handleSweep(deps))

	return r
}

func handleRoot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"message":         "Bussola orientation API",
			"status":          "running",
			"agent_available": deps.Agent.Available(),
			"version":         deps.Version,
			"endpoints": []string{
				"/health", "/api/chat", "/api/recommendations",
				"/api/profile/{session_id}",
			},
		})
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if !deps.Agent.Available() {
			status = "degraded"
		}
		writeJSON(w, map[string]any{
			"status":      status,
			"agent_ready": deps.Agent.Available(),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type ChatTurn struct {
	User      string `json:"user"`
	Agent     string `json:"agent"`
	Timestamp string `json:"timestamp"`
}

type ChatResponse struct {
	Response            string           `json:"response"`
	SessionID           string           `json:"session_id"`
	Recommendations     []Recommendation `json:"recommendations,omitempty"`
	ConversationHistory []ChatTurn       `json:"conversation_history"`
}

type Recommendation struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	MatchScore float64 `json:"match_score"`
	Reason     string  `json:"reason"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		response, p, err := deps.Agent.ProcessMessage(r.Context(), req.SessionID, req.Message)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "processing message: %v", err)
			return
		}

		resp := ChatResponse{
			Response:            response,
			SessionID:           req.SessionID,
			ConversationHistory: []ChatTurn{},
		}
		if p != nil {
			resp.SessionID = p.SessionID
			if p.SufficientForRecommendation() {
				resp.Recommendations = profileRecommendations(p.FavoriteSubjects)
			}
			history := p.History
			if len(history) > 5 {
				history = history[len(history)-5:]
			}
			for _, turn := range history {
				ct := ChatTurn{Timestamp: turn.Timestamp.Format(time.RFC3339)}
				if turn.Role == "user" {
					ct.User = turn.Message
				} else {
					ct.Agent = turn.Message
				}
				resp.ConversationHistory = append(resp.ConversationHistory, ct)
			}
		}
		writeJSON(w, resp)
	}
}

// profileRecommendations is the inline hint attached to chat responses
// once the profile is ready for a real search.
func profileRecommendations(subjects []string) []Recommendation {
	area := "tua zona"
	reason := "materie scientifiche"
	if len(subjects) > 0 {
		if len(subjects) > 2 {
			subjects = subjects[:2]
		}
		area = strings.Join(subjects, ", ")
		reason = area
	}
	return []Recommendation{{
		Type:       "university",
		Name:       fmt.Sprintf("Corsi in %s", area),
		MatchScore: 0.9,
		Reason:     fmt.Sprintf("Basato sui tuoi interessi in %s", reason),
	}}
}

func handleProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")

		snap, err := deps.Agent.Snapshot(id)
		if errors.Is(err, session.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile: %v", err)
			return
		}
		writeJSON(w, snap)
	}
}

type DocumentRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"` // base64-encoded PDF
}

func handleDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		defer r.Body.Close()

		id := chi.URLParam(r, "sessionID")

		var req DocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}

		raw, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
			return
		}

		text, err := document.ExtractText(bytes.NewReader(raw), int64(len(raw)))
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "extracting document text: %v", err)
			return
		}

		changed, p, err := deps.Agent.IngestText(r.Context(), id, text)
		if errors.Is(err, session.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if errors.Is(err, agent.ErrUnavailable) {
			httpError(w, http.StatusServiceUnavailable, "api_error", "extraction backend not configured")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingesting document: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"updated_fields":   changed,
			"completeness":     p.Completeness,
			"ready_for_search": p.SufficientForRecommendation(),
		})
	}
}

type RecommendationRequest struct {
	Interests []string `json:"interests"`
	Skills    []string `json:"skills"`
	Location  string   `json:"location"`
	Budget    *float64 `json:"budget"`
}

func handleRecommendations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req RecommendationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var recs []Recommendation
		if deps.Recommends != nil {
			results, err := deps.Recommends.ForProfile(r.Context(), search.Query{
				FavoriteSubjects: req.Interests,
				Location:         req.Location,
			})
			if err != nil {
				slog.Warn("recommendation search failed, using static fallback", "error", err)
			} else if results != nil {
				recs = typedRecommendations(results.Recommendations)
			}
		}
		if len(recs) == 0 {
			recs = staticRecommendations
		}

		writeJSON(w, map[string]any{
			"recommendations": recs,
			"profile_analysis": map[string]any{
				"interests": req.Interests,
				"skills":    req.Skills,
				"location":  req.Location,
				"budget":    req.Budget,
			},
		})
	}
}

var staticRecommendations = []Recommendation{
	{
		Type:       "university",
		Name:       "Informatica",
		MatchScore: 0.85,
		Reason:     "Basato sui tuoi interessi in tecnologia",
	},
	{
		Type:       "its",
		Name:       "ITS per lo Sviluppo Software",
		MatchScore: 0.78,
		Reason:     "Ottimo per entrare rapidamente nel mondo del lavoro",
	},
}

var markerStripper = strings.NewReplacer("🎓", "", "🔧", "", "📊", "")

// typedRecommendations converts the searcher's marker-prefixed strings
// into the typed entries the frontend renders. At most three.
func typedRecommendations(lines []string) []Recommendation {
	var recs []Recommendation
	for _, line := range lines {
		if len(recs) == 3 {
			break
		}
		typ := "general"
		switch {
		case strings.Contains(line, "🎓"):
			typ = "university"
		case strings.Contains(line, "🔧"):
			typ = "its"
		}
		recs = append(recs, Recommendation{
			Type:       typ,
			Name:       strings.TrimSpace(markerStripper.Replace(line)),
			MatchScore: 0.85,
			Reason:     "Basato su ricerca web aggiornata",
		})
	}
	return recs
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")

		err := deps.Store.Delete(id)
		if errors.Is(err, session.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting session: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

type SweepRequest struct {
	MaxAgeHours float64 `json:"max_age_hours"`
}

func handleSweep(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		req := SweepRequest{MaxAgeHours: 24}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.MaxAgeHours <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "max_age_hours must be positive")
			return
		}

		maxAge := time.Duration(req.MaxAgeHours * float64(time.Hour))
		removed, err := deps.Store.SweepOlderThan(maxAge)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "sweeping sessions: %v", err)
			return
		}
		writeJSON(w, map[string]int{"removed": removed})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
