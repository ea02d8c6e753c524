// Package agent drives one orientation conversation turn: extract
// profile updates from the user's message, merge them, then either ask
// for the next missing information or recommend study paths.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/davoli/bussola/internal/extract"
	"github.com/davoli/bussola/internal/gemini"
	"github.com/davoli/bussola/internal/profile"
	"github.com/davoli/bussola/internal/search"
	"github.com/davoli/bussola/internal/session"
)

const (
	questionTemperature = 0.7
	questionMaxTokens   = 200
	recommendMaxTokens  = 800
)

// Generator is the text-completion capability the agent depends on.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts gemini.Options) (string, error)
}

// Enricher supplies real program candidates for recommendation prompts.
type Enricher interface {
	ForProfile(ctx context.Context, q search.Query) (*search.Results, error)
}

// Agent orchestrates turns over injected collaborators. Construct one per
// process; there are no package-level instances.
type Agent struct {
	store     session.Store
	gen       Generator
	extractor *extract.Extractor
	enricher  Enricher // optional
}

// New creates an Agent. gen may be nil when no API key is configured:
// the agent then reports itself unavailable and answers every turn with
// a fixed message instead of crashing. enricher may be nil to disable
// web-search augmentation.
func New(store session.Store, gen Generator, enricher Enricher) *Agent {
	a := &Agent{store: store, gen: gen, enricher: enricher}
	if gen != nil {
		a.extractor = extract.New(gen)
	}
	return a
}

// Available reports whether the completion backend is configured.
func (a *Agent) Available() bool {
	return a.gen != nil
}

// StartNewConversation creates a session, records the welcome turn, and
// returns the welcome text with the fresh profile.
func (a *Agent) StartNewConversation(ctx context.Context) (string, *profile.Profile, error) {
	p, err := a.store.Create()
	if err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}
	p.AppendTurn("agent", WelcomeMessage)
	if err := a.store.Put(p.SessionID, p); err != nil {
		return "", nil, fmt.Errorf("persisting session %s: %w", p.SessionID, err)
	}
	return WelcomeMessage, p, nil
}

// ProcessMessage runs one conversation turn. A missing session id (or an
// id the store no longer holds) silently starts a new profile. Extraction
// and generation failures degrade to fixed text; only persistence
// failures surface as errors, since dropping a profile update would leave
// the stored completeness stale.
func (a *Agent) ProcessMessage(ctx context.Context, sessionID, message string) (string, *profile.Profile, error) {
	if !a.Available() {
		return UnavailableMessage, nil, nil
	}

	p, err := a.loadOrCreate(sessionID)
	if err != nil {
		return "", nil, err
	}

	p.AppendTurn("user", message)

	updates := a.extractor.Extract(ctx, message)
	changed := 0
	for _, u := range updates {
		if profile.Apply(p, u) {
			changed++
		}
	}
	if changed > 0 {
		slog.Debug("profile fields updated",
			"session", p.SessionID,
			"changed", changed,
			"completeness", p.Completeness,
		)
	}

	var response string
	if p.SufficientForRecommendation() {
		response = a.generateRecommendation(ctx, p)
	} else {
		response = a.generateQuestion(ctx, p)
	}

	p.AppendTurn("agent", response)

	if err := a.store.Put(p.SessionID, p); err != nil {
		return "", nil, fmt.Errorf("persisting session %s: %w", p.SessionID, err)
	}
	return response, p, nil
}

func (a *Agent) loadOrCreate(sessionID string) (*profile.Profile, error) {
	if sessionID != "" {
		p, err := a.store.Get(sessionID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
		}
		// Unknown ids fall through to a fresh profile; the snapshot
		// endpoint is the one that returns an explicit not-found.
	}
	p, err := a.store.Create()
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return p, nil
}

// generateQuestion asks the model for exactly one follow-up question
// targeting the most important gap, with a deterministic fallback.
func (a *Agent) generateQuestion(ctx context.Context, p *profile.Profile) string {
	out, err := a.gen.Generate(ctx, questionPrompt(p), gemini.Options{
		Temperature:     questionTemperature,
		MaxOutputTokens: questionMaxTokens,
	})
	if err != nil {
		slog.Warn("question generation failed, using fallback", "error", err)
		return fallbackQuestion(p)
	}
	return out
}

// generateRecommendation produces the summary-plus-suggestions reply,
// optionally enriched with real course candidates from the web.
func (a *Agent) generateRecommendation(ctx context.Context, p *profile.Profile) string {
	var enrichment *search.Results
	if a.enricher != nil {
		res, err := a.enricher.ForProfile(ctx, search.Query{
			FavoriteSubjects:      p.FavoriteSubjects,
			Location:              p.Location,
			SchoolType:            p.SchoolType,
			PrimaryGoal:           p.PrimaryGoal,
			InstitutionPreference: p.InstitutionPreference,
		})
		if err != nil {
			slog.Warn("enrichment search failed, recommending without it", "error", err)
		} else if res != nil && (len(res.UniversityCourses.Courses) > 0 || len(res.ITSCourses.Courses) > 0) {
			enrichment = res
		}
	}

	out, err := a.gen.Generate(ctx, recommendationPrompt(p, enrichment), gemini.Options{
		Temperature:     questionTemperature,
		MaxOutputTokens: recommendMaxTokens,
	})
	if err != nil {
		slog.Warn("recommendation generation failed, using fallback", "error", err)
		return recommendationFallback
	}
	return out
}

// ErrUnavailable is returned by operations that cannot degrade to fixed
// text when no completion backend is configured.
var ErrUnavailable = errors.New("completion backend not configured")

// IngestText runs extraction over document text (a transcript or CV) and
// merges the results into an existing session. Unlike turn processing,
// the session must exist: ErrNotFound surfaces to the caller.
func (a *Agent) IngestText(ctx context.Context, sessionID, text string) ([]profile.Field, *profile.Profile, error) {
	if !a.Available() {
		return nil, nil, ErrUnavailable
	}
	p, err := a.store.Get(sessionID)
	if err != nil {
		return nil, nil, err
	}

	var changed []profile.Field
	for _, u := range a.extractor.Extract(ctx, text) {
		if profile.Apply(p, u) {
			changed = append(changed, u.Field)
		}
	}
	if len(changed) == 0 {
		return nil, p, nil
	}

	if err := a.store.Put(p.SessionID, p); err != nil {
		return nil, nil, fmt.Errorf("persisting session %s: %w", p.SessionID, err)
	}
	return changed, p, nil
}

// Snapshot is the read-only profile view served to clients.
type Snapshot struct {
	SessionID        string          `json:"session_id"`
	Location         string          `json:"location"`
	SchoolType       string          `json:"school_type"`
	FavoriteSubjects []string        `json:"favorite_subjects"`
	PrimaryGoal      string          `json:"primary_goal"`
	Completeness     float64         `json:"completeness"`
	ReadyForSearch   bool            `json:"ready_for_search"`
	MissingInfo      []profile.Field `json:"missing_info"`
}

// Snapshot returns the read-only view for a session. Unlike turn
// processing, a lookup miss here surfaces session.ErrNotFound.
func (a *Agent) Snapshot(sessionID string) (*Snapshot, error) {
	p, err := a.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	missing := p.MissingPriority
	if len(missing) > 3 {
		missing = missing[:3]
	}
	return &Snapshot{
		SessionID:        p.SessionID,
		Location:         p.Location,
		SchoolType:       p.SchoolType,
		FavoriteSubjects: p.FavoriteSubjects,
		PrimaryGoal:      p.PrimaryGoal,
		Completeness:     p.Completeness,
		ReadyForSearch:   p.SufficientForRecommendation(),
		MissingInfo:      missing,
	}, nil
}
