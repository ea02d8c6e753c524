package profile

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tristate distinguishes "unknown" from an explicit yes/no answer.
// The zero value is Unknown.
type Tristate int

const (
	Unknown Tristate = iota
	No
	Yes
)

// MarshalJSON encodes Unknown as null so API consumers see the same
// shape as an optional boolean.
func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *Tristate) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true":
		*t = Yes
	case "false":
		*t = No
	case "null":
		*t = Unknown
	default:
		return fmt.Errorf("invalid tristate value %q", data)
	}
	return nil
}

// Turn is one entry in the conversation history.
type Turn struct {
	Role      string    `json:"role"` // "user" or "agent"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile is the structured record of one student's known attributes,
// built up incrementally from conversation turns.
type Profile struct {
	SessionID   string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// Demographic / contextual
	Location          string   `json:"location,omitempty"`
	WillingToRelocate Tristate `json:"willing_to_relocate"`
	RelocationRadius  string   `json:"relocation_radius,omitempty"`
	SchoolType        string   `json:"school_type,omitempty"`
	DiplomaScore      *float64 `json:"diploma_score,omitempty"`
	RegularPath       Tristate `json:"regular_path"`
	CurrentStatus     string   `json:"current_status,omitempty"`
	HasJob            Tristate `json:"has_job"`

	// Interests and aptitudes
	FavoriteSubjects    []string `json:"favorite_subjects"`
	DislikedSubjects    []string `json:"disliked_subjects"`
	LearningStyle       string   `json:"learning_style,omitempty"`
	SoftSkills          []string `json:"soft_skills"`
	Hobbies             []string `json:"hobbies"`
	RelevantExperiences []string `json:"relevant_experiences"`

	// Goals and constraints
	PrimaryGoal           string   `json:"primary_goal,omitempty"`
	FurtherStudies        Tristate `json:"further_studies"`
	PreferredCourseLength string   `json:"preferred_course_length,omitempty"`
	InstitutionPreference string   `json:"institution_preference,omitempty"`
	BudgetConstraint      string   `json:"budget_constraint,omitempty"`
	TimeConstraint        string   `json:"time_constraint,omitempty"`
	HealthConstraints     []string `json:"health_constraints"`

	// Derived fields, recomputed on every mutation, never set directly.
	Completeness    float64 `json:"profile_completeness"`
	MissingPriority []Field `json:"missing_info_priority"`

	History []Turn `json:"conversation_history"`
}

// New creates an empty profile with a fresh session identifier.
func New() *Profile {
	now := time.Now()
	p := &Profile{
		SessionID:   uuid.New().String(),
		CreatedAt:   now,
		LastUpdated: now,
	}
	p.recompute()
	return p
}

// AppendTurn records one conversation turn. History is append-only and
// does not affect completeness.
func (p *Profile) AppendTurn(role, message string) {
	p.History = append(p.History, Turn{
		Role:      role,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// touch bumps LastUpdated, keeping it monotonically non-decreasing.
func (p *Profile) touch() {
	if now := time.Now(); now.After(p.LastUpdated) {
		p.LastUpdated = now
	}
}

// criticalFields drive the completeness score. Exactly 5 fields; the
// sufficiency threshold of 0.6 means 3 of 5 suffice.
var criticalFields = []Field{
	FieldLocation,
	FieldSchoolType,
	FieldFavoriteSubjects,
	FieldPrimaryGoal,
	FieldInstitutionPreference,
}

// sufficiencyThreshold is the completeness cutoff that switches the agent
// from asking questions to recommending.
const sufficiencyThreshold = 0.6

// recompute refreshes Completeness and MissingPriority from the current
// field values. Must run before any mutation returns control.
func (p *Profile) recompute() {
	filled := 0
	for _, f := range criticalFields {
		if registry[f].isSet(p) {
			filled++
		}
	}
	p.Completeness = float64(filled) / float64(len(criticalFields))

	p.MissingPriority = p.MissingPriority[:0]
	for _, f := range priorityOrder {
		if !registry[f].isSet(p) {
			p.MissingPriority = append(p.MissingPriority, f)
		}
	}
}

// SufficientForRecommendation reports whether enough critical fields are
// known to switch from questioning to recommendations.
func (p *Profile) SufficientForRecommendation() bool {
	return p.Completeness >= sufficiencyThreshold
}

// NextMissing returns the highest-priority unset field, or "" when the
// profile has no gaps left in the priority list.
func (p *Profile) NextMissing() Field {
	if len(p.MissingPriority) == 0 {
		return ""
	}
	return p.MissingPriority[0]
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func joinOrDefault(vs []string, def string) string {
	if len(vs) == 0 {
		return def
	}
	return strings.Join(vs, ", ")
}

// Context renders the compact profile view injected into generation
// prompts. Fixed template: every line appears whether known or not.
func (p *Profile) Context() string {
	return fmt.Sprintf(`Completamento: %.1f%%
Località: %s
Scuola: %s
Materie preferite: %s
Obiettivo: %s
Preferenza istituzione: %s`,
		p.Completeness*100,
		orDefault(p.Location, "Non specificata"),
		orDefault(p.SchoolType, "Non specificata"),
		joinOrDefault(p.FavoriteSubjects, "Nessuna"),
		orDefault(p.PrimaryGoal, "Non specificato"),
		orDefault(p.InstitutionPreference, "Non specificata"),
	)
}

// Summary returns a human-readable recap of the profile.
func (p *Profile) Summary() string {
	id := p.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	lines := []string{
		"=== RIEPILOGO PROFILO STUDENTE ===",
		fmt.Sprintf("Sessione: %s...", id),
		fmt.Sprintf("Completamento: %.1f%%", p.Completeness*100),
		"",
		fmt.Sprintf("- Località: %s", orDefault(p.Location, "Non specificata")),
		fmt.Sprintf("- Tipo scuola: %s", orDefault(p.SchoolType, "Non specificato")),
		fmt.Sprintf("- Materie preferite: %s", joinOrDefault(p.FavoriteSubjects, "Nessuna")),
		fmt.Sprintf("- Obiettivo primario: %s", orDefault(p.PrimaryGoal, "Non specificato")),
		fmt.Sprintf("- Preferenza istituzione: %s", orDefault(p.InstitutionPreference, "Non specificata")),
	}
	if len(p.Hobbies) > 0 {
		lines = append(lines, fmt.Sprintf("- Hobby: %s", strings.Join(p.Hobbies, ", ")))
	}
	if p.WillingToRelocate != Unknown {
		v := "No"
		if p.WillingToRelocate == Yes {
			v = "Sì"
		}
		lines = append(lines, fmt.Sprintf("- Disponibile a trasferirsi: %s", v))
	}
	return strings.Join(lines, "\n")
}

// Clone returns a deep copy, so callers can hand out snapshots without
// exposing internal slices.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.FavoriteSubjects = cloneStrings(p.FavoriteSubjects)
	cp.DislikedSubjects = cloneStrings(p.DislikedSubjects)
	cp.SoftSkills = cloneStrings(p.SoftSkills)
	cp.Hobbies = cloneStrings(p.Hobbies)
	cp.RelevantExperiences = cloneStrings(p.RelevantExperiences)
	cp.HealthConstraints = cloneStrings(p.HealthConstraints)
	if p.DiplomaScore != nil {
		score := *p.DiplomaScore
		cp.DiplomaScore = &score
	}
	if p.MissingPriority != nil {
		cp.MissingPriority = make([]Field, len(p.MissingPriority))
		copy(cp.MissingPriority, p.MissingPriority)
	}
	if p.History != nil {
		cp.History = make([]Turn, len(p.History))
		copy(cp.History, p.History)
	}
	return &cp
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s))
	copy(cp, s)
	return cp
}

// Marshal serializes the profile for storage.
func (p *Profile) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal restores a profile serialized with Marshal and recomputes the
// derived fields in case the stored copy predates a registry change.
func Unmarshal(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	p.recompute()
	return &p, nil
}
