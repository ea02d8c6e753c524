package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/davoli/bussola/internal/gemini"
	"github.com/davoli/bussola/internal/profile"
)

// mockGenerator returns a canned response or error.
type mockGenerator struct {
	response string
	err      error

	lastPrompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string, _ gemini.Options) (string, error) {
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestExtractHighConfidenceLocation(t *testing.T) {
	gen := &mockGenerator{response: `[{"field_name": "location", "value": "Milano", "confidence": "alta"}]`}
	e := New(gen)

	updates := e.Extract(context.Background(), "Abito a Milano")
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	u := updates[0]
	if u.Field != profile.FieldLocation || u.Value != "Milano" || u.Confidence != profile.ConfidenceHigh {
		t.Errorf("unexpected update: %+v", u)
	}
	if !strings.Contains(gen.lastPrompt, `"Abito a Milano"`) {
		t.Error("prompt does not contain the utterance")
	}
}

func TestExtractEmptyUtteranceSkipsGenerator(t *testing.T) {
	gen := &mockGenerator{response: `[]`}
	e := New(gen)

	if updates := e.Extract(context.Background(), "   "); updates != nil {
		t.Errorf("expected nil, got %v", updates)
	}
	if gen.lastPrompt != "" {
		t.Error("generator should not have been called")
	}
}

func TestExtractGeneratorFailureReturnsEmpty(t *testing.T) {
	gen := &mockGenerator{err: &gemini.GenerationError{Op: "generate", Err: errors.New("quota exceeded")}}
	e := New(gen)

	if updates := e.Extract(context.Background(), "Abito a Milano"); len(updates) != 0 {
		t.Errorf("expected no updates, got %v", updates)
	}
}

func TestParseResponses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"empty array token", "[]", 0},
		{"empty string", "", 0},
		{"malformed", "{not json", 0},
		{"prose only", "Non ho trovato informazioni.", 0},
		{
			"fenced array",
			"```json\n[{\"field_name\": \"location\", \"value\": \"Roma\", \"confidence\": \"alta\"}]\n```",
			1,
		},
		{
			"leading language tag",
			"json [{\"field_name\": \"hobbies\", \"value\": \"musica\", \"confidence\": \"media\"}]",
			1,
		},
		{
			"singleton object",
			`{"field_name": "school_type", "value": "Liceo", "confidence": "media"}`,
			1,
		},
		{
			"array embedded in prose",
			`Ecco il risultato: [{"field_name": "location", "value": "Bari", "confidence": "alta"}] spero sia utile`,
			1,
		},
		{
			"unknown field dropped",
			`[{"field_name": "favorite_color", "value": "blu", "confidence": "alta"},
			  {"field_name": "location", "value": "Napoli", "confidence": "alta"}]`,
			1,
		},
		{
			"null value dropped",
			`[{"field_name": "location", "value": null, "confidence": "alta"}]`,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			if len(got) != tt.want {
				t.Errorf("Parse(%q) = %v, want %d updates", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseNormalizesSynonymsAndConfidence(t *testing.T) {
	got := Parse(`[
		{"field_name": "Località", "value": "Torino", "confidence": "alta"},
		{"field_name": "materie", "value": "fisica", "confidence": "media"},
		{"field_name": "interessi", "value": "scacchi", "confidence": "bassa"}
	]`)
	if len(got) != 3 {
		t.Fatalf("got %d updates, want 3", len(got))
	}
	if got[0].Field != profile.FieldLocation || got[0].Confidence != profile.ConfidenceHigh {
		t.Errorf("unexpected first update: %+v", got[0])
	}
	if got[1].Field != profile.FieldFavoriteSubjects || got[1].Confidence != profile.ConfidenceMedium {
		t.Errorf("unexpected second update: %+v", got[1])
	}
	if got[2].Field != profile.FieldHobbies || got[2].Confidence != profile.ConfidenceLow {
		t.Errorf("unexpected third update: %+v", got[2])
	}
}

func TestParseCoercesNonStringValues(t *testing.T) {
	got := Parse(`[
		{"field_name": "willing_to_relocate", "value": true, "confidence": "alta"},
		{"field_name": "diploma_score", "value": 98, "confidence": "alta"}
	]`)
	if len(got) != 2 {
		t.Fatalf("got %d updates, want 2", len(got))
	}
	if got[0].Value != "true" {
		t.Errorf("bool value = %q, want \"true\"", got[0].Value)
	}
	if got[1].Value != "98" {
		t.Errorf("number value = %q, want \"98\"", got[1].Value)
	}
}

func TestBuildPromptTruncatesLongUtterances(t *testing.T) {
	long := strings.Repeat("à", 5000)
	prompt := BuildPrompt(long)
	if strings.Contains(prompt, long) {
		t.Error("utterance was not truncated")
	}
	if !strings.Contains(prompt, strings.Repeat("à", maxUtteranceRunes)) {
		t.Error("truncated utterance missing from prompt")
	}
}

func TestFirstBalancedSkipsBracketsInStrings(t *testing.T) {
	text := `noise [{"field_name": "location", "value": "a ] b", "confidence": "alta"}] tail`
	span, ok := firstBalanced(text, '[', ']')
	if !ok {
		t.Fatal("expected a balanced span")
	}
	if !strings.HasPrefix(span, "[{") || !strings.HasSuffix(span, "}]") {
		t.Errorf("span = %q", span)
	}
	if got := Parse(span); len(got) != 1 || got[0].Value != "a ] b" {
		t.Errorf("parsed span incorrectly: %v", got)
	}
}
