package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/davoli/bussola/internal/gemini"
	"github.com/davoli/bussola/internal/profile"
)

// Extraction runs near-deterministic and short: we want field values,
// not prose.
const (
	extractionTemperature = 0.1
	extractionMaxTokens   = 500
)

// Generator is the completion capability the extractor depends on.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts gemini.Options) (string, error)
}

// Extractor derives structured profile updates from free-text utterances
// using an external completion model as the oracle.
type Extractor struct {
	gen Generator
}

// New creates an Extractor backed by the given generator.
func New(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// rawUpdate mirrors one object of the model's JSON array response.
type rawUpdate struct {
	FieldName  string          `json:"field_name"`
	Value      json.RawMessage `json:"value"`
	Confidence string          `json:"confidence"`
}

// Extract proposes field updates for one utterance. On any failure —
// transport, malformed JSON, unknown fields: it returns whatever could
// be salvaged, down to an empty slice. It never returns an error: a turn
// proceeds with no new information rather than failing the request.
func (e *Extractor) Extract(ctx context.Context, utterance string) []profile.Update {
	if strings.TrimSpace(utterance) == "" {
		return nil
	}

	raw, err := e.gen.Generate(ctx, BuildPrompt(utterance), gemini.Options{
		Temperature:     extractionTemperature,
		MaxOutputTokens: extractionMaxTokens,
	})
	if err != nil {
		slog.Warn("extraction generate failed", "error", err)
		return nil
	}

	return Parse(raw)
}

// Parse turns a model response into validated updates. The response is
// expected to be a JSON array but may arrive fenced, tagged, or as a
// singleton object; anything beyond one bounded bracket-span recovery is
// treated as "no updates".
func Parse(raw string) []profile.Update {
	text := sanitize(raw)
	if text == "" || text == "[]" {
		return nil
	}

	items, ok := parseUpdates(text)
	if !ok {
		// Bounded recovery: the first balanced array or object span.
		if span, found := firstBalanced(text, '[', ']'); found {
			items, ok = parseUpdates(span)
		}
		if !ok {
			if span, found := firstBalanced(text, '{', '}'); found {
				items, ok = parseUpdates(span)
			}
		}
		if !ok {
			slog.Warn("extraction response is not valid JSON", "response", text)
			return nil
		}
	}

	var updates []profile.Update
	for _, item := range items {
		field, known := profile.NormalizeField(item.FieldName)
		if !known {
			slog.Warn("dropping update for unknown field", "field", item.FieldName)
			continue
		}
		value := coerceValue(item.Value)
		if value == "" {
			continue
		}
		updates = append(updates, profile.Update{
			Field:      field,
			Value:      value,
			Confidence: normalizeConfidence(item.Confidence),
		})
	}
	return updates
}

// sanitize strips known wrapping artifacts: code fences and a leading
// language tag.
func sanitize(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if len(text) >= 4 && strings.EqualFold(text[:4], "json") {
		text = strings.TrimSpace(text[4:])
	}
	return text
}

// parseUpdates accepts either an array of update objects or a single
// object (the singleton case).
func parseUpdates(text string) ([]rawUpdate, bool) {
	var items []rawUpdate
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, true
	}
	var single rawUpdate
	if err := json.Unmarshal([]byte(text), &single); err == nil && single.FieldName != "" {
		return []rawUpdate{single}, true
	}
	return nil, false
}

// firstBalanced returns the first span of text from an opening bracket to
// its matching close, skipping brackets inside JSON string literals.
func firstBalanced(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// coerceValue renders the extracted value as a string whatever JSON type
// the model chose for it.
func coerceValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	v := strings.TrimSpace(string(raw))
	if v == "null" {
		return ""
	}
	if unquoted, err := strconv.Unquote(v); err == nil {
		return strings.TrimSpace(unquoted)
	}
	return v
}

// normalizeConfidence maps the model's Italian or English grade onto the
// canonical levels; anything unrecognized counts as low.
func normalizeConfidence(c string) profile.Confidence {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "alta", "high":
		return profile.ConfidenceHigh
	case "media", "medium":
		return profile.ConfidenceMedium
	default:
		return profile.ConfidenceLow
	}
}
