package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateReturnsConcatenatedParts(t *testing.T) {
	var gotPath string
	var gotBody generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Dove "},{"text":"vivi?"}]}}]}`)
	}))
	defer srv.Close()

	c := NewWithBaseURL(srv.URL, "test-key", "gemini-2.5-flash-lite")
	out, err := c.Generate(context.Background(), "fai una domanda", Options{Temperature: 0.7, MaxOutputTokens: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Dove vivi?" {
		t.Errorf("output = %q, want %q", out, "Dove vivi?")
	}
	if gotPath != "/models/gemini-2.5-flash-lite:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.GenerationConfig == nil || gotBody.GenerationConfig.Temperature != 0.7 {
		t.Errorf("generation config not forwarded: %+v", gotBody.GenerationConfig)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "fai una domanda" {
		t.Errorf("prompt not forwarded: %+v", gotBody.Contents)
	}
}

func TestGenerateWrapsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"API key invalid","status":"PERMISSION_DENIED"}}`)
	}))
	defer srv.Close()

	c := NewWithBaseURL(srv.URL, "bad-key", "gemini-2.5-flash-lite")
	_, err := c.Generate(context.Background(), "ciao", Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsGenerationError(err) {
		t.Errorf("expected GenerationError, got %T", err)
	}
	var ge *GenerationError
	if errors.As(err, &ge) && ge.Op != "generate" {
		t.Errorf("op = %q, want generate", ge.Op)
	}
}

func TestGenerateEmptyCandidatesIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	c := NewWithBaseURL(srv.URL, "test-key", "gemini-2.5-flash-lite")
	if _, err := c.Generate(context.Background(), "ciao", Options{}); !IsGenerationError(err) {
		t.Errorf("expected GenerationError, got %v", err)
	}
}

func TestGenerateTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewWithBaseURL(srv.URL, "test-key", "gemini-2.5-flash-lite")
	if _, err := c.Generate(context.Background(), "ciao", Options{}); !IsGenerationError(err) {
		t.Errorf("expected GenerationError, got %v", err)
	}
}
