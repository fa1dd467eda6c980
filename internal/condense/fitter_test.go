package condense

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// stubCondenser returns a fixed result and records its calls.
type stubCondenser struct {
	out    string
	err    error
	calls  int
	target int
}

func (s *stubCondenser) Condense(_ context.Context, _ string, target int, _ string) (string, error) {
	s.calls++
	s.target = target
	return s.out, s.err
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestFit_IsTotal(t *testing.T) {
	const limit = 1000

	tests := []struct {
		name          string
		text          string
		condenser     Condenser
		wantCondensed bool
		wantTruncated bool
	}{
		{"empty", "", nil, false, false},
		{"exactly at limit", strings.Repeat("a", limit), &stubCondenser{out: "x"}, false, false},
		{"one over, no condenser", strings.Repeat("a", limit+1), nil, false, true},
		{"10x limit, condenser ok", strings.Repeat("a", 10*limit), &stubCondenser{out: "short"}, true, false},
		{"condenser error", strings.Repeat("a", 10*limit), &stubCondenser{err: errors.New("down")}, false, true},
		{"condenser empty", strings.Repeat("a", 10*limit), &stubCondenser{out: "   "}, false, true},
		{"condenser oversized", strings.Repeat("a", 10*limit), &stubCondenser{out: strings.Repeat("b", limit+1)}, false, true},
		{"multibyte", strings.Repeat("é", 3*limit), nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFitter(tt.condenser, quietLogger())
			res := f.Fit(context.Background(), tt.text, limit)

			if got := Length(res.Text); got > limit {
				t.Errorf("fitted length %d exceeds limit %d", got, limit)
			}
			if res.Condensed != tt.wantCondensed {
				t.Errorf("Condensed = %v, want %v", res.Condensed, tt.wantCondensed)
			}
			if res.Truncated != tt.wantTruncated {
				t.Errorf("Truncated = %v, want %v", res.Truncated, tt.wantTruncated)
			}
			if tt.wantTruncated && !strings.HasSuffix(res.Text, TruncationMarker) {
				t.Errorf("truncated text is missing the marker")
			}
			if !res.Degraded() && res.Text != tt.text {
				t.Errorf("text changed although it fit")
			}
		})
	}
}

func TestFit_CondenserTarget(t *testing.T) {
	stub := &stubCondenser{out: "short"}
	f := NewFitter(stub, quietLogger())

	f.Fit(context.Background(), strings.Repeat("a", 2000), 1000)

	if stub.calls != 1 {
		t.Fatalf("expected 1 condenser call, got %d", stub.calls)
	}
	if stub.target != 900 {
		t.Errorf("target = %d, want 900", stub.target)
	}
}

func TestFit_CondenserSkippedWhenTextFits(t *testing.T) {
	stub := &stubCondenser{out: "short"}
	f := NewFitter(stub, quietLogger())

	res := f.Fit(context.Background(), "small", 1000)

	if stub.calls != 0 {
		t.Errorf("condenser called %d times for fitting text", stub.calls)
	}
	if res.Degraded() {
		t.Errorf("fitting text reported as degraded")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"zero limit", "abc", 0, ""},
		{"negative limit", "abc", -5, ""},
		{"fits", "abc", 3, "abc"},
		{"tiny limit plain cut", "abcdef", 4, "abcd"},
		{"multibyte plain cut", "ééééé", 2, "éé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.text, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}

func TestTruncate_KeepsMarginAndMarker(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	got := Truncate(text, 1000)

	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("missing marker")
	}
	if n := Length(got); n > 1000-SafetyMargin {
		t.Errorf("length %d does not leave the safety margin", n)
	}
	body := strings.TrimSuffix(got, TruncationMarker)
	if !strings.HasPrefix(text, body) {
		t.Errorf("truncated body is not a prefix of the input")
	}
	if strings.HasSuffix(body, " ") {
		t.Errorf("trailing whitespace was not trimmed")
	}
	if Truncate(text, 1000) != got {
		t.Errorf("truncation is not deterministic")
	}
}

func TestCheckStored(t *testing.T) {
	if _, ok := CheckStored("notes", "abc", "abc"); ok {
		t.Errorf("identical text reported as truncated")
	}
	msg, ok := CheckStored("project notes", "abcdef", "abc")
	if !ok {
		t.Fatalf("shortened text not reported")
	}
	if !strings.Contains(msg, "3 of 6") {
		t.Errorf("unexpected warning %q", msg)
	}
}

func TestAnthropicCondenser(t *testing.T) {
	var gotModel, gotSystem string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			System []struct {
				Text string `json:"text"`
			} `json:"system"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.System) > 0 {
			gotSystem = req.System[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         req.Model,
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content": []map[string]any{
				{"type": "text", "text": "  - condensed  "},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 3},
		})
	}))
	defer server.Close()

	c := NewAnthropicCondenser(AnthropicConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		MaxRetries: 0,
	})

	out, err := c.Condense(context.Background(), "long text", 90, "be brief")
	if err != nil {
		t.Fatalf("Condense failed: %v", err)
	}
	if out != "- condensed" {
		t.Errorf("output = %q", out)
	}
	if gotModel != DefaultModel {
		t.Errorf("model = %q, want %q", gotModel, DefaultModel)
	}
	if gotSystem != "be brief" {
		t.Errorf("system = %q", gotSystem)
	}
}

func TestAnthropicCondenser_ErrorFallsBackToTruncation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	c := NewAnthropicCondenser(AnthropicConfig{APIKey: "k", BaseURL: server.URL, MaxRetries: 0})
	f := NewFitter(c, quietLogger())

	res := f.Fit(context.Background(), strings.Repeat("a", 500), 300)
	if !res.Truncated || res.Condensed {
		t.Errorf("expected truncation fallback, got %+v", res)
	}
	if Length(res.Text) > 300 {
		t.Errorf("fitted text exceeds limit")
	}
}
