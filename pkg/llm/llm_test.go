package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_InvalidProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "invalid"})
	if err == nil {
		t.Fatal("expected error for invalid provider")
	}
}

func TestNewClient_Ollama(t *testing.T) {
	client, err := NewClient(Config{Provider: Ollama, BaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Provider() != Ollama {
		t.Fatalf("expected Ollama provider, got %s", client.Provider())
	}
	client.Close()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != Ollama {
		t.Fatalf("expected Ollama, got %s", cfg.Provider)
	}
	if cfg.Model != "llama3:latest" {
		t.Fatalf("expected llama3:latest, got %s", cfg.Model)
	}
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system + user messages, got %+v", req.Messages)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"<think>hmm</think> positive"},"done":true,"prompt_eval_count":12,"eval_count":1}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{Provider: Ollama, BaseURL: srv.URL, Model: "llama3"})
	resp, err := client.Generate(context.Background(), &Request{
		System:   "classify",
		Messages: []Message{{Role: "user", Content: "great day"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "positive" {
		t.Fatalf("expected 'positive', got %q", resp.Content)
	}
	if resp.TokensIn != 12 || resp.TokensOut != 1 {
		t.Fatalf("unexpected token counts: %d/%d", resp.TokensIn, resp.TokensOut)
	}
}

func TestOllama_GenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := NewClient(Config{BaseURL: srv.URL})
	if _, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "x"}}}); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestOllama_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3:latest"},{"name":"qwen3:4b"}]}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{BaseURL: srv.URL})
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %v", models)
	}
	if !HasModel(models, "llama3") {
		t.Fatal("expected llama3 to match llama3:latest")
	}
	if HasModel(models, "mistral") {
		t.Fatal("did not expect mistral to match")
	}
}

func TestStripThinkTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no tags", "Hello world", "Hello world"},
		{"with think tags", "<think>reasoning here</think>Actual response", "Actual response"},
		{"multiline think", "<think>\nstep 1\nstep 2\n</think>\nFinal answer", "Final answer"},
		{"empty content", "", ""},
		{"only think", "<think>only thinking</think>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripThinkTags(tt.input)
			if got != tt.expected {
				t.Errorf("stripThinkTags(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
