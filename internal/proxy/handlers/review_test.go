package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/capturellm/captureproxy/internal/queue"
	"github.com/capturellm/captureproxy/internal/store"
)

func newReviewEnv(t *testing.T) (*Deps, *store.Store, http.Handler) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "review.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	w := queue.NewWriter(s)
	_, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		s.Close()
	})

	deps := &Deps{Store: s, Writer: w}
	r := chi.NewRouter()
	r.Get("/health", Health())
	r.Get("/stats", Stats(deps))
	r.Get("/interactions", ListInteractions(deps))
	r.Get("/confirmed", ListConfirmed(deps))
	r.Post("/interactions/{id}/confirm", ConfirmInteraction(deps))
	r.Delete("/interactions/{id}", DeleteInteraction(deps))
	r.Get("/export", ExportInteractions(deps))
	return deps, s, r
}

func seed(t *testing.T, s *store.Store, id, conversation string) {
	t.Helper()
	if _, err := s.InsertBatch([]store.Interaction{{
		ID:           id,
		Model:        "gpt-4o",
		Conversation: conversation,
	}}); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

const plainConv = `{"conversations":[{"from":"human","value":"q?"},{"from":"gpt","value":"a"}],"system":"","tools":"[]"}`
const toolConv = `{"conversations":[{"from":"human","value":"q?"},{"from":"function_call","value":"{\"name\":\"f\",\"arguments\":\"{}\"}"}],"system":"","tools":"[]"}`

func TestHealth(t *testing.T) {
	_, _, router := newReviewEnv(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestStats(t *testing.T) {
	_, s, router := newReviewEnv(t)
	seed(t, s, "r1", plainConv)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("stats not JSON: %v", err)
	}
	if stats["interactions"].(float64) != 1 {
		t.Errorf("interactions = %v", stats["interactions"])
	}
}

func TestListInteractionsFunctionCallFlag(t *testing.T) {
	_, s, router := newReviewEnv(t)
	seed(t, s, "plain", plainConv)
	seed(t, s, "tool", toolConv)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/interactions", nil))

	var views []interactionView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("listing not JSON: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d interactions, want 2", len(views))
	}
	flags := map[string]bool{}
	for _, v := range views {
		flags[v.ID] = v.FunctionCallOnly
	}
	if flags["plain"] {
		t.Error("plain conversation flagged function_call_only")
	}
	if !flags["tool"] {
		t.Error("tool conversation not flagged function_call_only")
	}
}

func TestConfirmEndpoint(t *testing.T) {
	_, s, router := newReviewEnv(t)
	seed(t, s, "r1", plainConv)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/interactions/r1/confirm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/confirmed", nil))
	var confirmed []confirmedView
	if err := json.Unmarshal(rec.Body.Bytes(), &confirmed); err != nil {
		t.Fatal(err)
	}
	if len(confirmed) != 1 || confirmed[0].ID != "r1" {
		t.Errorf("confirmed = %+v", confirmed)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/interactions/r1/confirm", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second confirm status = %d, want 404", rec.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	_, s, router := newReviewEnv(t)
	seed(t, s, "r1", plainConv)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/interactions/r1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/interactions/r1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	_, s, router := newReviewEnv(t)
	seed(t, s, "r1", plainConv)
	seed(t, s, "r2", "not json at all")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("export has %d lines, want only the valid row", len(lines))
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("export line not JSON: %v", err)
	}
}
