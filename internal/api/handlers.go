package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/RobinCoderZhao/streampulse/internal/pulse/model"
)

type healthResponse struct {
	Status      string    `json:"status"`
	Ready       bool      `json:"ready"`
	Sequence    uint64    `json:"sequence"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
	AgeSeconds  float64   `json:"age_seconds,omitempty"`
	Uptime      string    `json:"uptime"`
}

// handleHealth answers 503 until the first cycle has published.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.store.Current()
		resp := healthResponse{
			Status: "starting",
			Uptime: s.now().Sub(s.started).Round(time.Second).String(),
		}
		if !snap.Ready() {
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Status = "ok"
		resp.Ready = true
		resp.Sequence = snap.Sequence
		resp.GeneratedAt = snap.GeneratedAt
		resp.AgeSeconds = s.now().Sub(snap.GeneratedAt).Seconds()
		respondJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSnapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.store.Current())
	}
}

type categorySummary struct {
	Category model.Category `json:"category"`
	Label    string         `json:"label"`
	Stories  int            `json:"stories"`
}

func (s *Server) handleNewsIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.store.Current()
		out := make([]categorySummary, 0, len(snap.StoriesByCategory))
		for _, c := range model.Categories {
			stories, ok := snap.StoriesByCategory[c]
			if !ok {
				continue
			}
			out = append(out, categorySummary{Category: c, Label: c.Label(), Stories: len(stories)})
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"categories": out,
		})
	}
}

func (s *Server) handleNews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := model.ParseCategory(strings.ToLower(r.PathValue("category")))
		if !ok {
			respondError(w, http.StatusNotFound, "unknown category")
			return
		}
		snap := s.store.Current()
		stories, ok := snap.StoriesByCategory[c]
		if !ok {
			respondError(w, http.StatusNotFound, "category not configured")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"category":     c,
			"label":        c.Label(),
			"stories":      stories,
			"generated_at": snap.GeneratedAt,
		})
	}
}

func (s *Server) handleQuotes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.store.Current()
		symbols := make([]string, 0, len(snap.Quotes))
		for sym := range snap.Quotes {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		quotes := make([]model.Quote, 0, len(symbols))
		for _, sym := range symbols {
			quotes = append(quotes, snap.Quotes[sym])
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"quotes":       quotes,
			"generated_at": snap.GeneratedAt,
			"errors":       snap.ErrorsFor(model.DomainQuote),
		})
	}
}

func (s *Server) handleQuote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sym := strings.ToUpper(r.PathValue("symbol"))
		snap := s.store.Current()
		q, ok := snap.Quotes[sym]
		if !ok {
			respondError(w, http.StatusNotFound, "no quote for "+sym)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"quote":  q,
			"errors": errorsFor(snap, model.DomainQuote, sym),
		})
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.store.Current()
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"stats":        snap.Stats,
			"generated_at": snap.GeneratedAt,
			"errors":       snap.ErrorsFor(model.DomainStat),
		})
	}
}

func (s *Server) handleErrors() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.store.Current()
		if d := r.URL.Query().Get("domain"); d != "" {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"errors": snap.ErrorsFor(model.Domain(d)),
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"errors": snap.SourceErrors,
		})
	}
}

// errorsFor returns the errors of one domain recorded against key.
func errorsFor(snap *model.Snapshot, d model.Domain, key string) []model.SourceError {
	out := []model.SourceError{}
	for _, e := range snap.ErrorsFor(d) {
		if strings.EqualFold(e.Source, key) {
			out = append(out, e)
		}
	}
	return out
}
