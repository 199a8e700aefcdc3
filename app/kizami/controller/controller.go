// Package controller implements the HTTP surface named in spec §6: chain
// listing, nearest-block lookups, indexing status, health, and metrics.
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/prettyirrelevant/kizami/app/kizami/types"
)

// Controller holds the handler methods; App is the only dependency, the
// same shape as the teacher's query controller.
type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{App: app}
}

// NewRouter builds the route table from spec §6, instrumenting every route
// with the metrics middleware.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()
	m := c.App.Metrics

	r.HandleFunc("/health", m.Instrument("/health", c.HandleHealth)).Methods(http.MethodGet)
	r.HandleFunc("/metrics", m.Instrument("/metrics", c.HandleMetrics)).Methods(http.MethodGet)

	r.HandleFunc("/v1/chains", m.Instrument("/v1/chains", c.HandleChainsList)).Methods(http.MethodGet)
	r.HandleFunc("/v1/chains/{chainId}", m.Instrument("/v1/chains/{chainId}", c.HandleChainGet)).Methods(http.MethodGet)
	r.HandleFunc("/v1/chains/{chainId}/block/before/{timestamp}",
		m.Instrument("/v1/chains/{chainId}/block/before/{timestamp}", c.HandleBlockBefore)).Methods(http.MethodGet)
	r.HandleFunc("/v1/chains/{chainId}/block/after/{timestamp}",
		m.Instrument("/v1/chains/{chainId}/block/after/{timestamp}", c.HandleBlockAfter)).Methods(http.MethodGet)
	r.HandleFunc("/v1/indexing-status",
		m.Instrument("/v1/indexing-status", c.HandleIndexingStatus)).Methods(http.MethodGet)

	return r
}

// WithCORS mirrors the teacher's permissive development CORS middleware
// (app/admin/controller.WithCORS), generalized to a read-only public API:
// only GET is allowed.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodOptions)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
