package app

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	defaultHistory = 50
	maxHistory     = 1000
)

// handleLatest returns the newest telemetry record.
func (a *App) handleLatest(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		http.Error(w, "telemetry history disabled", http.StatusNotFound)
		return
	}
	rec, ok, err := a.Store.Latest()
	if err != nil {
		a.log.Warnw("read latest telemetry", "error", err)
		http.Error(w, "failed to read telemetry", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no telemetry data", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

// handleHistory returns up to ?limit= records, newest first.
func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		http.Error(w, "telemetry history disabled", http.StatusNotFound)
		return
	}
	limit := defaultHistory
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistory)
	}
	recs, err := a.Store.History(limit)
	if err != nil {
		a.log.Warnw("read telemetry history", "error", err)
		http.Error(w, "failed to read telemetry", http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
