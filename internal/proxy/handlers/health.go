package handlers

import (
	"net/http"
	"time"
)

// Health answers liveness checks.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   "dynamic-proxy",
			"timestamp": time.Now().Unix(),
		})
	}
}

// Stats reports store sizes and the persistence queue depth.
func Stats(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		interactions, confirmed, err := d.Store.Counts()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read store counts")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"interactions": interactions,
			"confirmed":    confirmed,
			"queue_depth":  d.Writer.Pending(),
		})
	}
}
