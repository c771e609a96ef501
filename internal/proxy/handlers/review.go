package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/capturellm/captureproxy/internal/sharegpt"
	"github.com/capturellm/captureproxy/internal/store"
)

// interactionView is the listing shape for the review API.
type interactionView struct {
	ID               string    `json:"id"`
	Model            string    `json:"model"`
	Conversation     string    `json:"conversation"`
	Timestamp        time.Time `json:"timestamp"`
	FunctionCallOnly bool      `json:"function_call_only"`
}

type confirmedView struct {
	ID                 string    `json:"id"`
	Model              string    `json:"model"`
	Conversation       string    `json:"conversation"`
	OriginalTimestamp  time.Time `json:"original_timestamp"`
	ConfirmedTimestamp time.Time `json:"confirmed_timestamp"`
	FunctionCallOnly   bool      `json:"function_call_only"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("encoding response")
	}
}

func listParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return
}

// ListInteractions returns captured interactions newest first.
func ListInteractions(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := listParams(r)
		rows, err := d.Store.List(limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list interactions")
			return
		}

		views := make([]interactionView, 0, len(rows))
		for _, row := range rows {
			views = append(views, interactionView{
				ID:               row.ID,
				Model:            row.Model,
				Conversation:     row.Conversation,
				Timestamp:        row.Timestamp,
				FunctionCallOnly: sharegpt.FunctionCallOnlyJSON(row.Conversation),
			})
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// ListConfirmed returns the confirmed set, newest confirmation first.
func ListConfirmed(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := listParams(r)
		rows, err := d.Store.ListConfirmed(limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list confirmed interactions")
			return
		}

		views := make([]confirmedView, 0, len(rows))
		for _, row := range rows {
			views = append(views, confirmedView{
				ID:                 row.ID,
				Model:              row.Model,
				Conversation:       row.Conversation,
				OriginalTimestamp:  row.OriginalTimestamp,
				ConfirmedTimestamp: row.ConfirmedTimestamp,
				FunctionCallOnly:   sharegpt.FunctionCallOnlyJSON(row.Conversation),
			})
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// ConfirmInteraction promotes one interaction into the confirmed set.
func ConfirmInteraction(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Store.Confirm(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "interaction not found")
				return
			}
			log.WithError(err).WithField("id", id).Error("confirming interaction")
			writeError(w, http.StatusInternalServerError, "failed to confirm interaction")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed", "id": id})
	}
}

// DeleteInteraction removes one captured interaction.
func DeleteInteraction(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Store.Delete(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "interaction not found")
				return
			}
			log.WithError(err).WithField("id", id).Error("deleting interaction")
			writeError(w, http.StatusInternalServerError, "failed to delete interaction")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
	}
}

// ExportInteractions streams the validated capture set as JSONL. Pass
// confirmed=true to export the confirmed table instead.
func ExportInteractions(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		confirmed := r.URL.Query().Get("confirmed") == "true"

		w.Header().Set("Content-Type", "application/jsonl")
		w.Header().Set("Content-Disposition", `attachment; filename="conversations.jsonl"`)

		validCount, invalidCount, err := d.Store.ExportJSONL(w, nil, confirmed)
		if err != nil {
			log.WithError(err).Error("exporting interactions")
			return
		}
		log.WithFields(log.Fields{
			"valid":     validCount,
			"invalid":   invalidCount,
			"confirmed": confirmed,
		}).Info("exported conversations")
	}
}
