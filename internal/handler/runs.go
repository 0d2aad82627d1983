package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "run ledger is disabled", "")
		return
	}

	var since *time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter", err.Error())
			return
		}
		since = &t
	}

	export, err := h.store.ExportRuns(since)
	if err != nil {
		slog.Error("failed to export runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "run ledger is disabled", "")
		return
	}

	id := chi.URLParam(r, "runID")
	run, err := h.store.GetRun(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "run not found", id)
		return
	}
	if err != nil {
		slog.Error("failed to get run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}
