package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/quizgen/internal/i18n"
	"github.com/pavelanni/quizgen/internal/model"
	"github.com/pavelanni/quizgen/internal/quiz"
	"github.com/pavelanni/quizgen/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Pinger checks that the model endpoint is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	gen    *quiz.Generator
	store  *store.Store
	pinger Pinger
	lang   string
}

// New creates a new Handler. A nil store disables the run ledger and a nil
// pinger disables the upstream health check.
func New(gen *quiz.Generator, s *store.Store, p Pinger, lang string) *Handler {
	if lang == "" {
		lang = "en"
	}
	return &Handler{gen: gen, store: s, pinger: p, lang: lang}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(corsHandler)
	r.Use(i18n.Middleware(h.lang))

	r.Get("/healthz", h.handleHealth)
	r.Post("/generate-quiz", h.handleGenerate)
	// The Lambda function URL posts to the root path.
	r.Post("/", h.handleGenerate)
	r.Get("/runs", h.handleListRuns)
	r.Get("/runs/{runID}", h.handleGetRun)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"model":      h.gen.Model(),
		"configured": h.gen.Configured(),
	}
	if h.store != nil {
		if n, err := h.store.RunCount(); err != nil {
			slog.Warn("failed to count runs", "error", err)
		} else {
			resp["runs"] = n
		}
	}
	if r.URL.Query().Get("check") != "upstream" {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if h.pinger == nil || !h.gen.Configured() {
		resp["upstream"] = "skipped"
		writeJSON(w, http.StatusOK, resp)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := h.pinger.Ping(ctx); err != nil {
		slog.Warn("upstream health check failed", "error", err)
		resp["status"] = "degraded"
		resp["upstream"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp["upstream"] = "ok"
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !h.gen.Configured() {
		slog.Error("quiz generation requested without a model API key")
		writeError(w, http.StatusInternalServerError, "server configuration error", quiz.ErrNotConfigured.Error())
		return
	}

	var req model.GenerateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := quiz.ValidateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	ctx := r.Context()
	if req.Language != "" {
		loc := i18n.NewLocalizer(req.Language, r.Header.Get("Accept-Language"), h.lang)
		ctx = i18n.WithLocalizer(ctx, loc)
	}
	genReq := req
	genReq.Language = i18n.LanguageName(req.Language)

	res, err := h.gen.Generate(ctx, genReq, i18n.Labels(ctx))
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		case errors.Is(err, quiz.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, "server configuration error", err.Error())
		default:
			slog.Error("quiz generation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		}
		return
	}

	if err := r.Context().Err(); err != nil {
		slog.Warn("client went away before the quiz was ready", "error", err)
		writeError(w, http.StatusGatewayTimeout, "request cancelled before the quiz was ready", "")
		return
	}

	id := uuid.NewString()
	h.record(id, req, res)
	w.Header().Set("X-Generation-Id", id)

	status := http.StatusOK
	if res.Status == model.StatusFailedWithFallback {
		status = http.StatusMultiStatus
	}
	slog.Info("quiz generated",
		"id", id,
		"status", res.Status,
		"questions", len(res.Questions),
		"processing_ms", res.Diagnostics.ProcessingTimeMs,
	)
	writeJSON(w, status, res)
}

// record writes the run to the ledger. Failures are logged only.
func (h *Handler) record(id string, req model.GenerateRequest, res model.Result) {
	if h.store == nil {
		return
	}
	run := model.GenerationRun{
		ID:           id,
		CreatedAt:    time.Now(),
		Variant:      string(quiz.VariantFor(req)),
		Language:     req.Language,
		Status:       res.Status,
		NumRequested: req.Count(),
		NumReturned:  len(res.Questions),
		Diagnostics:  res.Diagnostics,
		Error:        res.Error,
		Questions:    res.Questions,
	}
	if err := h.store.RecordRun(run); err != nil {
		slog.Error("failed to record generation run", "id", id, "error", err)
	}
}
