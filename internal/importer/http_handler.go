package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/courtdata/internal/config"
	"github.com/rpattn/courtdata/internal/domain"
	"github.com/rpattn/courtdata/internal/repository"

	"github.com/google/uuid"
)

const maxUploadBytes = 64 << 20

// Handler exposes the import pipeline and session manager over HTTP.
type Handler struct {
	service  *Service
	sessions *SessionManager
	defaults config.ImportConfig
}

// NewHTTPHandler builds the route table for the import API. The import
// defaults apply when an upload omits the matching form fields.
func NewHTTPHandler(service *Service, sessions *SessionManager, defaults config.ImportConfig) http.Handler {
	h := &Handler{service: service, sessions: sessions, defaults: defaults}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /import", h.handleImport)
	mux.HandleFunc("POST /import/preview", h.handlePreview)
	mux.HandleFunc("GET /import/{id}", h.handleGetBatch)
	mux.HandleFunc("GET /import/{id}/progress", h.handleProgress)
	mux.HandleFunc("GET /import/{id}/errors", h.handleErrors)
	mux.HandleFunc("POST /import/{id}/abort", h.handleAbort)
	mux.HandleFunc("POST /import/{id}/clean", h.handleClean)
	mux.HandleFunc("GET /preview/{token}", h.handleGetPreview)
	mux.HandleFunc("POST /errors/{id}/resolve", h.handleResolveError)
	mux.HandleFunc("POST /sessions", h.handleOpenSession)
	mux.HandleFunc("POST /sessions/{id}/touch", h.handleTouchSession)
	mux.HandleFunc("POST /sessions/{id}/complete", h.handleCompleteSession)
	return mux
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	if sessionID := strings.TrimSpace(r.FormValue("sessionId")); sessionID != "" {
		id, err := uuid.Parse(sessionID)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid session id: %v", err), http.StatusBadRequest)
			return
		}
		if _, err := h.sessions.Touch(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
	}

	batch, err := h.service.Import(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	preview, err := h.service.Preview(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	snapshot, err := h.service.Progress(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var filter domain.ImportErrorFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("severity")); raw != "" {
		severity := domain.ErrorSeverity(strings.ToUpper(raw))
		switch severity {
		case domain.SeverityError, domain.SeverityWarning, domain.SeverityInfo:
			filter.Severity = &severity
		default:
			http.Error(w, fmt.Sprintf("unknown severity %q", raw), http.StatusBadRequest)
			return
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("resolved")); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid resolved flag: %v", err), http.StatusBadRequest)
			return
		}
		filter.Resolved = &resolved
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	records, err := h.service.Errors(r.Context(), id, filter, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Abort(id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "aborting"})
}

func (h *Handler) handleClean(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Clean(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	preview, err := h.service.GetPreview(token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) handleResolveError(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.ResolveError(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *Handler) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if body.UserID == uuid.Nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.Open(r.Context(), body.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleTouchSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessions.Touch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.sessions.Complete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// readUpload parses a multipart import request into an IntakeRequest.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (IntakeRequest, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return IntakeRequest{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return IntakeRequest{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return IntakeRequest{}, false
	}

	cfg := domain.ImportConfig{
		AutoCreateCourts:    formBool(r, "autoCreateCourts", h.defaults.AutoCreateCourts),
		AutoCreateCaseTypes: formBool(r, "autoCreateCaseTypes", h.defaults.AutoCreateTypes),
		DryRun:              formBool(r, "dryRun", false),
	}
	if raw := strings.TrimSpace(r.FormValue("totalRowHint")); raw != "" {
		hint, err := strconv.Atoi(raw)
		if err != nil || hint < 0 {
			http.Error(w, fmt.Sprintf("invalid totalRowHint %q", raw), http.StatusBadRequest)
			return IntakeRequest{}, false
		}
		cfg.TotalRowHint = hint
	}

	return IntakeRequest{
		FileName: header.Filename,
		FileSize: header.Size,
		Data:     bytes.NewReader(data),
		Config:   cfg,
	}, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid %s: %v", name, err), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// formBool returns fallback when the field is absent, so configured
// defaults survive uploads that do not spell the flags out.
func formBool(r *http.Request, name string, fallback bool) bool {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateFile):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrStatusConflict), errors.Is(err, ErrBatchNotRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrPreviewExpired):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrDryRunIntake):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
