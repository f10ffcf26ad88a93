package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campus-incidents/apiserver/internal/services"
	"github.com/campus-incidents/apiserver/internal/store"
	"github.com/campus-incidents/apiserver/types"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxMultipartMemory = 16 << 20
	maxAttachmentBytes = 16 << 20
	formFieldFile      = "file"
)

// IncidentHandler provides HTTP handlers for incidents.
type IncidentHandler struct {
	incidentService   *services.IncidentService
	attachmentService *services.AttachmentService
}

// NewIncidentHandler constructs a handler with the provided services.
func NewIncidentHandler(incidentService *services.IncidentService, attachmentService *services.AttachmentService) *IncidentHandler {
	return &IncidentHandler{
		incidentService:   incidentService,
		attachmentService: attachmentService,
	}
}

// IncidentRouter registers incident routes on the given router.
func IncidentRouter(
	r chi.Router,
	incidentService *services.IncidentService,
	attachmentService *services.AttachmentService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewIncidentHandler(incidentService, attachmentService)

	r.Get("/", handler.ListIncidents)
	r.With(authMiddleware).Post("/", handler.CreateIncident)
	r.Route("/{incidentID}", func(r chi.Router) {
		r.Get("/", handler.GetIncident)
		r.With(authMiddleware).Put("/", handler.EditIncident)
		r.With(authMiddleware).Put("/status", handler.UpdateStatus)
		r.With(authMiddleware).Post("/attachments", handler.UploadAttachment)
		r.Get("/attachments/{filename}", handler.GetAttachment)
	})
}

func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.incidentService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list incidents")
		return
	}

	writeJSON(w, http.StatusOK, IncidentListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *IncidentHandler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentID")

	incident, err := h.incidentService.Get(r.Context(), incidentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "incident not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch incident")
		return
	}

	writeJSON(w, http.StatusOK, incident)
}

func (h *IncidentHandler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	reporterID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input services.NewIncidentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(input.Description) == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	created, err := h.incidentService.Create(r.Context(), input, reporterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create incident")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// UpdateStatus transitions an incident; the acting user is the token subject.
func (h *IncidentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actingUserID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	incidentID := chi.URLParam(r, "incidentID")
	result, err := h.incidentService.UpdateStatus(r.Context(), incidentID, req.NewStatus, actingUserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// EditIncident applies changes to the editable fields of a pending incident.
// Fields outside the editable set cannot be expressed in the request type,
// so they are dropped before they reach the workflow engine.
func (h *IncidentHandler) EditIncident(w http.ResponseWriter, r *http.Request) {
	adminUserID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var edit types.IncidentEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	incidentID := chi.URLParam(r, "incidentID")
	result, err := h.incidentService.Edit(r.Context(), incidentID, edit, adminUserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *IncidentHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	if !h.attachmentService.Enabled() {
		writeError(w, http.StatusNotImplemented, "attachment storage is not configured")
		return
	}

	incidentID := chi.URLParam(r, "incidentID")
	if _, err := h.incidentService.Get(r.Context(), incidentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "incident not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch incident")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File[formFieldFile]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one file is required")
		return
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	data, err := readFileLimited(file, maxAttachmentBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	key, err := h.attachmentService.Upload(r.Context(), incidentID, fileHeader.Filename, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentResponse{Key: key})
}

func (h *IncidentHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	if !h.attachmentService.Enabled() {
		writeError(w, http.StatusNotImplemented, "attachment storage is not configured")
		return
	}

	incidentID := chi.URLParam(r, "incidentID")
	filename := chi.URLParam(r, "filename")

	reader, err := h.attachmentService.Open(r.Context(), incidentID, filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

type StatusUpdateRequest struct {
	NewStatus string `json:"new_status"`
}

type IncidentListResponse struct {
	Items []types.Incident `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
}

type AttachmentResponse struct {
	Key string `json:"key"`
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
