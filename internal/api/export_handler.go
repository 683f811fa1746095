package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/export"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/redact"
)

// ExportService produces personal data archives. *export.Service
// implements it.
type ExportService interface {
	Create(ctx context.Context, userID uuid.UUID) (*domain.ExportRequest, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.ExportRequest, error)
	List(ctx context.Context, userID uuid.UUID) ([]*domain.ExportRequest, error)
	Open(ctx context.Context, userID, id uuid.UUID) (*export.Download, error)
}

// ExportHandler handles personal data export requests.
type ExportHandler struct {
	exports ExportService
	logger  *slog.Logger
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(exports ExportService, logger *slog.Logger) *ExportHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ExportHandler")
	}
	return &ExportHandler{
		exports: exports,
		logger:  logger.With(slog.String("component", "export_handler")),
	}
}

// List handles GET /api/user/export.
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	reqs, err := h.exports.List(r.Context(), actor.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list export requests")
		return
	}
	out := make([]ExportResponse, len(reqs))
	for i, req := range reqs {
		out[i] = exportToResponse(req)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, listOf(out))
}

// Create handles POST /api/user/export. The archive is produced in the
// background; clients poll the returned request.
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	req, err := h.exports.Create(r.Context(), actor.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create export request")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, exportToResponse(req))
}

// Get handles GET /api/user/export/{id}.
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	req, err := h.exports.Get(r.Context(), actor.UserID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load export request")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, exportToResponse(req))
}

// Download handles GET /api/user/export/{id}/download.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	dl, err := h.exports.Open(r.Context(), actor.UserID, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to download export")
		return
	}
	defer dl.File.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+dl.Filename+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.File); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("export download interrupted",
			slog.String("export_id", id.String()),
			slog.String("error", redact.Error(err)))
	}
}
