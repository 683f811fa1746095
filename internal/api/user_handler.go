package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/platform/logger"
	"github.com/1001stories/stories-api/internal/service"
)

// NotificationService lists and acknowledges in-app notifications.
type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

// UserHandler serves the caller's own account: profile, preferences,
// deletion and notifications.
type UserHandler struct {
	users         UserService
	notifications NotificationService
	logger        *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserService, notifications NotificationService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for UserHandler")
	}
	return &UserHandler{
		users:         users,
		notifications: notifications,
		logger:        logger.With(slog.String("component", "user_handler")),
	}
}

// Me handles GET /api/user.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetActiveUser(r.Context(), actor.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load account")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

// UpdatePreferences handles PATCH /api/user/preferences.
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req UpdatePreferencesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p := service.Preferences{
		Name:               req.Name,
		Language:           req.Language,
		EmailNotifications: req.EmailNotifications,
	}
	if req.DigestFrequency != nil {
		f := domain.DigestFrequency(*req.DigestFrequency)
		p.DigestFrequency = &f
	}

	user, err := h.users.UpdatePreferences(r.Context(), actor.UserID, p)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update preferences")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

// Delete handles DELETE /api/user. The account stays recoverable until the
// returned deadline.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	req, err := h.users.DeleteAccount(r.Context(), actor.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete account")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("account deletion requested",
		slog.Time("recovery_deadline", req.RecoveryDeadline))
	shared.RespondWithJSON(w, r, http.StatusOK, DeletionResponse{
		Status:           req.Status,
		RecoveryDeadline: req.RecoveryDeadline,
	})
}

// ListNotifications handles GET /api/notifications.
func (h *UserHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	limit, _ := pagination(r)

	items, err := h.notifications.List(r.Context(), actor.UserID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list notifications")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, listOf(items))
}

// MarkNotificationRead handles POST /api/notifications/{id}/read.
func (h *UserHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(r.Context(), actor.UserID, id); err != nil {
		HandleAPIError(w, r, err, "Failed to update notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
