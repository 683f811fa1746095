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
	"github.com/1001stories/stories-api/internal/service/auth"
)

// UserService is the account surface used by the auth and user handlers.
// *service.UserService implements it.
type UserService interface {
	Register(ctx context.Context, in service.RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetActiveUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, p service.Preferences) (*domain.User, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) (*domain.DeletionRequest, error)
	RestoreAccount(ctx context.Context, email, password string) (*domain.User, error)
}

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	users      UserService
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(users UserService, jwtService auth.JWTService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AuthHandler")
	}
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		logger:     logger.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	role := domain.RoleLearner
	if req.Role != "" {
		role = domain.Role(req.Role)
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     role,
		Language: req.Language,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	h.respondWithTokens(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}

	h.respondWithTokens(w, r, http.StatusOK, user)
}

// Restore handles POST /api/user/restore. It takes the account credentials
// because a soft-deleted account cannot log in.
func (h *AuthHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.RestoreAccount(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to restore account")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("account restored",
		slog.String("user_id", user.ID.String()))
	h.respondWithTokens(w, r, http.StatusOK, user)
}

// RefreshToken handles POST /api/auth/refresh. The role in the new tokens
// is read from the account, not copied from the old token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.users.GetActiveUser(r.Context(), claims.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to refresh token")
		return
	}

	access, refresh, err := h.issue(r.Context(), user)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to generate authentication token")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RefreshTokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	access, refresh, err := h.issue(r.Context(), user)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to generate authentication token")
		return
	}
	shared.RespondWithJSON(w, r, status, AuthResponse{
		UserID:       user.ID,
		Role:         user.Role,
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func (h *AuthHandler) issue(ctx context.Context, user *domain.User) (access, refresh string, err error) {
	access, err = h.jwtService.GenerateToken(ctx, user.ID, user.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err = h.jwtService.GenerateRefreshToken(ctx, user.ID, user.Role)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
