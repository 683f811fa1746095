package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/export"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
	Name     string `json:"name"     validate:"max=100"`
	Role     string `json:"role"     validate:"omitempty,oneof=LEARNER TEACHER WRITER"`
	Language string `json:"language" validate:"omitempty,max=10"`
}

// LoginRequest defines the payload for the login and restore endpoints.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	UserID       uuid.UUID   `json:"user_id"`
	Role         domain.Role `json:"role"`
	AccessToken  string      `json:"token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse defines the successful response for the token refresh endpoint.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UpdatePreferencesRequest is a partial update of the caller's settings.
type UpdatePreferencesRequest struct {
	Name               *string `json:"name"               validate:"omitempty,max=100"`
	Language           *string `json:"language"           validate:"omitempty,max=10"`
	EmailNotifications *bool   `json:"emailNotifications"`
	DigestFrequency    *string `json:"digestFrequency"    validate:"omitempty,oneof=NONE DAILY WEEKLY"`
}

// DeletionResponse reports a pending account deletion.
type DeletionResponse struct {
	Status           domain.DeletionStatus `json:"status"`
	RecoveryDeadline time.Time             `json:"recoveryDeadline"`
}

// CreateSubmissionRequest defines the payload for a new story.
type CreateSubmissionRequest struct {
	Title    string `json:"title"    validate:"required,max=200"`
	Content  string `json:"content"  validate:"required,max=50000"`
	Language string `json:"language" validate:"omitempty,max=10"`
}

// UpdateStatusRequest moves a submission through the review workflow.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// RequestReviewsRequest lists the AI review types to run.
type RequestReviewsRequest struct {
	Types []string `json:"types" validate:"required,min=1,max=3,dive,required"`
}

// RequestReviewsResponse carries one queued job per requested type.
type RequestReviewsResponse struct {
	JobIDs []uuid.UUID `json:"jobIds"`
}

// GrammarRequest defines the payload for the grammar check endpoint.
type GrammarRequest struct {
	Content      string `json:"content"`
	SubmissionID string `json:"submissionId" validate:"omitempty,uuid"`
}

// SpeechRequest defines the payload for the text-to-speech endpoint.
type SpeechRequest struct {
	Text  string `json:"text"  validate:"required,min=1,max=5000"`
	Voice string `json:"voice" validate:"omitempty,oneof=alloy echo fable onyx nova shimmer"`
}

// WritingHelpRequest defines the payload for the writing help endpoint.
type WritingHelpRequest struct {
	Content      string `json:"content"`
	Question     string `json:"question"`
	SubmissionID string `json:"submissionId" validate:"omitempty,uuid"`
}

// AdaptTextRequest defines the payload for the text adaptation endpoint.
type AdaptTextRequest struct {
	Text    string `json:"text"`
	AgeBand string `json:"ageBand" validate:"required"`
	Title   string `json:"title"   validate:"max=200"`
}

// ChatMessage is one earlier turn of a reading assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"    validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=2000"`
}

// ReadingAssistantRequest defines the payload for the reading assistant.
type ReadingAssistantRequest struct {
	BookID  string        `json:"bookId"  validate:"required,uuid"`
	Message string        `json:"message" validate:"required,max=500"`
	History []ChatMessage `json:"history" validate:"max=10,dive"`
}

// GrammarFallback is the data of a degraded grammar check.
type GrammarFallback struct {
	Suggestions []string `json:"suggestions"`
}

// ExportResponse is the client view of an export request.
type ExportResponse struct {
	ID           uuid.UUID           `json:"id"`
	Status       domain.ExportStatus `json:"status"`
	FileSize     int64               `json:"fileSize,omitempty"`
	ErrorMessage string              `json:"error,omitempty"`
	DownloadURL  string              `json:"downloadUrl,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
	DownloadedAt *time.Time          `json:"downloadedAt,omitempty"`
	ExpiresAt    time.Time           `json:"expiresAt"`
}

func exportToResponse(req *domain.ExportRequest) ExportResponse {
	return ExportResponse{
		ID:           req.ID,
		Status:       req.Status,
		FileSize:     req.FileSize,
		ErrorMessage: req.ErrorMessage,
		DownloadURL:  export.DownloadPath(req),
		CreatedAt:    req.CreatedAt,
		CompletedAt:  req.CompletedAt,
		DownloadedAt: req.DownloadedAt,
		ExpiresAt:    req.ExpiresAt,
	}
}

// ListResponse wraps a page of items.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func listOf[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}
