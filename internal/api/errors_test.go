package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/1001stories/stories-api/internal/ai"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/export"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/service/auth"
	"github.com/1001stories/stories-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
	}
	validationErr := validator.New().Struct(payload{})

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing token", auth.ErrMissingToken, http.StatusUnauthorized},
		{"expired token", fmt.Errorf("validate: %w", auth.ErrExpiredToken), http.StatusUnauthorized},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"deleted account", service.ErrAccountDeleted, http.StatusForbidden},
		{"submission not found", store.ErrSubmissionNotFound, http.StatusNotFound},
		{"job not found", store.ErrJobNotFound, http.StatusNotFound},
		{"email exists", store.ErrEmailExists, http.StatusConflict},
		{"export in progress", export.ErrExportInProgress, http.StatusConflict},
		{"export not ready", export.ErrNotReady, http.StatusConflict},
		{"status transition", fmt.Errorf("%w: SUBMITTED to PUBLISHED", domain.ErrInvalidStatusTransition), http.StatusConflict},
		{"not recoverable", service.ErrNotRecoverable, http.StatusConflict},
		{"export expired", export.ErrExportExpired, http.StatusGone},
		{"rate limited", export.ErrRateLimited, http.StatusTooManyRequests},
		{"shutting down", export.ErrClosed, http.StatusServiceUnavailable},
		{"validator", validationErr, http.StatusBadRequest},
		{"empty ai input", fmt.Errorf("%w: content", ai.ErrEmptyInput), http.StatusBadRequest},
		{"age band", ai.ErrInvalidAgeBand, http.StatusBadRequest},
		{"review type", domain.ErrInvalidReviewType, http.StatusBadRequest},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest},
		{"unsafe path", export.ErrInvalidPath, http.StatusInternalServerError},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"expired token", auth.ErrExpiredToken, "Token expired"},
		{"not found", store.ErrExportNotFound, "Export request not found"},
		{"wrapped validation keeps detail", fmt.Errorf("check grammar: %w: content", ai.ErrEmptyInput), "input cannot be empty: content"},
		{"internal error hidden", errors.New("pq: relation users does not exist"), "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
		Voice string `validate:"oneof=alloy echo"`
	}
	err := validator.New().Struct(payload{Email: "nope", Voice: "robot"})

	msg := SanitizeValidationError(err)
	assert.Contains(t, msg, "Invalid Email: invalid email format")
	assert.Contains(t, msg, "Invalid Voice: must be one of alloy echo")
	assert.NotContains(t, msg, "payload")
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}

func TestHandleAPIErrorFallback(t *testing.T) {
	req := request(t, http.MethodGet, "/", nil, nil, nil)

	rr := serve(func(w http.ResponseWriter, r *http.Request) {
		HandleAPIError(w, r, errors.New("dial tcp: refused"), "Failed to list submissions")
	}, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to list submissions", errorMessage(t, rr))

	rr = serve(func(w http.ResponseWriter, r *http.Request) {
		HandleAPIError(w, r, store.ErrSubmissionNotFound, "Failed to list submissions")
	}, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Submission not found", errorMessage(t, rr))
}
