package export

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/store"
)

// Sources are the stores an archive is gathered from.
type Sources struct {
	Users         store.UserStore
	Submissions   store.SubmissionStore
	Reviews       store.ReviewStore
	Notifications store.NotificationStore
	Exports       store.ExportStore
	Deletions     store.DeletionStore
}

type category struct {
	file        string
	description string
	gather      func(ctx context.Context, src Sources, userID uuid.UUID) (any, error)
}

const (
	pageSize         = 100
	maxNotifications = 1000
	maxExportHistory = 100
)

var categories = []category{
	{"1-personal-info.json", "Account and profile information", gatherProfile},
	{"2-preferences.json", "Language and notification preferences", gatherPreferences},
	{"3-submissions.json", "Stories you submitted and their status", gatherSubmissions},
	{"4-ai-reviews.json", "AI feedback on your stories", gatherReviews},
	{"5-notifications.json", "Notifications sent to you", gatherNotifications},
	{"6-export-history.json", "Previous data export requests", gatherExports},
	{"7-account-deletions.json", "Account deletion and restore history", gatherDeletions},
}

type profile struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type preferences struct {
	Language           string                 `json:"language"`
	EmailNotifications bool                   `json:"emailNotifications"`
	DigestFrequency    domain.DigestFrequency `json:"digestFrequency"`
}

func gatherProfile(ctx context.Context, src Sources, userID uuid.UUID) (any, error) {
	u, err := src.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}, nil
}

func gatherPreferences(ctx context.Context, src Sources, userID uuid.UUID) (any, error) {
	u, err := src.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return preferences{
		Language:           u.Language,
		EmailNotifications: u.EmailNotifications,
		DigestFrequency:    u.DigestFrequency,
	}, nil
}

func gatherSubmissions(ctx context.Context, src Sources, userID uuid.UUID) (any, error) {
	all := []*domain.Submission{}
	for offset := 0; ; offset += pageSize {
		page, err := src.Submissions.ListByAuthor(ctx, userID, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func gatherReviews(ctx context.Context, src Sources, userID uuid.UUID) (any, error) {
	return src.Reviews.ListByAuthor(ctx, userID)
}

func gatherNotifications(ctx context.Context, src Sources, userID uuid.UUID) (any, error) {
	return src.Notifications.ListByUser(ctx, userID, maxNotifications)
}

func gatherExports(ctx context.Context, src Sources, userID uuid.UUID) (any, error) {
	return src.Exports.ListByUser(ctx, userID, maxExportHistory)
}

func gatherDeletions(ctx context.Context, src Sources, userID uuid.UUID) (any, error) {
	return src.Deletions.ListByUser(ctx, userID)
}
