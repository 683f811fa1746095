package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/ai"
	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/digest"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/export"
	"github.com/1001stories/stories-api/internal/retention"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/task"
)

type fakeUserService struct {
	RegisterFn          func(ctx context.Context, in service.RegisterInput) (*domain.User, error)
	AuthenticateFn      func(ctx context.Context, email, password string) (*domain.User, error)
	GetActiveUserFn     func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdatePreferencesFn func(ctx context.Context, id uuid.UUID, p service.Preferences) (*domain.User, error)
	DeleteAccountFn     func(ctx context.Context, id uuid.UUID) (*domain.DeletionRequest, error)
	RestoreAccountFn    func(ctx context.Context, email, password string) (*domain.User, error)
}

func (f *fakeUserService) Register(ctx context.Context, in service.RegisterInput) (*domain.User, error) {
	return f.RegisterFn(ctx, in)
}

func (f *fakeUserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	return f.AuthenticateFn(ctx, email, password)
}

func (f *fakeUserService) GetActiveUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return f.GetActiveUserFn(ctx, id)
}

func (f *fakeUserService) UpdatePreferences(ctx context.Context, id uuid.UUID, p service.Preferences) (*domain.User, error) {
	return f.UpdatePreferencesFn(ctx, id, p)
}

func (f *fakeUserService) DeleteAccount(ctx context.Context, id uuid.UUID) (*domain.DeletionRequest, error) {
	return f.DeleteAccountFn(ctx, id)
}

func (f *fakeUserService) RestoreAccount(ctx context.Context, email, password string) (*domain.User, error) {
	return f.RestoreAccountFn(ctx, email, password)
}

type fakeSubmissionService struct {
	CreateFn        func(ctx context.Context, actor service.Actor, in service.CreateSubmissionInput) (*domain.Submission, error)
	GetFn           func(ctx context.Context, actor service.Actor, id uuid.UUID) (*domain.Submission, error)
	ListMineFn      func(ctx context.Context, actor service.Actor, limit, offset int) ([]*domain.Submission, error)
	ListPublishedFn func(ctx context.Context, limit, offset int) ([]*domain.Submission, error)
	UpdateStatusFn  func(ctx context.Context, actor service.Actor, id uuid.UUID, status domain.SubmissionStatus) (*domain.Submission, error)
}

func (f *fakeSubmissionService) Create(ctx context.Context, actor service.Actor, in service.CreateSubmissionInput) (*domain.Submission, error) {
	return f.CreateFn(ctx, actor, in)
}

func (f *fakeSubmissionService) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*domain.Submission, error) {
	return f.GetFn(ctx, actor, id)
}

func (f *fakeSubmissionService) ListMine(ctx context.Context, actor service.Actor, limit, offset int) ([]*domain.Submission, error) {
	return f.ListMineFn(ctx, actor, limit, offset)
}

func (f *fakeSubmissionService) ListPublished(ctx context.Context, limit, offset int) ([]*domain.Submission, error) {
	return f.ListPublishedFn(ctx, limit, offset)
}

func (f *fakeSubmissionService) UpdateStatus(ctx context.Context, actor service.Actor, id uuid.UUID, status domain.SubmissionStatus) (*domain.Submission, error) {
	return f.UpdateStatusFn(ctx, actor, id, status)
}

type fakeReviewService struct {
	RequestReviewsFn func(ctx context.Context, actor service.Actor, submissionID uuid.UUID, types []domain.ReviewType) ([]uuid.UUID, error)
	ListReviewsFn    func(ctx context.Context, actor service.Actor, submissionID uuid.UUID) ([]*domain.AIReview, error)
}

func (f *fakeReviewService) RequestReviews(ctx context.Context, actor service.Actor, submissionID uuid.UUID, types []domain.ReviewType) ([]uuid.UUID, error) {
	return f.RequestReviewsFn(ctx, actor, submissionID, types)
}

func (f *fakeReviewService) ListReviews(ctx context.Context, actor service.Actor, submissionID uuid.UUID) ([]*domain.AIReview, error) {
	return f.ListReviewsFn(ctx, actor, submissionID)
}

type fakeAIService struct {
	CheckGrammarFn     func(ctx context.Context, text, lang string) (ai.Outcome[ai.GrammarResult], error)
	WritingHelpFn      func(ctx context.Context, content, question, lang string) (ai.Outcome[ai.WritingHelp], error)
	SynthesizeSpeechFn func(ctx context.Context, text, voice, lang string) (ai.Outcome[ai.Speech], error)
	AdaptTextFn        func(ctx context.Context, text, ageBand, title, lang string) (ai.Outcome[ai.Adaptation], error)
	ReadingAssistantFn func(ctx context.Context, in ai.ReadingRequest) (ai.Outcome[ai.ReadingReply], error)
}

func (f *fakeAIService) CheckGrammar(ctx context.Context, text, lang string) (ai.Outcome[ai.GrammarResult], error) {
	return f.CheckGrammarFn(ctx, text, lang)
}

func (f *fakeAIService) WritingHelp(ctx context.Context, content, question, lang string) (ai.Outcome[ai.WritingHelp], error) {
	return f.WritingHelpFn(ctx, content, question, lang)
}

func (f *fakeAIService) SynthesizeSpeech(ctx context.Context, text, voice, lang string) (ai.Outcome[ai.Speech], error) {
	return f.SynthesizeSpeechFn(ctx, text, voice, lang)
}

func (f *fakeAIService) AdaptText(ctx context.Context, text, ageBand, title, lang string) (ai.Outcome[ai.Adaptation], error) {
	return f.AdaptTextFn(ctx, text, ageBand, title, lang)
}

func (f *fakeAIService) ReadingAssistant(ctx context.Context, in ai.ReadingRequest) (ai.Outcome[ai.ReadingReply], error) {
	return f.ReadingAssistantFn(ctx, in)
}

// fakeLanguages supports en and ko, defaulting to en.
type fakeLanguages struct{}

func (fakeLanguages) Match(acceptLanguage string) string {
	return fakeLanguages{}.Normalize(acceptLanguage)
}

func (fakeLanguages) Normalize(lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "ko") {
		return "ko"
	}
	return "en"
}

type fakeExportService struct {
	CreateFn func(ctx context.Context, userID uuid.UUID) (*domain.ExportRequest, error)
	GetFn    func(ctx context.Context, userID, id uuid.UUID) (*domain.ExportRequest, error)
	ListFn   func(ctx context.Context, userID uuid.UUID) ([]*domain.ExportRequest, error)
	OpenFn   func(ctx context.Context, userID, id uuid.UUID) (*export.Download, error)
}

func (f *fakeExportService) Create(ctx context.Context, userID uuid.UUID) (*domain.ExportRequest, error) {
	return f.CreateFn(ctx, userID)
}

func (f *fakeExportService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.ExportRequest, error) {
	return f.GetFn(ctx, userID, id)
}

func (f *fakeExportService) List(ctx context.Context, userID uuid.UUID) ([]*domain.ExportRequest, error) {
	return f.ListFn(ctx, userID)
}

func (f *fakeExportService) Open(ctx context.Context, userID, id uuid.UUID) (*export.Download, error) {
	return f.OpenFn(ctx, userID, id)
}

type fakeJobs struct {
	GetFn func(ctx context.Context, actor service.Actor, id uuid.UUID) (task.Status, error)
}

func (f *fakeJobs) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (task.Status, error) {
	return f.GetFn(ctx, actor, id)
}

type fakeDigests struct {
	EvaluateFn func(ctx context.Context, now time.Time) digest.Summary
}

func (f *fakeDigests) Evaluate(ctx context.Context, now time.Time) digest.Summary {
	return f.EvaluateFn(ctx, now)
}

type fakeRetention struct {
	HardDeleteFn func(ctx context.Context) (int, error)
	RunAllFn     func(ctx context.Context) retention.Report
}

func (f *fakeRetention) HardDelete(ctx context.Context) (int, error) {
	return f.HardDeleteFn(ctx)
}

func (f *fakeRetention) RunAll(ctx context.Context) retention.Report {
	return f.RunAllFn(ctx)
}

// request builds a request for direct handler calls. A nil actor leaves the
// request unauthenticated; params become chi URL parameters.
func request(t *testing.T, method, target string, body any, actor *service.Actor, params map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	ctx := req.Context()
	if actor != nil {
		ctx = shared.WithUser(ctx, actor.UserID, actor.Role)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[shared.ErrorResponse](t, rr).Error
}

func writer() *service.Actor {
	return &service.Actor{UserID: uuid.New(), Role: domain.RoleWriter}
}

type fakeNotifications struct {
	ListFn     func(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)
	MarkReadFn func(ctx context.Context, userID, id uuid.UUID) error
}

func (f *fakeNotifications) List(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	return f.ListFn(ctx, userID, limit)
}

func (f *fakeNotifications) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return f.MarkReadFn(ctx, userID, id)
}
