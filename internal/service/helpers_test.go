package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/i18n"
	"github.com/1001stories/stories-api/internal/mocks"
)

const testPassword = "correct horse battery"

// newStoredUser returns a user as the mock store would hold it.
func newStoredUser(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := domain.NewUser(email, testPassword, role)
	require.NoError(t, err)
	u.HashedPassword = "hashed:" + u.Password
	u.Password = ""
	return u
}

func newSubmission(t *testing.T, authorID uuid.UUID, status domain.SubmissionStatus) *domain.Submission {
	t.Helper()
	s, err := domain.NewSubmission(authorID, "The Lost Kite", "Once upon a time a kite flew away.", "en")
	require.NoError(t, err)
	s.Status = status
	return s
}

func newCatalog(t *testing.T) *i18n.Catalog {
	t.Helper()
	c, err := i18n.New()
	require.NoError(t, err)
	return c
}

// prefixVerifier matches the mock user store's "hashed:" scheme.
func prefixVerifier() *mocks.MockPasswordVerifier {
	return &mocks.MockPasswordVerifier{
		CompareFn: func(hashed, password string) error {
			if hashed == "hashed:"+password {
				return nil
			}
			return errors.New("mismatch")
		},
	}
}
