package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Common validation errors
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrEmptyEmail          = errors.New("email cannot be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 12 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword       = errors.New("password cannot be empty")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

var validate = validator.New()

// Role is the platform role a user acts under.
type Role string

const (
	RoleLearner Role = "LEARNER"
	RoleTeacher Role = "TEACHER"
	RoleWriter  Role = "WRITER"
	RoleAdmin   Role = "ADMIN"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleLearner, RoleTeacher, RoleWriter, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a string to a Role, accepting any letter case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// DigestFrequency controls whether and how often a user receives the
// notification digest email.
type DigestFrequency string

const (
	DigestNone   DigestFrequency = "NONE"
	DigestDaily  DigestFrequency = "DAILY"
	DigestWeekly DigestFrequency = "WEEKLY"
)

// IsValid reports whether f is a known digest frequency.
func (f DigestFrequency) IsValid() bool {
	switch f {
	case DigestNone, DigestDaily, DigestWeekly:
		return true
	}
	return false
}

// User represents a registered member of the platform.
type User struct {
	ID                 uuid.UUID       `json:"id"`
	Email              string          `json:"email"`
	Name               string          `json:"name"`
	Password           string          `json:"-"` // plaintext, only set during registration
	HashedPassword     string          `json:"-"`
	Role               Role            `json:"role"`
	Language           string          `json:"language"`
	EmailNotifications bool            `json:"email_notifications"`
	DigestFrequency    DigestFrequency `json:"digest_frequency"`
	DeletedAt          *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewUser creates a new User with the given email, password and role.
// The caller is responsible for hashing the password before storing the user.
func NewUser(email, password string, role Role) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:                 uuid.New(),
		Email:              strings.TrimSpace(email),
		Password:           password,
		Role:               role,
		Language:           "en",
		EmailNotifications: true,
		DigestFrequency:    DigestNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}

	if err := validate.Var(u.Email, "email"); err != nil {
		return ErrInvalidEmail
	}

	if !u.Role.IsValid() {
		return ErrInvalidRole
	}

	if u.DigestFrequency != "" && !u.DigestFrequency.IsValid() {
		return ErrInvalidDigestFrequency
	}

	if u.Password != "" {
		if len(u.Password) < 12 {
			return ErrPasswordTooShort
		}
		if len(u.Password) > 72 {
			return ErrPasswordTooLong
		}
	} else if u.HashedPassword == "" {
		return ErrEmptyPassword
	}

	return nil
}

// IsDeleted reports whether the account is soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}
