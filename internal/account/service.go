// Package account manages users and the bearer tokens that identify them.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/models"
	"github.com/starford/mindmaps/internal/storage"
)

// DefaultTokenTTL is how long a login stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Registration is the input for Register.
type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Validate implements validation.Validatable.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 30)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 72)),
		validation.Field(&r.FirstName, validation.Length(0, 100)),
		validation.Field(&r.LastName, validation.Length(0, 100)),
	)
}

// ProfilePatch changes display names. Nil fields are left alone.
type ProfilePatch struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// Auth is the result of a successful register or login.
type Auth struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Service implements registration, login, and token resolution.
type Service struct {
	store storage.UserStore
	ttl   time.Duration
	cost  int
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an account service.
func NewService(store storage.UserStore, opts ...Option) *Service {
	s := &Service{store: store, ttl: DefaultTokenTTL, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and logs it in.
func (s *Service) Register(ctx context.Context, r Registration) (*Auth, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if err := r.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		ID:        uuid.NewString(),
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertUser(ctx, u, hash); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return nil, fmt.Errorf("user with this email or username: %w", apperr.ErrAlreadyExists)
		}
		return nil, err
	}
	return s.issue(ctx, u)
}

// Login checks credentials and issues a new token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Auth, error) {
	u, hash, err := s.store.Credentials(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthenticated)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}

	now := s.now().UTC()
	if _, err := s.store.PurgeExpiredSessions(ctx, now); err != nil {
		return nil, err
	}
	if err := s.store.TouchLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now
	return s.issue(ctx, u)
}

// Logout revokes token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its user id.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.ErrUnauthenticated
	}
	sess, err := s.store.SessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", apperr.ErrUnauthenticated
		}
		return "", err
	}
	if sess.Expired(s.now()) {
		_ = s.store.DeleteSession(ctx, token)
		return "", fmt.Errorf("token expired: %w", apperr.ErrUnauthenticated)
	}
	return sess.UserID, nil
}

// Me returns the account for userID.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.store.UserByID(ctx, userID)
}

// Lookup returns the account with the given username.
func (s *Service) Lookup(ctx context.Context, username string) (*models.User, error) {
	return s.store.UserByName(ctx, strings.TrimSpace(username))
}

// UpdateProfile overwrites the present fields of p.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p ProfilePatch) (*models.User, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.FirstName != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = strings.TrimSpace(*p.LastName)
	}
	err = validation.ValidateStruct(u,
		validation.Field(&u.FirstName, validation.Length(0, 100)),
		validation.Field(&u.LastName, validation.Length(0, 100)),
	)
	if err != nil {
		return nil, apperr.Validation(err)
	}
	if err := s.store.UpdateProfile(ctx, u.ID, u.FirstName, u.LastName); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	hash, err := s.store.PasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(current)) != nil {
		return apperr.Validation(validation.Errors{"currentPassword": errors.New("current password is incorrect")})
	}
	err = validation.Validate(next, validation.Required, validation.Length(MinPasswordLength, 72))
	if err != nil {
		return apperr.Validation(validation.Errors{"newPassword": err})
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.SetPasswordHash(ctx, userID, newHash)
}

func (s *Service) issue(ctx context.Context, u *models.User) (*Auth, error) {
	sess := models.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return nil, err
	}
	return &Auth{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: u}, nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
