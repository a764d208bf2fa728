package service

import (
	"context"
	"regexp"
	"time"

	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/security"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// minPasswordScore is the minimum strength score accepted at registration.
const minPasswordScore = 3

const sessionTTL = 24 * time.Hour

type AuthService struct {
	userRepo    domain.UserRepository
	sessionRepo domain.SessionRepository
	csrf        *security.Guard
}

func NewAuthService(userRepo domain.UserRepository, sessionRepo domain.SessionRepository, csrf *security.Guard) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		csrf:        csrf,
	}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	if len(username) < 3 || len(username) > 50 {
		return nil, domain.ErrInvalidInput
	}
	if !usernameRegex.MatchString(username) {
		return nil, domain.ErrInvalidInput
	}
	if !emailRegex.MatchString(email) || len(email) > 255 {
		return nil, domain.ErrInvalidInput
	}
	if len(password) < 8 || len(password) > 100 {
		return nil, domain.ErrInvalidInput
	}
	if security.CheckPasswordStrength(password).Score < minPasswordScore {
		return nil, domain.ErrWeakPassword
	}

	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil, domain.ErrUsernameExists
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and opens a session. A fresh CSRF token is
// minted and bound to the session so the first page load already has one.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Session, *domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(password),
	); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	csrfToken, err := s.csrf.Issue()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	session := &domain.Session{
		UserID:     user.ID,
		Token:      uuid.New().String(),
		CSRFToken:  csrfToken,
		ExpiresAt:  now.Add(sessionTTL),
		LastSeenAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	return session, user, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessionRepo.Delete(ctx, token)
}

// LogoutEverywhere invalidates all of a user's sessions at once.
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID string) error {
	return s.sessionRepo.DeleteByUserID(ctx, userID)
}

func (s *AuthService) ValidateSession(ctx context.Context, token string) (*domain.Session, error) {
	return s.sessionRepo.GetByToken(ctx, token)
}

// RotateCSRFToken issues a replacement CSRF token for an active session and
// persists it. The previous token stops matching the session immediately.
func (s *AuthService) RotateCSRFToken(ctx context.Context, sessionToken string) (string, error) {
	if _, err := s.sessionRepo.GetByToken(ctx, sessionToken); err != nil {
		return "", err
	}

	csrfToken, err := s.csrf.Issue()
	if err != nil {
		return "", err
	}

	if err := s.sessionRepo.UpdateCSRFToken(ctx, csrfToken, sessionToken); err != nil {
		return "", err
	}
	return csrfToken, nil
}

// TouchActivity records that a session showed signs of life.
func (s *AuthService) TouchActivity(ctx context.Context, token string) error {
	return s.sessionRepo.TouchLastSeen(ctx, token, time.Now())
}

// PurgeExpiredSessions removes sessions past their expiry. Run periodically.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessionRepo.DeleteExpired(ctx)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *AuthService) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}
