package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/repository"
	"github.com/vedran77/mentormatch/pkg/validator"
)

var (
	ErrEmailTaken   = apperr.New(apperr.KindConflict, "email already registered")
	ErrInvalidCreds = apperr.New(apperr.KindUnauthorized, "invalid email or password")
	ErrInvalidToken = apperr.New(apperr.KindUnauthorized, "invalid or expired token")
)

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *TokenIssuer
	revoked  repository.RevocationList
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, tokens *TokenIssuer, revoked repository.RevocationList, logger *slog.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		revoked:  revoked,
		logger:   logger,
		now:      time.Now,
	}
}

type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*ProfileView, error) {
	email := validator.NormalizeEmail(input.Email)
	name := validator.CleanText(input.Name)
	if errs := validator.ValidateSignup(email, input.Password, name, input.Role); errs.HasErrors() {
		return nil, apperr.Validation("invalid signup", errs)
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.internal(ctx, "failed to look up email", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, s.internal(ctx, "failed to hash password", fmt.Errorf("hashing password: %w", err))
	}

	now := domain.Timestamp(s.now())
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         domain.Role(input.Role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.Role == domain.RoleMentor {
		user.Skills = []string{}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, s.internal(ctx, "failed to create user", fmt.Errorf("creating user: %w", err))
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID, "role", user.Role)
	return NewProfileView(user), nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResponse, error) {
	email := validator.NormalizeEmail(input.Email)
	if errs := validator.ValidateLogin(email, input.Password); errs.HasErrors() {
		return nil, apperr.Validation("invalid login", errs)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.internal(ctx, "failed to look up user", err)
	}
	if user == nil {
		return nil, ErrInvalidCreds
	}

	if !verifyPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCreds
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, s.internal(ctx, "failed to issue token", fmt.Errorf("generating token: %w", err))
	}

	return &LoginResponse{Token: token}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return ErrInvalidToken
	}
	if err := s.revoked.Revoke(ctx, claims.ID, s.tokens.remaining(claims)); err != nil {
		return s.internal(ctx, "failed to revoke token", err)
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", claims.Subject)
	return nil
}

// Authenticate turns a bearer token into the caller's identity. The role is
// read from the stored user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.Principal{}, ErrInvalidToken
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return domain.Principal{}, s.internal(ctx, "failed to check token revocation", err)
	}
	if revoked {
		return domain.Principal{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Principal{}, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return domain.Principal{}, s.internal(ctx, "failed to load user", err)
	}
	if user == nil {
		return domain.Principal{}, ErrInvalidToken
	}

	return domain.Principal{UserID: user.ID, Role: user.Role}, nil
}

func (s *AuthService) internal(ctx context.Context, msg string, err error) error {
	s.logger.ErrorContext(ctx, msg, "error", err)
	return apperr.Wrap(apperr.KindInternal, msg, err)
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1
}
