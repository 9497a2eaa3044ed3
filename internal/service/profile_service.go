package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/repository"
	"github.com/vedran77/mentormatch/pkg/validator"
)

var (
	ErrUserNotFound   = apperr.New(apperr.KindNotFound, "user not found")
	ErrForeignProfile = apperr.New(apperr.KindForbidden, "cannot update another user's profile")
)

const placeholderAvatarURL = "https://placehold.co/500x500.jpg"

// ImageValidator checks avatar bytes and reports their content type.
type ImageValidator interface {
	Validate(data []byte) (string, error)
}

type ProfileDetails struct {
	Name     string    `json:"name"`
	Bio      string    `json:"bio"`
	ImageURL string    `json:"imageUrl"`
	Skills   *[]string `json:"skills,omitempty"`
}

// ProfileView is the public shape of a user. Skills are only set for mentors.
type ProfileView struct {
	ID      uuid.UUID      `json:"id"`
	Email   string         `json:"email"`
	Role    domain.Role    `json:"role"`
	Profile ProfileDetails `json:"profile"`
}

func NewProfileView(u *domain.User) *ProfileView {
	v := &ProfileView{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
		Profile: ProfileDetails{
			Name:     u.Name,
			Bio:      u.Bio,
			ImageURL: fmt.Sprintf("/api/images/%s/%s", u.Role, u.ID),
		},
	}
	if u.Role == domain.RoleMentor {
		skills := append([]string{}, u.Skills...)
		v.Profile.Skills = &skills
	}
	return v
}

type UpdateProfileInput struct {
	ID     *uuid.UUID `json:"id,omitempty"`
	Role   string     `json:"role,omitempty"`
	Name   string     `json:"name"`
	Bio    string     `json:"bio"`
	Image  string     `json:"image,omitempty"`
	Skills []string   `json:"skills,omitempty"`
}

// AvatarImage is either stored image bytes or a placeholder to redirect to.
type AvatarImage struct {
	ContentType string
	Data        []byte
	RedirectURL string
}

type ProfileService struct {
	tx       repository.Transactor
	userRepo repository.UserRepository
	images   ImageValidator
	logger   *slog.Logger
	now      func() time.Time
}

func NewProfileService(tx repository.Transactor, userRepo repository.UserRepository, images ImageValidator, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		tx:       tx,
		userRepo: userRepo,
		images:   images,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ProfileService) Me(ctx context.Context, caller domain.Principal) (*ProfileView, error) {
	user, err := s.load(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return NewProfileView(user), nil
}

func (s *ProfileService) Update(ctx context.Context, caller domain.Principal, input UpdateProfileInput) (*ProfileView, error) {
	if input.ID != nil && *input.ID != caller.UserID {
		return nil, ErrForeignProfile
	}
	if input.Role != "" && domain.Role(input.Role) != caller.Role {
		return nil, apperr.Validation("invalid profile", map[string]string{"role": "Role cannot be changed"})
	}

	update := domain.ProfileUpdate{
		Name:   validator.CleanText(input.Name),
		Bio:    validator.CleanText(input.Bio),
		Skills: validator.CleanSkills(input.Skills),
	}
	if errs := validator.ValidateProfile(update.Name, update.Bio, update.Skills); errs.HasErrors() {
		return nil, apperr.Validation("invalid profile", errs)
	}

	if input.Image != "" {
		data, err := validator.DecodeImage(input.Image)
		if err != nil {
			return nil, apperr.Validation("invalid profile", map[string]string{"image": err.Error()})
		}
		contentType, err := s.images.Validate(data)
		if err != nil {
			return nil, apperr.Validation("invalid profile", map[string]string{"image": err.Error()})
		}
		update.Avatar, update.AvatarType = data, contentType
	}

	var user *domain.User
	err := s.tx.RunInTx(ctx, func(st repository.Stores) error {
		user = nil

		u, err := st.Users.GetByID(ctx, caller.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if u == nil {
			return ErrUserNotFound
		}
		u.ApplyProfile(update, s.now())

		if err := st.Users.Update(ctx, u); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("update user: %w", err)
		}
		user = u
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound):
		return nil, err
	case errors.Is(err, repository.ErrTxConflict):
		return nil, apperr.Wrap(apperr.KindConflict, "profile changed concurrently, try again", err)
	default:
		return nil, s.internal(ctx, "failed to update profile", err)
	}

	s.logger.InfoContext(ctx, "profile updated", "user_id", user.ID, "avatar_changed", update.Avatar != nil)
	return NewProfileView(user), nil
}

// Avatar returns the stored image of a user, or a role placeholder when the
// user has none. role must match the user's role.
func (s *ProfileService) Avatar(ctx context.Context, role domain.Role, userID uuid.UUID) (*AvatarImage, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != role {
		return nil, ErrUserNotFound
	}

	if len(user.Avatar) == 0 {
		q := url.Values{"text": {string(user.Role)}}
		return &AvatarImage{RedirectURL: placeholderAvatarURL + "?" + q.Encode()}, nil
	}
	return &AvatarImage{ContentType: user.AvatarType, Data: user.Avatar}, nil
}

func (s *ProfileService) load(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.internal(ctx, "failed to load user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *ProfileService) internal(ctx context.Context, msg string, err error) error {
	s.logger.ErrorContext(ctx, msg, "error", err)
	return apperr.Wrap(apperr.KindInternal, msg, err)
}
