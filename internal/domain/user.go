package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

func (r Role) Valid() bool {
	return r == RoleMentor || r == RoleMentee
}

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Bio          string    `json:"bio"`
	Skills       []string  `json:"skills,omitempty"`
	Avatar       []byte    `json:"-"`
	AvatarType   string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProfileUpdate carries already-sanitised profile fields. A nil Avatar keeps
// the stored image.
type ProfileUpdate struct {
	Name       string
	Bio        string
	Skills     []string
	Avatar     []byte
	AvatarType string
}

// ApplyProfile replaces the editable profile fields. Skills are only kept
// for mentors; for mentees they are dropped without error.
func (u *User) ApplyProfile(p ProfileUpdate, now time.Time) {
	u.Name = p.Name
	u.Bio = p.Bio
	if u.Role == RoleMentor {
		if p.Skills != nil {
			u.Skills = append([]string(nil), p.Skills...)
		}
		if u.Skills == nil {
			u.Skills = []string{}
		}
	} else {
		u.Skills = nil
	}
	if p.Avatar != nil {
		u.Avatar = p.Avatar
		u.AvatarType = p.AvatarType
	}
	u.UpdatedAt = Timestamp(now)
}

func (u *User) HasSkill(skill string) bool {
	for _, s := range u.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// Principal is the authenticated caller as seen by the services.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}
