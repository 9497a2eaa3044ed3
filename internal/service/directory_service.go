package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
	"github.com/vedran77/mentormatch/internal/repository"
)

const (
	OrderDefault = ""
	OrderByName  = "name"
	OrderBySkill = "skill"
)

type MentorQuery struct {
	Skill   string
	OrderBy string
}

// DirectoryService lists mentors for mentees. It never writes.
type DirectoryService struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
}

func NewDirectoryService(userRepo repository.UserRepository, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{userRepo: userRepo, logger: logger}
}

func (s *DirectoryService) ListMentors(ctx context.Context, caller domain.Principal, q MentorQuery) ([]ProfileView, error) {
	if err := authorize(OpListMentors, caller); err != nil {
		return nil, err
	}
	switch q.OrderBy {
	case OrderDefault, OrderByName, OrderBySkill:
	default:
		return nil, apperr.Validation("invalid mentor query", map[string]string{"orderBy": "orderBy must be name or skill"})
	}

	mentors, err := s.userRepo.ListMentors(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list mentors", "error", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list mentors", err)
	}

	if q.Skill != "" {
		filtered := mentors[:0]
		for _, m := range mentors {
			if m.HasSkill(q.Skill) {
				filtered = append(filtered, m)
			}
		}
		mentors = filtered
	}

	// ListMentors returns creation order, so a stable sort keeps it for ties.
	switch q.OrderBy {
	case OrderByName:
		sort.SliceStable(mentors, func(i, j int) bool {
			return mentors[i].Name < mentors[j].Name
		})
	case OrderBySkill:
		type keyed struct {
			key  string
			user domain.User
		}
		ks := make([]keyed, len(mentors))
		for i, m := range mentors {
			ks[i] = keyed{key: skillKey(m.Skills), user: m}
		}
		sort.SliceStable(ks, func(i, j int) bool {
			return ks[i].key < ks[j].key
		})
		for i := range ks {
			mentors[i] = ks[i].user
		}
	}

	out := make([]ProfileView, 0, len(mentors))
	for i := range mentors {
		out = append(out, *NewProfileView(&mentors[i]))
	}
	return out, nil
}

// skillKey is the JSON form of a skill list, used as its sort key.
func skillKey(skills []string) string {
	if skills == nil {
		skills = []string{}
	}
	b, _ := json.Marshal(skills)
	return string(b)
}
