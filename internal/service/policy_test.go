package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
)

func TestAuthorize(t *testing.T) {
	mentor := domain.Principal{UserID: uuid.New(), Role: domain.RoleMentor}
	mentee := domain.Principal{UserID: uuid.New(), Role: domain.RoleMentee}

	tests := []struct {
		op      Operation
		allowed domain.Principal
		denied  domain.Principal
	}{
		{OpCreateRequest, mentee, mentor},
		{OpAcceptRequest, mentor, mentee},
		{OpRejectRequest, mentor, mentee},
		{OpCancelRequest, mentee, mentor},
		{OpListIncoming, mentor, mentee},
		{OpListOutgoing, mentee, mentor},
		{OpListMentors, mentee, mentor},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.NoError(t, authorize(tt.op, tt.allowed))
			assert.ErrorIs(t, authorize(tt.op, tt.denied), apperr.ErrForbidden)
		})
	}

	assert.ErrorIs(t, authorize(Operation("delete_everything"), mentor), apperr.ErrForbidden)
}

func TestOwns(t *testing.T) {
	mentor := domain.Principal{UserID: uuid.New(), Role: domain.RoleMentor}
	mentee := domain.Principal{UserID: uuid.New(), Role: domain.RoleMentee}
	req := &domain.MatchRequest{ID: uuid.New(), MentorID: mentor.UserID, MenteeID: mentee.UserID}
	stranger := domain.Principal{UserID: uuid.New(), Role: domain.RoleMentor}

	assert.True(t, owns(OpAcceptRequest, mentor, req))
	assert.True(t, owns(OpRejectRequest, mentor, req))
	assert.True(t, owns(OpCancelRequest, mentee, req))
	assert.False(t, owns(OpAcceptRequest, stranger, req))
	assert.False(t, owns(OpCancelRequest, domain.Principal{UserID: uuid.New(), Role: domain.RoleMentee}, req))
}
