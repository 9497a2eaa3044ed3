package service

import (
	"github.com/vedran77/mentormatch/internal/apperr"
	"github.com/vedran77/mentormatch/internal/domain"
)

type Operation string

const (
	OpCreateRequest Operation = "create"
	OpAcceptRequest Operation = "accept"
	OpRejectRequest Operation = "reject"
	OpCancelRequest Operation = "cancel"
	OpListIncoming  Operation = "list_incoming"
	OpListOutgoing  Operation = "list_outgoing"
	OpListMentors   Operation = "list_mentors"
)

// party names the side of a match request the caller must be.
type party int

const (
	partyNone party = iota
	partyMentor
	partyMentee
)

type rule struct {
	role   domain.Role
	owner  party
	denied string
}

// policy is the single authorization table for every ledger and directory
// operation.
var policy = map[Operation]rule{
	OpCreateRequest: {role: domain.RoleMentee, denied: "only mentees can send match requests"},
	OpAcceptRequest: {role: domain.RoleMentor, owner: partyMentor, denied: "only mentors can accept requests"},
	OpRejectRequest: {role: domain.RoleMentor, owner: partyMentor, denied: "only mentors can reject requests"},
	OpCancelRequest: {role: domain.RoleMentee, owner: partyMentee, denied: "only mentees can cancel requests"},
	OpListIncoming:  {role: domain.RoleMentor, denied: "only mentors can view incoming requests"},
	OpListOutgoing:  {role: domain.RoleMentee, denied: "only mentees can view outgoing requests"},
	OpListMentors:   {role: domain.RoleMentee, denied: "only mentees can view the mentor list"},
}

func authorize(op Operation, caller domain.Principal) error {
	r, ok := policy[op]
	if !ok {
		return apperr.New(apperr.KindForbidden, "operation not permitted")
	}
	if caller.Role != r.role {
		return apperr.New(apperr.KindForbidden, r.denied)
	}
	return nil
}

// owns reports whether caller is the party op acts for on req.
func owns(op Operation, caller domain.Principal, req *domain.MatchRequest) bool {
	switch policy[op].owner {
	case partyMentor:
		return req.MentorID == caller.UserID
	case partyMentee:
		return req.MenteeID == caller.UserID
	}
	return true
}
