package policy

import (
	"notekeep/internal/domain/entity"
	"notekeep/internal/utils/apierror"
)

// NotePolicy encapsulates the access rule shared by the note, merge and
// share paths. It returns apierror.ErrorResponse directly for seamless
// integration with handlers.
//
// Reads on the authenticated detail path: admins and owners always, any
// session for USERS visibility. PUBLIC notes are served to strangers only
// through the public-share read path, never through the detail path, so a
// non-owner probing a note id cannot tell private from public from absent.
type NotePolicy struct{}

func NewNotePolicy() *NotePolicy {
	return &NotePolicy{}
}

func (p *NotePolicy) CanSee(note *entity.Note, actor *entity.Session) apierror.ErrorResponse {
	if note == nil {
		return apierror.NotFoundError
	}

	if actor.IsAdmin || note.OwnerID == actor.UserID {
		return nil
	}

	if note.Visibility == entity.VisibilityUsers {
		return nil
	}
	return apierror.NotFoundError // ^^
}

// CanMutate gates update, delete, merge, share and flag changes: owner or
// admin only. Callers that can see the note but not mutate it get a 403.
func (p *NotePolicy) CanMutate(note *entity.Note, actor *entity.Session) apierror.ErrorResponse {
	if note == nil {
		return apierror.NotFoundError
	}

	if actor.IsAdmin || note.OwnerID == actor.UserID {
		return nil
	}

	if apierr := p.CanSee(note, actor); apierr != nil {
		return apierr
	}
	return apierror.ForbiddenError
}
