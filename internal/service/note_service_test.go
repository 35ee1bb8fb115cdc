package service

import (
	"context"
	"mime/multipart"
	"testing"

	"notekeep/internal/contract"
	"notekeep/internal/domain/entity"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/utils/apierror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNoteRejectsEmpty(t *testing.T) {
	e := newEnv()

	_, apierr := e.notes.CreateNote(context.Background(), ownerSession(), &contract.CreateNoteRequest{Content: "   "}, nil)

	assert.Equal(t, apierror.EmptyNoteError, apierr)
	assert.Empty(t, e.noteRepo.notes)
}

func TestCreateNoteExtractsInlineMediaAndTags(t *testing.T) {
	e := newEnv()

	content := "Trip photos #travel ![pic](https://media.example.com/a.png) [tg-video](https://media.example.com/b.mp4)"
	resp, apierr := e.notes.CreateNote(context.Background(), ownerSession(), &contract.CreateNoteRequest{Content: content}, nil)

	require.Nil(t, apierr)
	assert.Equal(t, []string{"https://media.example.com/a.png"}, resp.InlineImages)
	assert.Equal(t, []string{"https://media.example.com/b.mp4"}, resp.InlineVideos)
	assert.Equal(t, []string{"travel"}, e.tagRepo.byNote[resp.ID])
	assert.Equal(t, entity.VisibilityPrivate, resp.Visibility)
}

func TestCreateNoteIngestsFile(t *testing.T) {
	e := newEnv()
	file := makeFileHeader(t, "report.pdf", "application/pdf", []byte("%PDF-1.4"))

	resp, apierr := e.notes.CreateNote(context.Background(), ownerSession(), &contract.CreateNoteRequest{Content: "see attached"}, []*multipart.FileHeader{file})

	require.Nil(t, apierr)
	require.Len(t, resp.Attachments, 1)
	att := resp.Attachments[0]
	assert.Equal(t, entity.AttachmentTypeFile, att.Type)
	assert.Equal(t, "report.pdf", att.Name)

	key := storage.AttachmentKey(resp.ID, att.ID)
	_, stored := e.blobs.blobs[key]
	assert.True(t, stored, "blob should live under the note's key prefix")
}

func TestCreateNoteSkipsImageFiles(t *testing.T) {
	e := newEnv()
	file := makeFileHeader(t, "photo.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})

	resp, apierr := e.notes.CreateNote(context.Background(), ownerSession(), &contract.CreateNoteRequest{Content: "with photo"}, []*multipart.FileHeader{file})

	require.Nil(t, apierr)
	assert.Empty(t, resp.Attachments, "image uploads ride the inline path, never the attachment list")
	assert.Empty(t, e.blobs.uploads)
}

func TestGetNoteAccess(t *testing.T) {
	private := &entity.Note{ID: 1, OwnerID: 10, Content: "mine", Visibility: entity.VisibilityPrivate}
	shared := &entity.Note{ID: 2, OwnerID: 10, Content: "team", Visibility: entity.VisibilityUsers}
	public := &entity.Note{ID: 3, OwnerID: 10, Content: "world", Visibility: entity.VisibilityPublic}
	e := newEnv(private, shared, public)

	owner := &entity.Session{UserID: 10}
	stranger := &entity.Session{UserID: 99}
	admin := &entity.Session{UserID: 50, IsAdmin: true}

	_, apierr := e.notes.GetNote(owner, 1)
	assert.Nil(t, apierr)

	_, apierr = e.notes.GetNote(stranger, 1)
	assert.Equal(t, apierror.NotFoundError, apierr, "private notes are invisible to strangers")

	_, apierr = e.notes.GetNote(stranger, 2)
	assert.Nil(t, apierr, "USERS visibility is readable by any session")

	_, apierr = e.notes.GetNote(stranger, 3)
	assert.Equal(t, apierror.NotFoundError, apierr, "public notes are served only through the share path")

	_, apierr = e.notes.GetNote(admin, 1)
	assert.Nil(t, apierr)

	_, apierr = e.notes.GetNote(owner, 404)
	assert.Equal(t, apierror.NotFoundError, apierr)
}

func TestGetNotesScopedToActor(t *testing.T) {
	e := newEnv(
		&entity.Note{ID: 1, OwnerID: 10, Content: "mine"},
		&entity.Note{ID: 2, OwnerID: 99, Content: "theirs"},
	)

	resp, apierr := e.notes.GetNotes(ownerSession(), &entity.NoteFilter{OwnerID: 99})

	require.Nil(t, apierr)
	require.Len(t, resp.Notes, 1)
	assert.Equal(t, int64(1), resp.Notes[0].ID, "the filter's owner is always the actor, whatever the caller set")
}

func TestUpdateNoteCascadeDeletesWhenEmptied(t *testing.T) {
	note := &entity.Note{ID: 5, OwnerID: 10, Content: "soon gone"}
	e := newEnv(note)
	empty := ""

	resp, deleted, apierr := e.notes.UpdateNote(context.Background(), ownerSession(), 5, &contract.UpdateNoteRequest{Content: &empty}, nil)

	require.Nil(t, apierr)
	assert.True(t, deleted)
	assert.Nil(t, resp)
	assert.Equal(t, []int64{5}, e.noteRepo.deleted)
	assert.Contains(t, e.tagRepo.deleted, int64(5))
}

func TestUpdateNoteDeletionsCountBeforeEmptiness(t *testing.T) {
	note := &entity.Note{
		ID: 6, OwnerID: 10, Content: "",
		Attachments: []entity.Attachment{{Type: entity.AttachmentTypeFile, ID: 77, Name: "last.pdf"}},
	}
	e := newEnv(note)
	e.blobs.blobs[storage.AttachmentKey(6, 77)] = fakeBlob{data: []byte("x")}

	_, deleted, apierr := e.notes.UpdateNote(context.Background(), ownerSession(), 6, &contract.UpdateNoteRequest{DeleteFileIDs: []int64{77}}, nil)

	require.Nil(t, apierr)
	assert.True(t, deleted, "removing the last attachment empties the note")
	assert.Empty(t, e.blobs.blobs)
}

func TestUpdateNoteKeepsTimestampWhenAsked(t *testing.T) {
	note := &entity.Note{ID: 7, OwnerID: 10, Content: "pin me", UpdatedAt: 12345}
	e := newEnv(note)
	pinned := true
	keep := false

	resp, deleted, apierr := e.notes.UpdateNote(context.Background(), ownerSession(), 7, &contract.UpdateNoteRequest{
		IsPinned:        &pinned,
		UpdateTimestamp: &keep,
	}, nil)

	require.Nil(t, apierr)
	assert.False(t, deleted)
	assert.True(t, resp.IsPinned)
	assert.Equal(t, int64(12345), e.noteRepo.notes[7].UpdatedAt)
}

func TestUpdateNoteForbiddenForStranger(t *testing.T) {
	note := &entity.Note{ID: 8, OwnerID: 10, Content: "team note", Visibility: entity.VisibilityUsers}
	e := newEnv(note)
	pinned := true

	_, _, apierr := e.notes.UpdateNote(context.Background(), &entity.Session{UserID: 99}, 8, &contract.UpdateNoteRequest{IsPinned: &pinned}, nil)

	assert.Equal(t, apierror.ForbiddenError, apierr, "visible is not mutable")
}

func TestDeleteNoteCleansUpEverything(t *testing.T) {
	note := &entity.Note{
		ID: 9, OwnerID: 10, Content: "doomed #gone",
		Attachments: []entity.Attachment{{Type: entity.AttachmentTypeFile, ID: 1, Name: "a.pdf"}},
	}
	e := newEnv(note)
	e.tagRepo.byNote[9] = []string{"gone"}
	e.blobs.blobs[storage.AttachmentKey(9, 1)] = fakeBlob{data: []byte("a")}
	// A stray blob the metadata no longer tracks.
	e.blobs.blobs[storage.NotePrefix(9)+"999"] = fakeBlob{data: []byte("orphan")}

	_, shareErr := e.shares.ShareNote(context.Background(), ownerSession(), 9, 3600)
	require.Nil(t, shareErr)

	apierr := e.notes.DeleteNote(context.Background(), ownerSession(), 9)

	require.Nil(t, apierr)
	assert.Empty(t, e.blobs.blobs, "blob cleanup sweeps the whole key prefix")
	assert.Empty(t, e.tagRepo.byNote)
	assert.Equal(t, []int64{9}, e.noteRepo.deleted)

	_, memoErr := e.shares.GetPublicNote(context.Background(), "whatever")
	assert.Equal(t, apierror.ShareNotFoundError, memoErr)
	assert.Empty(t, e.store.entries, "share records die with the note")
}

func TestGetAttachment(t *testing.T) {
	note := &entity.Note{
		ID: 11, OwnerID: 10, Content: "files",
		Attachments: []entity.Attachment{
			{Type: entity.AttachmentTypeFile, ID: 1, Name: "a.pdf", MimeType: "application/pdf"},
			{Type: entity.AttachmentTypeProxy, ID: 2, Name: "remote.mp4", ExternalID: "https://media.example.com/v.mp4"},
		},
	}
	e := newEnv(note)
	e.blobs.blobs[storage.AttachmentKey(11, 1)] = fakeBlob{data: []byte("%PDF"), contentType: "application/pdf"}

	obj, att, apierr := e.notes.GetAttachment(context.Background(), ownerSession(), 11, 1)
	require.Nil(t, apierr)
	assert.Equal(t, []byte("%PDF"), obj.Data)
	assert.Equal(t, "a.pdf", att.Name)

	_, _, apierr = e.notes.GetAttachment(context.Background(), ownerSession(), 11, 2)
	assert.Equal(t, apierror.NotFoundError, apierr, "proxy entries own no downloadable blob")

	_, _, apierr = e.notes.GetAttachment(context.Background(), ownerSession(), 11, 404)
	assert.Equal(t, apierror.NotFoundError, apierr)
}
