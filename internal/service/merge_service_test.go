package service

import (
	"context"
	"testing"

	"notekeep/internal/contract"
	"notekeep/internal/domain/entity"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/utils/apierror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConcatenatesWithSeparator(t *testing.T) {
	source := &entity.Note{ID: 1, OwnerID: 10, Content: "second half"}
	target := &entity.Note{ID: 2, OwnerID: 10, Content: "first half"}
	e := newEnv(source, target)

	resp, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{
		SourceID: 1, TargetID: 2, AddSeparator: true,
	})

	require.Nil(t, apierr)
	assert.Equal(t, "first half\n\n---\n\nsecond half", resp.Content)
	assert.Equal(t, []int64{1}, e.noteRepo.deleted, "the source note is retired")
}

func TestMergeWithoutSeparator(t *testing.T) {
	source := &entity.Note{ID: 1, OwnerID: 10, Content: "b"}
	target := &entity.Note{ID: 2, OwnerID: 10, Content: "a"}
	e := newEnv(source, target)

	resp, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 2})

	require.Nil(t, apierr)
	assert.Equal(t, "a\n\nb", resp.Content)
}

func TestMergeSameNoteRejected(t *testing.T) {
	e := newEnv(&entity.Note{ID: 1, OwnerID: 10, Content: "x"})

	_, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 1})

	assert.Equal(t, apierror.SameNoteMergeError, apierr)
}

func TestMergeMissingNoteRejected(t *testing.T) {
	e := newEnv(&entity.Note{ID: 1, OwnerID: 10, Content: "x"})

	_, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 404})

	assert.Equal(t, apierror.MergeMissingNoteError, apierr)
	assert.Empty(t, e.noteRepo.deleted, "a failed merge must leave both notes untouched")
}

func TestMergeMovesBlobsAndRewritesPaths(t *testing.T) {
	source := &entity.Note{
		ID: 1, OwnerID: 10,
		Content:     "see /api/notes/1/files/50",
		Attachments: []entity.Attachment{{Type: entity.AttachmentTypeFile, ID: 50, Name: "doc.pdf"}},
	}
	target := &entity.Note{ID: 2, OwnerID: 10, Content: "target"}
	e := newEnv(source, target)
	e.blobs.blobs[storage.AttachmentKey(1, 50)] = fakeBlob{data: []byte("doc")}

	resp, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 2})

	require.Nil(t, apierr)
	assert.Contains(t, resp.Content, "/api/notes/2/files/50")
	assert.NotContains(t, resp.Content, "/api/notes/1/files/50")

	_, srcExists := e.blobs.blobs[storage.AttachmentKey(1, 50)]
	_, dstExists := e.blobs.blobs[storage.AttachmentKey(2, 50)]
	assert.False(t, srcExists)
	assert.True(t, dstExists)

	require.Len(t, resp.Attachments, 1)
	assert.Equal(t, int64(50), resp.Attachments[0].ID)
}

func TestMergeMoveIsIdempotent(t *testing.T) {
	source := &entity.Note{
		ID: 1, OwnerID: 10, Content: "src",
		Attachments: []entity.Attachment{{Type: entity.AttachmentTypeFile, ID: 50, Name: "doc.pdf"}},
	}
	target := &entity.Note{ID: 2, OwnerID: 10, Content: "dst"}
	e := newEnv(source, target)
	// A crashed earlier merge already copied the blob but never cleaned up.
	e.blobs.blobs[storage.AttachmentKey(1, 50)] = fakeBlob{data: []byte("doc")}
	e.blobs.blobs[storage.AttachmentKey(2, 50)] = fakeBlob{data: []byte("doc")}
	e.blobs.failCopy[storage.AttachmentKey(1, 50)] = true

	resp, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 2})

	require.Nil(t, apierr, "an existing destination blob must not trigger a copy at all")
	require.Len(t, resp.Attachments, 1)
	_, srcExists := e.blobs.blobs[storage.AttachmentKey(1, 50)]
	assert.False(t, srcExists, "the leftover source blob is cleaned up")
}

func TestMergeDropsAttachmentOnFailedMove(t *testing.T) {
	source := &entity.Note{
		ID: 1, OwnerID: 10,
		Content:      "broken /api/notes/1/files/50 link",
		Attachments:  []entity.Attachment{{Type: entity.AttachmentTypeFile, ID: 50, Name: "doc.pdf"}},
		InlineImages: []string{"https://notes.example.com/api/notes/1/files/50"},
	}
	target := &entity.Note{ID: 2, OwnerID: 10, Content: "dst"}
	e := newEnv(source, target)
	e.blobs.blobs[storage.AttachmentKey(1, 50)] = fakeBlob{data: []byte("doc")}
	e.blobs.failCopy[storage.AttachmentKey(1, 50)] = true

	resp, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 2})

	require.Nil(t, apierr, "a failed blob move degrades the merge, it does not abort it")
	assert.Empty(t, resp.Attachments, "the attachment whose blob could not move is dropped")
	assert.Empty(t, resp.InlineImages, "inline URLs pointing at the failed blob are dropped too")
	assert.Equal(t, []int64{1}, e.noteRepo.deleted)
}

func TestMergeCarriesProxyAttachments(t *testing.T) {
	source := &entity.Note{
		ID: 1, OwnerID: 10, Content: "src",
		Attachments: []entity.Attachment{{Type: entity.AttachmentTypeProxy, ID: 60, Name: "clip.mp4", ExternalID: "https://media.example.com/clip.mp4"}},
	}
	target := &entity.Note{ID: 2, OwnerID: 10, Content: "dst"}
	e := newEnv(source, target)

	resp, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 2})

	require.Nil(t, apierr)
	require.Len(t, resp.Attachments, 1)
	assert.Equal(t, entity.AttachmentTypeProxy, resp.Attachments[0].Type)
	assert.Empty(t, e.blobs.uploads, "proxy entries own no blob to move")
}

func TestMergeRevokesSourceShare(t *testing.T) {
	source := &entity.Note{ID: 1, OwnerID: 10, Content: "src"}
	target := &entity.Note{ID: 2, OwnerID: 10, Content: "dst"}
	e := newEnv(source, target)

	share, shareErr := e.shares.ShareNote(context.Background(), ownerSession(), 1, 3600)
	require.Nil(t, shareErr)

	_, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 2})
	require.Nil(t, apierr)

	_, pubErr := e.shares.GetPublicNote(context.Background(), share.PublicID)
	assert.Equal(t, apierror.ShareNotFoundError, pubErr, "a public link must not outlive the note it names")
}

func TestMergeRebuildsTargetTags(t *testing.T) {
	source := &entity.Note{ID: 1, OwnerID: 10, Content: "groceries #shopping"}
	target := &entity.Note{ID: 2, OwnerID: 10, Content: "chores #home"}
	e := newEnv(source, target)
	e.tagRepo.byNote[1] = []string{"shopping"}
	e.tagRepo.byNote[2] = []string{"home"}

	_, apierr := e.merge.Merge(context.Background(), ownerSession(), &contract.MergeNotesRequest{SourceID: 1, TargetID: 2})

	require.Nil(t, apierr)
	assert.ElementsMatch(t, []string{"home", "shopping"}, e.tagRepo.byNote[2])
	assert.Contains(t, e.tagRepo.deleted, int64(1))
}
