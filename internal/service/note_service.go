package service

import (
	"context"
	"mime/multipart"
	"strings"

	"notekeep/internal/contract"
	"notekeep/internal/domain/entity"
	"notekeep/internal/domain/policy"
	"notekeep/internal/domain/scanner"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/utils"
	"notekeep/internal/utils/apierror"
	"notekeep/internal/utils/uid"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
)

type NoteRepository interface {
	FindByID(id int64) (*entity.Note, error)
	FindPage(filter *entity.NoteFilter) ([]*entity.Note, bool, error)
	Create(note *entity.Note) error
	Save(note *entity.Note) error
	Delete(note *entity.Note) error
}

type TagRepository interface {
	ReplaceForNote(noteID int64, names []string) error
	DeleteForNote(noteID int64) error
}

type DefaultNoteService struct {
	NoteRepo NoteRepository
	TagRepo  TagRepository
	S3       storage.S3Client
	Shares   *DefaultShareService
	Policy   *policy.NotePolicy
	Validate *validator.Validate
}

func NewNoteService(
	noteRepo NoteRepository,
	tagRepo TagRepository,
	s3 storage.S3Client,
	shares *DefaultShareService,
	notePolicy *policy.NotePolicy,
	validate *validator.Validate,
) *DefaultNoteService {
	return &DefaultNoteService{
		NoteRepo: noteRepo,
		TagRepo:  tagRepo,
		S3:       s3,
		Shares:   shares,
		Policy:   notePolicy,
		Validate: validate,
	}
}

func (n *DefaultNoteService) GetNotes(actor *entity.Session, filter *entity.NoteFilter) (*contract.ListNotesResponse, apierror.ErrorResponse) {
	filter.OwnerID = actor.UserID

	notes, hasMore, err := n.NoteRepo.FindPage(filter)
	if err != nil {
		log.Errorf("failed to fetch notes: %v", err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*contract.NoteResponse, len(notes))
	for i, note := range notes {
		resp[i] = toNoteResponse(note)
	}
	return &contract.ListNotesResponse{Notes: resp, HasMore: hasMore}, nil
}

func (n *DefaultNoteService) GetNote(actor *entity.Session, noteID int64) (*contract.NoteResponse, apierror.ErrorResponse) {
	note, err := n.NoteRepo.FindByID(noteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return nil, apierror.InternalServerError
	}

	if apierr := n.Policy.CanSee(note, actor); apierr != nil {
		return nil, apierr
	}
	return toNoteResponse(note), nil
}

func (n *DefaultNoteService) CreateNote(
	ctx context.Context,
	actor *entity.Session,
	req *contract.CreateNoteRequest,
	files []*multipart.FileHeader,
) (*contract.NoteResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if valerr := n.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	if strings.TrimSpace(req.Content) == "" && len(files) == 0 {
		return nil, apierror.EmptyNoteError
	}

	// Reject bad files before the row exists, so a failed ingestion cannot
	// leave behind a note that violates the no-empty-note invariant.
	for _, fileHeader := range files {
		if apierr := checkUploadFile(fileHeader); apierr != nil {
			return nil, apierr
		}
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = entity.VisibilityPrivate
	}

	now := utils.NowUTC()
	note := &entity.Note{
		OwnerID:      actor.UserID,
		Content:      req.Content,
		Attachments:  []entity.Attachment{},
		InlineImages: scanner.ExtractImageURLs(req.Content),
		InlineVideos: scanner.ExtractVideoURLs(req.Content),
		Visibility:   visibility,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := n.NoteRepo.Create(note); err != nil {
		log.Errorf("failed to create note: %v", err)
		return nil, apierror.InternalServerError
	}

	if apierr := n.ingestFiles(ctx, note, files); apierr != nil {
		return nil, apierr
	}

	if err := n.NoteRepo.Save(note); err != nil {
		log.Errorf("failed to save note attachments: %v", err)
		return nil, apierror.InternalServerError
	}

	if err := n.TagRepo.ReplaceForNote(note.ID, scanner.ExtractTags(note.Content)); err != nil {
		log.Errorf("failed to index tags for note %d: %v", note.ID, err)
		return nil, apierror.InternalServerError
	}
	return toNoteResponse(note), nil
}

// UpdateNote applies the patch and returns the updated note. When the patch
// empties the note entirely, the note is cascade-deleted instead of saved and
// the second return value is true.
func (n *DefaultNoteService) UpdateNote(
	ctx context.Context,
	actor *entity.Session,
	noteID int64,
	req *contract.UpdateNoteRequest,
	files []*multipart.FileHeader,
) (*contract.NoteResponse, bool, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if valerr := n.Validate.Struct(req); valerr != nil {
		return nil, false, apierror.FromValidationError(valerr)
	}

	note, err := n.NoteRepo.FindByID(noteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return nil, false, apierror.InternalServerError
	}

	if apierr := n.Policy.CanMutate(note, actor); apierr != nil {
		return nil, false, apierr
	}

	for _, fileHeader := range files {
		if apierr := checkUploadFile(fileHeader); apierr != nil {
			return nil, false, apierr
		}
	}

	contentChanged := false
	if req.Content != nil {
		note.Content = *req.Content
		contentChanged = true
	}

	// Attachment deletions are applied before emptiness is evaluated.
	for _, fileID := range req.DeleteFileIDs {
		att := note.FindAttachment(fileID)
		if att == nil {
			log.Warnf("note %d: delete requested for unknown attachment %d", note.ID, fileID)
			continue
		}
		if att.Type == entity.AttachmentTypeFile {
			if err := n.S3.Delete(ctx, storage.AttachmentKey(note.ID, fileID)); err != nil {
				log.Errorf("note %d: failed to delete blob for attachment %d: %v", note.ID, fileID, err)
			}
		}
		note.RemoveAttachment(fileID)
	}

	if contentChanged {
		note.InlineImages = scanner.ExtractImageURLs(note.Content)
		note.InlineVideos = scanner.ExtractVideoURLs(note.Content)
	}

	// A note emptied by its own update is not a valid persisted state: it is
	// deleted in its entirety, shares and all, instead of saved as a husk.
	if note.IsEmpty() && len(files) == 0 {
		if apierr := n.destroyNote(ctx, note); apierr != nil {
			return nil, false, apierr
		}
		return nil, true, nil
	}

	if apierr := n.ingestFiles(ctx, note, files); apierr != nil {
		return nil, false, apierr
	}

	if req.IsPinned != nil {
		note.IsPinned = *req.IsPinned
	}
	if req.IsFavorited != nil {
		note.IsFavorited = *req.IsFavorited
	}
	if req.IsArchived != nil {
		note.IsArchived = *req.IsArchived
	}
	if req.Visibility != nil {
		note.Visibility = *req.Visibility
	}

	if req.UpdateTimestamp == nil || *req.UpdateTimestamp {
		note.UpdatedAt = utils.NowUTC()
	}

	if err := n.NoteRepo.Save(note); err != nil {
		log.Errorf("failed to update note: %v", err)
		return nil, false, apierror.InternalServerError
	}

	if contentChanged {
		if err := n.TagRepo.ReplaceForNote(note.ID, scanner.ExtractTags(note.Content)); err != nil {
			log.Errorf("failed to index tags for note %d: %v", note.ID, err)
			return nil, false, apierror.InternalServerError
		}
	}
	return toNoteResponse(note), false, nil
}

func (n *DefaultNoteService) DeleteNote(ctx context.Context, actor *entity.Session, noteID int64) apierror.ErrorResponse {
	note, err := n.NoteRepo.FindByID(noteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return apierror.InternalServerError
	}

	if apierr := n.Policy.CanMutate(note, actor); apierr != nil {
		return apierr
	}
	return n.destroyNote(ctx, note)
}

// GetAttachment streams one attachment blob to an actor allowed to see the note.
func (n *DefaultNoteService) GetAttachment(
	ctx context.Context,
	actor *entity.Session,
	noteID, fileID int64,
) (*storage.Object, *entity.Attachment, apierror.ErrorResponse) {
	note, err := n.NoteRepo.FindByID(noteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return nil, nil, apierror.InternalServerError
	}

	if apierr := n.Policy.CanSee(note, actor); apierr != nil {
		return nil, nil, apierr
	}

	att := note.FindAttachment(fileID)
	if att == nil || att.Type != entity.AttachmentTypeFile {
		return nil, nil, apierror.NotFoundError
	}

	obj, err := n.S3.Download(ctx, storage.AttachmentKey(noteID, fileID))
	if err != nil {
		log.Errorf("failed to download attachment %d/%d: %v", noteID, fileID, err)
		return nil, nil, apierror.InternalServerError
	}
	if obj == nil {
		log.Warnf("note %d: attachment metadata points at missing blob %d", noteID, fileID)
		return nil, nil, apierror.NotFoundError
	}
	return obj, att, nil
}

// destroyNote removes the note and everything hanging off it: blobs, tag
// associations, any active share with its derived mirrors, and the row.
// Cleanup failures are logged but never block the row deletion; an orphaned
// blob beats a zombie note that cannot be removed.
func (n *DefaultNoteService) destroyNote(ctx context.Context, note *entity.Note) apierror.ErrorResponse {
	n.deleteNoteBlobs(ctx, note)

	if err := n.TagRepo.DeleteForNote(note.ID); err != nil {
		log.Errorf("failed to delete tag associations for note %d: %v", note.ID, err)
	}

	n.Shares.RevokeForNote(ctx, note.ID)

	if err := n.NoteRepo.Delete(note); err != nil {
		log.Errorf("failed to delete note %d: %v", note.ID, err)
		return apierror.InternalServerError
	}
	return nil
}

// deleteNoteBlobs removes the blobs named by the attachment list, then sweeps
// the note's key prefix for anything the metadata no longer accounts for.
func (n *DefaultNoteService) deleteNoteBlobs(ctx context.Context, note *entity.Note) {
	keys := make([]string, 0, len(note.Attachments))
	for _, att := range note.Attachments {
		if att.Type == entity.AttachmentTypeFile {
			keys = append(keys, storage.AttachmentKey(note.ID, att.ID))
		}
	}

	if len(keys) > 0 {
		if err := n.S3.Delete(ctx, keys...); err != nil {
			log.Errorf("failed to delete blobs for note %d: %v", note.ID, err)
		}
	}

	leftover, err := n.S3.ListPrefix(ctx, storage.NotePrefix(note.ID))
	if err != nil {
		log.Errorf("failed to sweep blob prefix for note %d: %v", note.ID, err)
		return
	}
	if len(leftover) > 0 {
		log.Warnf("note %d: sweeping %d blobs not covered by attachment metadata", note.ID, len(leftover))
		if err := n.S3.Delete(ctx, leftover...); err != nil {
			log.Errorf("failed to sweep blobs for note %d: %v", note.ID, err)
		}
	}
}

// ingestFiles stores every non-image upload as a note attachment. Image files
// are expected to already be referenced inline via the standalone-image path.
func (n *DefaultNoteService) ingestFiles(ctx context.Context, note *entity.Note, files []*multipart.FileHeader) apierror.ErrorResponse {
	for _, fileHeader := range files {
		if isImageFile(fileHeader) {
			continue
		}

		data, apierr := readUploadFile(fileHeader)
		if apierr != nil {
			return apierr
		}

		id := uid.Generate()
		contentType := uploadContentType(fileHeader, data)
		if err := n.S3.Upload(ctx, storage.AttachmentKey(note.ID, id), data, contentType); err != nil {
			log.Errorf("failed to upload attachment for note %d: %v", note.ID, err)
			return apierror.InternalServerError
		}

		note.Attachments = append(note.Attachments, entity.Attachment{
			Type:     entity.AttachmentTypeFile,
			ID:       id,
			Name:     fileHeader.Filename,
			Size:     fileHeader.Size,
			MimeType: contentType,
		})
	}
	return nil
}
