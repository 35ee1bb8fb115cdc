package service

import (
	"context"
	"strings"

	"notekeep/internal/contract"
	"notekeep/internal/domain/entity"
	"notekeep/internal/domain/policy"
	"notekeep/internal/domain/scanner"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/utils"
	"notekeep/internal/utils/apierror"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
)

const mergeSeparator = "\n\n---\n\n"

type DefaultMergeService struct {
	NoteRepo NoteRepository
	TagRepo  TagRepository
	S3       storage.S3Client
	Shares   *DefaultShareService
	Policy   *policy.NotePolicy
	Validate *validator.Validate
}

func NewMergeService(
	noteRepo NoteRepository,
	tagRepo TagRepository,
	s3 storage.S3Client,
	shares *DefaultShareService,
	notePolicy *policy.NotePolicy,
	validate *validator.Validate,
) *DefaultMergeService {
	return &DefaultMergeService{
		NoteRepo: noteRepo,
		TagRepo:  tagRepo,
		S3:       s3,
		Shares:   shares,
		Policy:   notePolicy,
		Validate: validate,
	}
}

// Merge folds the source note into the target and retires the source. Blob
// moves are idempotent and best-effort: an attachment whose blob cannot be
// moved is dropped from the result rather than failing the whole merge, since
// a harmless orphaned blob beats an aborted operation. The target row update
// is the single atomic step that commits the merge's visible effect.
func (m *DefaultMergeService) Merge(ctx context.Context, actor *entity.Session, req *contract.MergeNotesRequest) (*contract.NoteResponse, apierror.ErrorResponse) {
	if valerr := m.Validate.Struct(req); valerr != nil {
		return nil, apierror.FromValidationError(valerr)
	}

	if req.SourceID == req.TargetID {
		return nil, apierror.SameNoteMergeError
	}

	source, err := m.NoteRepo.FindByID(req.SourceID)
	if err != nil {
		log.Errorf("failed to fetch merge source: %v", err)
		return nil, apierror.InternalServerError
	}
	target, err := m.NoteRepo.FindByID(req.TargetID)
	if err != nil {
		log.Errorf("failed to fetch merge target: %v", err)
		return nil, apierror.InternalServerError
	}

	if source == nil || target == nil {
		return nil, apierror.MergeMissingNoteError
	}

	if apierr := m.Policy.CanMutate(source, actor); apierr != nil {
		return nil, apierr
	}
	if apierr := m.Policy.CanMutate(target, actor); apierr != nil {
		return nil, apierr
	}

	separator := "\n\n"
	if req.AddSeparator {
		separator = mergeSeparator
	}
	merged := target.Content + separator + source.Content

	var rewrites [][2]string
	var failed []string
	for _, att := range source.Attachments {
		if att.Type == entity.AttachmentTypeProxy {
			target.Attachments = append(target.Attachments, att)
			continue
		}

		srcKey := storage.AttachmentKey(source.ID, att.ID)
		dstKey := storage.AttachmentKey(target.ID, att.ID)
		if err := m.moveBlob(ctx, srcKey, dstKey); err != nil {
			log.Errorf("merge %d->%d: dropping attachment %d, blob move failed: %v",
				source.ID, target.ID, att.ID, err)
			failed = append(failed, attachmentPath(source.ID, att.ID))
			continue
		}

		oldPath := attachmentPath(source.ID, att.ID)
		newPath := attachmentPath(target.ID, att.ID)
		merged = strings.ReplaceAll(merged, oldPath, newPath)
		rewrites = append(rewrites, [2]string{oldPath, newPath})
		target.Attachments = append(target.Attachments, att)
	}

	target.Content = merged
	target.InlineImages = mergeInlineURLs(target.InlineImages, source.InlineImages, rewrites, failed)
	target.InlineVideos = mergeInlineURLs(target.InlineVideos, source.InlineVideos, rewrites, failed)
	target.UpdatedAt = utils.NowUTC()

	if err := m.NoteRepo.Save(target); err != nil {
		log.Errorf("failed to save merged note: %v", err)
		return nil, apierror.InternalServerError
	}

	if err := m.TagRepo.ReplaceForNote(target.ID, scanner.ExtractTags(target.Content)); err != nil {
		log.Errorf("failed to index tags for merged note %d: %v", target.ID, err)
		return nil, apierror.InternalServerError
	}

	// Retire the source. Its share, if any, is revoked here rather than left
	// as a live public link pointing at a deleted note id.
	m.Shares.RevokeForNote(ctx, source.ID)

	if err := m.TagRepo.DeleteForNote(source.ID); err != nil {
		log.Errorf("failed to delete tag associations for merged-away note %d: %v", source.ID, err)
	}
	if err := m.NoteRepo.Delete(source); err != nil {
		log.Errorf("failed to delete merged-away note %d: %v", source.ID, err)
		return nil, apierror.InternalServerError
	}

	return toNoteResponse(target), nil
}

// moveBlob relocates one blob between note namespaces. If the destination
// already exists the copy step is skipped: a crashed earlier merge may have
// copied but not yet cleaned up, and the retry must not fail or duplicate.
func (m *DefaultMergeService) moveBlob(ctx context.Context, srcKey, dstKey string) error {
	exists, err := m.S3.Exists(ctx, dstKey)
	if err != nil {
		return err
	}

	if !exists {
		if err := m.S3.Copy(ctx, srcKey, dstKey); err != nil {
			return err
		}
	}

	// The source is removed only once the copy is known good. A failed
	// cleanup leaves a harmless orphan, not a lost attachment.
	if err := m.S3.Delete(ctx, srcKey); err != nil {
		log.Warnf("failed to delete source blob %s after move: %v", srcKey, err)
	}
	return nil
}

// mergeInlineURLs unions the target's inline list with the source's, applying
// path rewrites from successful blob moves and dropping URLs whose blob failed
// to move.
func mergeInlineURLs(target, source []string, rewrites [][2]string, failed []string) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(url string) {
		if url != "" && !seen[url] {
			seen[url] = true
			out = append(out, url)
		}
	}

	for _, url := range target {
		add(url)
	}

	for _, url := range source {
		dropped := false
		for _, path := range failed {
			if strings.Contains(url, path) {
				dropped = true
				break
			}
		}
		if dropped {
			continue
		}

		for _, rewrite := range rewrites {
			url = strings.ReplaceAll(url, rewrite[0], rewrite[1])
		}
		add(url)
	}
	return out
}
