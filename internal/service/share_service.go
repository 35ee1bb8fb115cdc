package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"notekeep/internal/contract"
	"notekeep/internal/domain/entity"
	"notekeep/internal/domain/policy"
	"notekeep/internal/domain/scanner"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/infrastructure/mediaproxy"
	"notekeep/internal/utils"
	"notekeep/internal/utils/apierror"
	"notekeep/internal/utils/uid"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// ShareStore is the ephemeral TTL key-value store backing all share records.
// Expiry is enforced entirely by the store: an expired share and a
// never-created one both present as a plain miss.
type ShareStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Delete(ctx context.Context, keys ...string) error
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}

type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (*mediaproxy.File, error)
}

// ShareConfig carries the values the share layer used to read from ambient
// state; they are injected explicitly instead.
type ShareConfig struct {
	// PublicBaseURL prefixes every link handed out to users.
	PublicBaseURL string
	// ProxyBaseURL marks externally hosted media (e.g. the Telegram bridge's
	// CDN mirror) that public views must serve through the proxy path.
	// Empty disables proxy classification.
	ProxyBaseURL string
}

type DefaultShareService struct {
	NoteRepo NoteRepository
	Store    ShareStore
	S3       storage.S3Client
	Proxy    MediaFetcher
	Policy   *policy.NotePolicy
	Validate *validator.Validate
	Config   *ShareConfig
}

func NewShareService(
	noteRepo NoteRepository,
	store ShareStore,
	s3 storage.S3Client,
	proxy MediaFetcher,
	notePolicy *policy.NotePolicy,
	validate *validator.Validate,
	config *ShareConfig,
) *DefaultShareService {
	return &DefaultShareService{
		NoteRepo: noteRepo,
		Store:    store,
		S3:       s3,
		Proxy:    proxy,
		Policy:   notePolicy,
		Validate: validate,
		Config:   config,
	}
}

// PublicFileContent is a resolved public file ready to stream.
type PublicFileContent struct {
	Data        []byte
	ContentType string
	FileName    string
}

func noteShareKey(noteID int64) string {
	return fmt.Sprintf("share:note:%d", noteID)
}

func memoKey(publicID string) string {
	return "share:memo:" + publicID
}

func fileCachePrefix(publicID string) string {
	return "share:filekey:" + publicID + ":"
}

func fileCacheKey(publicID, urlHash string) string {
	return fileCachePrefix(publicID) + urlHash
}

func publicFileKey(publicFileID string) string {
	return "share:file:" + publicFileID
}

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}

func ttlFromSeconds(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

// ShareNote returns the note's public share, creating it with the given TTL
// if none exists. An existing share is returned unchanged: share is an
// idempotent get-or-create, never a renewal.
func (s *DefaultShareService) ShareNote(ctx context.Context, actor *entity.Session, noteID int64, ttlSeconds int64) (*contract.ShareNoteResponse, apierror.ErrorResponse) {
	note, err := s.NoteRepo.FindByID(noteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return nil, apierror.InternalServerError
	}

	if apierr := s.Policy.CanMutate(note, actor); apierr != nil {
		return nil, apierr
	}

	publicID, apierr := s.ensureShare(ctx, noteID, ttlSeconds)
	if apierr != nil {
		return nil, apierr
	}
	return s.shareResponse(publicID), nil
}

// RenewShare rewrites an existing share with a new TTL. Renewing a share that
// does not exist (or has already expired) is an error, not an implicit create.
// Derived per-file mirrors are not retroactively extended: they are deleted
// here and lazily rebuilt at the new TTL on next access.
func (s *DefaultShareService) RenewShare(ctx context.Context, actor *entity.Session, noteID int64, publicID string, ttlSeconds int64) apierror.ErrorResponse {
	note, err := s.NoteRepo.FindByID(noteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return apierror.InternalServerError
	}

	if apierr := s.Policy.CanMutate(note, actor); apierr != nil {
		return apierr
	}

	memoVal, err := s.Store.Get(ctx, memoKey(publicID))
	if err != nil {
		log.Errorf("failed to look up share %s: %v", publicID, err)
		return apierror.InternalServerError
	}
	if memoVal == "" {
		return apierror.ShareNotFoundError
	}

	var memo entity.PublicMemo
	if err := json.Unmarshal([]byte(memoVal), &memo); err != nil || memo.NoteID != noteID {
		return apierror.ShareNotFoundError
	}

	ttl := ttlFromSeconds(ttlSeconds)
	if err := s.Store.Set(ctx, memoKey(publicID), memoVal, ttl); err != nil {
		log.Errorf("failed to renew share memo %s: %v", publicID, err)
		return apierror.InternalServerError
	}
	if err := s.Store.Set(ctx, noteShareKey(noteID), publicID, ttl); err != nil {
		log.Errorf("failed to renew note share %d: %v", noteID, err)
		return apierror.InternalServerError
	}

	s.sweepDerived(ctx, publicID)
	return nil
}

// RevokeShare removes the note's share and every derived public-file mirror.
func (s *DefaultShareService) RevokeShare(ctx context.Context, actor *entity.Session, noteID int64) apierror.ErrorResponse {
	note, err := s.NoteRepo.FindByID(noteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return apierror.InternalServerError
	}

	if apierr := s.Policy.CanMutate(note, actor); apierr != nil {
		return apierr
	}

	publicID, err := s.Store.Get(ctx, noteShareKey(noteID))
	if err != nil {
		log.Errorf("failed to look up share for note %d: %v", noteID, err)
		return apierror.InternalServerError
	}
	if publicID == "" {
		return apierror.ShareNotFoundError
	}

	s.revoke(ctx, noteID, publicID)
	return nil
}

// RevokeForNote is the cascade entry point used by note deletion and merge.
// A missing share is fine; cleanup failures are logged, never propagated.
func (s *DefaultShareService) RevokeForNote(ctx context.Context, noteID int64) {
	publicID, err := s.Store.Get(ctx, noteShareKey(noteID))
	if err != nil {
		log.Errorf("failed to look up share for note %d: %v", noteID, err)
		return
	}
	if publicID == "" {
		return
	}
	s.revoke(ctx, noteID, publicID)
}

// ShareFile hands out a public link to a single attachment, minting the
// note's share first if none exists.
func (s *DefaultShareService) ShareFile(ctx context.Context, actor *entity.Session, noteID, fileID int64) (*contract.FileShareResponse, apierror.ErrorResponse) {
	note, err := s.NoteRepo.FindByID(noteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return nil, apierror.InternalServerError
	}

	if apierr := s.Policy.CanMutate(note, actor); apierr != nil {
		return nil, apierr
	}

	att := note.FindAttachment(fileID)
	if att == nil || att.Type != entity.AttachmentTypeFile {
		return nil, apierror.NotFoundError
	}

	publicID, apierr := s.ensureShare(ctx, noteID, contract.DefaultShareTTLSeconds)
	if apierr != nil {
		return nil, apierr
	}

	publicFileID, apierr := s.materialize(ctx, publicID, attachmentPath(noteID, fileID), note)
	if apierr != nil {
		return nil, apierr
	}
	if publicFileID == "" {
		return nil, apierror.InternalServerError
	}

	return &contract.FileShareResponse{
		URL: s.Config.PublicBaseURL + publicFilePath(publicFileID),
	}, nil
}

// GetPublicNote renders the unauthenticated view of a shared note: every
// private-resource URL in the content and attachment list is materialized as
// a public mirror and rewritten. The note record itself is never mutated.
func (s *DefaultShareService) GetPublicNote(ctx context.Context, publicID string) (*contract.PublicNoteResponse, apierror.ErrorResponse) {
	memoVal, err := s.Store.Get(ctx, memoKey(publicID))
	if err != nil {
		log.Errorf("failed to look up share %s: %v", publicID, err)
		return nil, apierror.InternalServerError
	}
	if memoVal == "" {
		return nil, apierror.ShareNotFoundError
	}

	var memo entity.PublicMemo
	if err := json.Unmarshal([]byte(memoVal), &memo); err != nil {
		log.Errorf("malformed share memo %s: %v", publicID, err)
		return nil, apierror.ShareNotFoundError
	}

	note, err := s.NoteRepo.FindByID(memo.NoteID)
	if err != nil {
		log.Errorf("failed to fetch note: %v", err)
		return nil, apierror.InternalServerError
	}
	if note == nil {
		log.Warnf("share %s points at deleted note %d", publicID, memo.NoteID)
		return nil, apierror.ShareNotFoundError
	}

	content := note.Content
	for _, privateURL := range s.collectPrivateURLs(content) {
		publicFileID, apierr := s.materialize(ctx, publicID, privateURL, note)
		if apierr != nil {
			return nil, apierr
		}
		if publicFileID == "" {
			continue // not a private resource, leave it alone
		}
		content = strings.ReplaceAll(content, privateURL, s.Config.PublicBaseURL+publicFilePath(publicFileID))
	}

	attachments := []*contract.PublicAttachmentResponse{}
	for _, att := range note.Attachments {
		privateURL := ""
		switch att.Type {
		case entity.AttachmentTypeFile:
			privateURL = attachmentPath(note.ID, att.ID)
		case entity.AttachmentTypeProxy:
			privateURL = att.ExternalID
		}

		publicFileID, apierr := s.materialize(ctx, publicID, privateURL, note)
		if apierr != nil {
			return nil, apierr
		}
		if publicFileID == "" {
			continue
		}

		attachments = append(attachments, &contract.PublicAttachmentResponse{
			Name:      att.Name,
			Size:      att.Size,
			MimeType:  att.MimeType,
			PublicURL: s.Config.PublicBaseURL + publicFilePath(publicFileID),
		})
	}

	return &contract.PublicNoteResponse{
		Content:     content,
		Attachments: attachments,
		CreatedAt:   utils.FormatEpoch(note.CreatedAt),
		UpdatedAt:   utils.FormatEpoch(note.UpdatedAt),
	}, nil
}

// GetPublicFile resolves a public file id minted by materialize and returns
// its bytes, wherever the locator points.
func (s *DefaultShareService) GetPublicFile(ctx context.Context, publicFileID string) (*PublicFileContent, apierror.ErrorResponse) {
	val, err := s.Store.Get(ctx, publicFileKey(publicFileID))
	if err != nil {
		log.Errorf("failed to look up public file %s: %v", publicFileID, err)
		return nil, apierror.InternalServerError
	}
	if val == "" {
		return nil, apierror.NotFoundError
	}

	var file entity.PublicFile
	if err := json.Unmarshal([]byte(val), &file); err != nil {
		log.Errorf("malformed public file record %s: %v", publicFileID, err)
		return nil, apierror.NotFoundError
	}

	switch file.Locator {
	case entity.LocatorAttachment, entity.LocatorUpload:
		obj, err := s.S3.Download(ctx, file.Key)
		if err != nil {
			log.Errorf("failed to download public file %s: %v", publicFileID, err)
			return nil, apierror.InternalServerError
		}
		if obj == nil {
			return nil, apierror.NotFoundError
		}

		contentType := file.ContentType
		if contentType == "" {
			contentType = obj.ContentType
		}
		return &PublicFileContent{Data: obj.Data, ContentType: contentType, FileName: file.FileName}, nil

	case entity.LocatorProxy:
		fetched, err := s.Proxy.Fetch(ctx, file.Key)
		if errors.Is(err, mediaproxy.ErrNotFound) {
			return nil, apierror.NotFoundError
		}
		if err != nil {
			log.Errorf("failed to proxy public file %s: %v", publicFileID, err)
			return nil, apierror.InternalServerError
		}
		return &PublicFileContent{Data: fetched.Data, ContentType: fetched.ContentType, FileName: file.FileName}, nil

	default:
		log.Errorf("public file %s has unknown locator %q", publicFileID, file.Locator)
		return nil, apierror.NotFoundError
	}
}

// MaterializePublicResource mints (or returns the cached) public mirror id
// for a private resource URL under the given share. Unrecognized URLs yield
// an empty id so callers can leave them unchanged.
func (s *DefaultShareService) MaterializePublicResource(ctx context.Context, publicID, privateURL string) (string, apierror.ErrorResponse) {
	return s.materialize(ctx, publicID, privateURL, nil)
}

func (s *DefaultShareService) ensureShare(ctx context.Context, noteID int64, ttlSeconds int64) (string, apierror.ErrorResponse) {
	existing, err := s.Store.Get(ctx, noteShareKey(noteID))
	if err != nil {
		log.Errorf("failed to look up share for note %d: %v", noteID, err)
		return "", apierror.InternalServerError
	}
	if existing != "" {
		return existing, nil
	}

	publicID := uuid.NewString()
	memoJSON, _ := json.Marshal(entity.PublicMemo{NoteID: noteID})
	ttl := ttlFromSeconds(ttlSeconds)

	if err := s.Store.Set(ctx, memoKey(publicID), string(memoJSON), ttl); err != nil {
		log.Errorf("failed to store share memo for note %d: %v", noteID, err)
		return "", apierror.InternalServerError
	}
	if err := s.Store.Set(ctx, noteShareKey(noteID), publicID, ttl); err != nil {
		log.Errorf("failed to store note share %d: %v", noteID, err)
		return "", apierror.InternalServerError
	}
	return publicID, nil
}

func (s *DefaultShareService) revoke(ctx context.Context, noteID int64, publicID string) {
	if err := s.Store.Delete(ctx, noteShareKey(noteID), memoKey(publicID)); err != nil {
		log.Errorf("failed to delete share records for note %d: %v", noteID, err)
	}
	s.sweepDerived(ctx, publicID)
}

// sweepDerived bulk-deletes every PublicFile/cache-key pair scoped to the
// share, via a prefix scan of the dedup keys.
func (s *DefaultShareService) sweepDerived(ctx context.Context, publicID string) {
	cacheKeys, err := s.Store.ScanPrefix(ctx, fileCachePrefix(publicID))
	if err != nil {
		log.Errorf("failed to scan derived mirrors for share %s: %v", publicID, err)
		return
	}
	if len(cacheKeys) == 0 {
		return
	}

	doomed := make([]string, 0, len(cacheKeys)*2)
	for _, cacheKey := range cacheKeys {
		publicFileID, err := s.Store.Get(ctx, cacheKey)
		if err != nil {
			log.Errorf("failed to resolve derived mirror %s: %v", cacheKey, err)
			continue
		}
		if publicFileID != "" {
			doomed = append(doomed, publicFileKey(publicFileID))
		}
	}
	doomed = append(doomed, cacheKeys...)

	if err := s.Store.Delete(ctx, doomed...); err != nil {
		log.Errorf("failed to sweep derived mirrors for share %s: %v", publicID, err)
	}
}

// materialize implements the lazy mirror creation: dedup lookup first, then a
// fresh PublicFile whose TTL is capped to the parent share's remaining TTL at
// this instant. The note, when provided, enriches attachment locators with
// file name and content type.
func (s *DefaultShareService) materialize(ctx context.Context, publicID, privateURL string, note *entity.Note) (string, apierror.ErrorResponse) {
	if privateURL == "" {
		return "", nil
	}

	cacheKey := fileCacheKey(publicID, hashURL(privateURL))
	if existing, err := s.Store.Get(ctx, cacheKey); err != nil {
		log.Errorf("failed to look up mirror cache for share %s: %v", publicID, err)
		return "", apierror.InternalServerError
	} else if existing != "" {
		return existing, nil
	}

	file, ok := s.classify(privateURL, note)
	if !ok {
		return "", nil
	}

	ttl, alive, err := s.Store.TTL(ctx, memoKey(publicID))
	if err != nil {
		log.Errorf("failed to read remaining TTL for share %s: %v", publicID, err)
		return "", apierror.InternalServerError
	}
	if !alive {
		return "", apierror.ShareNotFoundError
	}

	publicFileID := strconv.FormatInt(uid.Generate(), 10)
	fileJSON, _ := json.Marshal(file)

	if err := s.Store.Set(ctx, publicFileKey(publicFileID), string(fileJSON), ttl); err != nil {
		log.Errorf("failed to store public file for share %s: %v", publicID, err)
		return "", apierror.InternalServerError
	}
	if err := s.Store.Set(ctx, cacheKey, publicFileID, ttl); err != nil {
		log.Errorf("failed to store mirror cache key for share %s: %v", publicID, err)
		return "", apierror.InternalServerError
	}
	return publicFileID, nil
}

// classify decides what kind of private resource a URL names. Unrecognized
// URLs are not an error: not every inline URL is private.
func (s *DefaultShareService) classify(privateURL string, note *entity.Note) (entity.PublicFile, bool) {
	if match := attachmentPathRegex.FindStringSubmatch(privateURL); match != nil {
		noteID, _ := strconv.ParseInt(match[1], 10, 64)
		fileID, _ := strconv.ParseInt(match[2], 10, 64)
		file := entity.PublicFile{
			Locator: entity.LocatorAttachment,
			Key:     storage.AttachmentKey(noteID, fileID),
		}
		if note != nil && note.ID == noteID {
			if att := note.FindAttachment(fileID); att != nil {
				file.FileName = att.Name
				file.ContentType = att.MimeType
			}
		}
		return file, true
	}

	if match := uploadPathRegex.FindStringSubmatch(privateURL); match != nil {
		id, _ := strconv.ParseInt(match[1], 10, 64)
		return entity.PublicFile{
			Locator: entity.LocatorUpload,
			Key:     storage.UploadKey(id),
		}, true
	}

	if s.Config.ProxyBaseURL != "" && strings.HasPrefix(privateURL, s.Config.ProxyBaseURL) {
		return entity.PublicFile{
			Locator: entity.LocatorProxy,
			Key:     privateURL,
		}, true
	}

	return entity.PublicFile{}, false
}

// collectPrivateURLs gathers every distinct private-resource URL mentioned in
// the content: attachment and upload paths plus proxy-prefixed inline media.
func (s *DefaultShareService) collectPrivateURLs(content string) []string {
	urls := []string{}
	seen := map[string]bool{}
	add := func(url string) {
		if url != "" && !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}

	for _, url := range attachmentPathRegex.FindAllString(content, -1) {
		add(url)
	}
	for _, url := range uploadPathRegex.FindAllString(content, -1) {
		add(url)
	}

	if s.Config.ProxyBaseURL != "" {
		inline := append(scanner.ExtractImageURLs(content), scanner.ExtractVideoURLs(content)...)
		for _, url := range inline {
			if strings.HasPrefix(url, s.Config.ProxyBaseURL) {
				add(url)
			}
		}
	}
	return urls
}

func (s *DefaultShareService) shareResponse(publicID string) *contract.ShareNoteResponse {
	return &contract.ShareNoteResponse{
		PublicID:   publicID,
		DisplayURL: s.Config.PublicBaseURL + "/s/" + publicID,
		RawURL:     s.Config.PublicBaseURL + "/public/note/" + publicID,
	}
}

func publicFilePath(publicFileID string) string {
	return "/public/file/" + publicFileID
}
