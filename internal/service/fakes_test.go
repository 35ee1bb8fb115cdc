package service

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"notekeep/internal/domain/entity"
	"notekeep/internal/domain/policy"
	"notekeep/internal/infrastructure/aws/storage"
	"notekeep/internal/infrastructure/mediaproxy"
	"notekeep/internal/utils/uid"
	"notekeep/internal/utils/validators"

	"github.com/go-playground/validator/v10"
)

func TestMain(m *testing.M) {
	uid.Init(1)
	os.Exit(m.Run())
}

func newTestValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("nodupes", validators.NoDupes)
	_ = validate.RegisterValidation("nospaces", validators.NoWhiteSpaces)
	return validate
}

type fakeNoteRepo struct {
	notes   map[int64]*entity.Note
	deleted []int64
	nextID  int64
	findErr error
}

func newFakeNoteRepo(notes ...*entity.Note) *fakeNoteRepo {
	repo := &fakeNoteRepo{notes: map[int64]*entity.Note{}, nextID: 1000}
	for _, note := range notes {
		repo.notes[note.ID] = note
	}
	return repo
}

func (r *fakeNoteRepo) FindByID(id int64) (*entity.Note, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.notes[id], nil
}

func (r *fakeNoteRepo) FindPage(filter *entity.NoteFilter) ([]*entity.Note, bool, error) {
	out := []*entity.Note{}
	for _, note := range r.notes {
		if note.OwnerID == filter.OwnerID {
			out = append(out, note)
		}
	}
	return out, false, nil
}

func (r *fakeNoteRepo) Create(note *entity.Note) error {
	if note.ID == 0 {
		r.nextID++
		note.ID = r.nextID
	}
	r.notes[note.ID] = note
	return nil
}

func (r *fakeNoteRepo) Save(note *entity.Note) error {
	r.notes[note.ID] = note
	return nil
}

func (r *fakeNoteRepo) Delete(note *entity.Note) error {
	delete(r.notes, note.ID)
	r.deleted = append(r.deleted, note.ID)
	return nil
}

type fakeTagRepo struct {
	byNote  map[int64][]string
	deleted []int64
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{byNote: map[int64][]string{}}
}

func (r *fakeTagRepo) ReplaceForNote(noteID int64, names []string) error {
	r.byNote[noteID] = names
	return nil
}

func (r *fakeTagRepo) DeleteForNote(noteID int64) error {
	delete(r.byNote, noteID)
	r.deleted = append(r.deleted, noteID)
	return nil
}

type fakeBlob struct {
	data        []byte
	contentType string
}

type fakeBlobStore struct {
	blobs    map[string]fakeBlob
	failCopy map[string]bool
	uploads  []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string]fakeBlob{}, failCopy: map[string]bool{}}
}

func (s *fakeBlobStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.blobs[key] = fakeBlob{data: data, contentType: contentType}
	s.uploads = append(s.uploads, key)
	return nil
}

func (s *fakeBlobStore) Download(ctx context.Context, key string) (*storage.Object, error) {
	blob, ok := s.blobs[key]
	if !ok {
		return nil, nil
	}
	return &storage.Object{Data: blob.data, ContentType: blob.contentType, Length: int64(len(blob.data))}, nil
}

func (s *fakeBlobStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.blobs, key)
	}
	return nil
}

func (s *fakeBlobStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *fakeBlobStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if s.failCopy[srcKey] {
		return fmt.Errorf("copy refused for %s", srcKey)
	}
	blob, ok := s.blobs[srcKey]
	if !ok {
		return fmt.Errorf("no such key %s", srcKey)
	}
	s.blobs[dstKey] = blob
	return nil
}

func (s *fakeBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.blobs[key]
	return ok, nil
}

type fakeEntry struct {
	value string
	ttl   time.Duration
}

type fakeShareStore struct {
	entries map[string]fakeEntry
	sets    int
}

func newFakeShareStore() *fakeShareStore {
	return &fakeShareStore{entries: map[string]fakeEntry{}}
}

func (s *fakeShareStore) Get(ctx context.Context, key string) (string, error) {
	return s.entries[key].value, nil
}

func (s *fakeShareStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.entries[key] = fakeEntry{value: value, ttl: ttl}
	s.sets++
	return nil
}

func (s *fakeShareStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	entry, ok := s.entries[key]
	if !ok {
		return 0, false, nil
	}
	if entry.ttl <= 0 {
		return 0, true, nil
	}
	return entry.ttl, true, nil
}

func (s *fakeShareStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func (s *fakeShareStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

type fakeFetcher struct {
	files map[string]*mediaproxy.File
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*mediaproxy.File, error) {
	file, ok := f.files[url]
	if !ok {
		return nil, mediaproxy.ErrNotFound
	}
	return file, nil
}

type env struct {
	noteRepo *fakeNoteRepo
	tagRepo  *fakeTagRepo
	blobs    *fakeBlobStore
	store    *fakeShareStore
	fetcher  *fakeFetcher
	shares   *DefaultShareService
	notes    *DefaultNoteService
	merge    *DefaultMergeService
}

func newEnv(notes ...*entity.Note) *env {
	validate := newTestValidator()
	notePolicy := policy.NewNotePolicy()
	noteRepo := newFakeNoteRepo(notes...)
	tagRepo := newFakeTagRepo()
	blobs := newFakeBlobStore()
	store := newFakeShareStore()
	fetcher := &fakeFetcher{files: map[string]*mediaproxy.File{}}

	shares := NewShareService(noteRepo, store, blobs, fetcher, notePolicy, validate, &ShareConfig{
		PublicBaseURL: "https://notes.example.com",
		ProxyBaseURL:  "https://media.example.com",
	})
	return &env{
		noteRepo: noteRepo,
		tagRepo:  tagRepo,
		blobs:    blobs,
		store:    store,
		fetcher:  fetcher,
		shares:   shares,
		notes:    NewNoteService(noteRepo, tagRepo, blobs, shares, notePolicy, validate),
		merge:    NewMergeService(noteRepo, tagRepo, blobs, shares, notePolicy, validate),
	}
}

func ownerSession() *entity.Session {
	return &entity.Session{UserID: 10}
}

func makeFileHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write multipart part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	reader := multipart.NewReader(buf, writer.Boundary())
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("failed to read multipart form: %v", err)
	}
	return form.File["files"][0]
}
