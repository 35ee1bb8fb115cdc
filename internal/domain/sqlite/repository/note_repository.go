package repository

import (
	"errors"

	"notekeep/internal/domain/entity"

	"gorm.io/gorm"
)

const defaultPageSize = 20

type DefaultNoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *DefaultNoteRepository {
	return &DefaultNoteRepository{db: db}
}

func (d *DefaultNoteRepository) FindByID(id int64) (*entity.Note, error) {
	var note entity.Note
	err := d.db.First(&note, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return &note, nil
}

// FindPage returns one page of the owner's notes, pinned first, newest first.
// The second return value reports whether more pages follow.
func (d *DefaultNoteRepository) FindPage(filter *entity.NoteFilter) ([]*entity.Note, bool, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := d.db.Model(&entity.Note{}).
		Where("notes.owner_id = ?", filter.OwnerID).
		Where("notes.is_archived = ?", filter.Archived)

	if filter.Favorites {
		query = query.Where("notes.is_favorited = ?", true)
	}
	if filter.From > 0 {
		query = query.Where("notes.created_at >= ?", filter.From)
	}
	if filter.To > 0 {
		query = query.Where("notes.created_at <= ?", filter.To)
	}
	if filter.Tag != "" {
		query = query.
			Joins("JOIN note_tags ON note_tags.note_id = notes.id").
			Joins("JOIN tags ON tags.id = note_tags.tag_id").
			Where("tags.name = ?", filter.Tag)
	}

	// Fetch one extra row to learn whether another page exists.
	var notes []*entity.Note
	err := query.
		Order("notes.is_pinned DESC, notes.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize + 1).
		Find(&notes).Error
	if err != nil {
		return nil, false, err
	}

	hasMore := len(notes) > pageSize
	if hasMore {
		notes = notes[:pageSize]
	}
	return notes, hasMore, nil
}

func (d *DefaultNoteRepository) Create(note *entity.Note) error {
	return d.db.Create(note).Error
}

func (d *DefaultNoteRepository) Save(note *entity.Note) error {
	return d.db.Save(note).Error
}

func (d *DefaultNoteRepository) Delete(note *entity.Note) error {
	return d.db.Delete(note).Error
}
