package repository

import (
	"notekeep/internal/domain/entity"

	"gorm.io/gorm"
)

type DefaultTagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *DefaultTagRepository {
	return &DefaultTagRepository{db: db}
}

// ReplaceForNote drops every association the note has and rebuilds the set
// from names, upserting missing tags into the vocabulary. Full replacement
// trades write amplification for correctness: no stale-tag bugs from diffing.
func (d *DefaultTagRepository) ReplaceForNote(noteID int64, names []string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("note_id = ?", noteID).Delete(&entity.NoteTag{}).Error
		if err != nil {
			return err
		}

		for _, name := range names {
			var tag entity.Tag
			err = tx.Where(entity.Tag{Name: name}).FirstOrCreate(&tag).Error
			if err != nil {
				return err
			}

			err = tx.Create(&entity.NoteTag{NoteID: noteID, TagID: tag.ID}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DefaultTagRepository) DeleteForNote(noteID int64) error {
	return d.db.Where("note_id = ?", noteID).Delete(&entity.NoteTag{}).Error
}

// FindNamesForNote returns the note's tag names sorted by vocabulary id.
func (d *DefaultTagRepository) FindNamesForNote(noteID int64) ([]string, error) {
	names := []string{}
	err := d.db.Model(&entity.Tag{}).
		Joins("JOIN note_tags ON note_tags.tag_id = tags.id").
		Where("note_tags.note_id = ?", noteID).
		Order("tags.id").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}
