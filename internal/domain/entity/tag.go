package entity

// Tag names are lowercase slugs, unique across the store.
type Tag struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"not null;uniqueIndex"`
}

// NoteTag is the note<->tag association. It is fully replaced, never diffed,
// on every content mutation of its owning note.
type NoteTag struct {
	NoteID int64 `gorm:"primaryKey"`
	TagID  int64 `gorm:"primaryKey"`
}
