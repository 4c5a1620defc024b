package models

import "time"

// Book is an entry in a user's list. A nil UserID marks the shared master list.
type Book struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OLKey            string    `json:"ol_key" gorm:"column:ol_key;type:varchar(255);not null;uniqueIndex:idx_books_ol_key_user"`
	Title            string    `json:"title" gorm:"type:text;not null"`
	Author           string    `json:"author,omitempty" gorm:"type:text"`
	FirstPublishYear *int      `json:"first_publish_year,omitempty"`
	ISBN             string    `json:"isbn,omitempty" gorm:"column:isbn;type:varchar(32)"`
	UserID           *string   `json:"user_id" gorm:"type:varchar(36);uniqueIndex:idx_books_ol_key_user;index"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BookDraft carries the catalog fields of a book without identity or owner.
type BookDraft struct {
	OLKey            string `json:"ol_key"`
	Title            string `json:"title"`
	Author           string `json:"author,omitempty"`
	FirstPublishYear *int   `json:"first_publish_year,omitempty"`
	ISBN             string `json:"isbn,omitempty"`
}

// Draft returns the catalog fields of b.
func (b *Book) Draft() BookDraft {
	return BookDraft{
		OLKey:            b.OLKey,
		Title:            b.Title,
		Author:           b.Author,
		FirstPublishYear: b.FirstPublishYear,
		ISBN:             b.ISBN,
	}
}

// BookPatch is a partial update. Nil fields are left untouched.
type BookPatch struct {
	OLKey            *string `json:"ol_key"`
	Title            *string `json:"title"`
	Author           *string `json:"author"`
	FirstPublishYear *int    `json:"first_publish_year"`
	ISBN             *string `json:"isbn"`
}

// Apply copies the set fields of p onto b.
func (p BookPatch) Apply(b *Book) {
	if p.OLKey != nil {
		b.OLKey = *p.OLKey
	}
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.FirstPublishYear != nil {
		year := *p.FirstPublishYear
		b.FirstPublishYear = &year
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
}
