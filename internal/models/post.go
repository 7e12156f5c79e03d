package models

import (
	"fmt"
	"time"
)

// Post is an article written by exactly one User. The author never changes
// after creation.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:140;not null;check:title <> ''" json:"title"`
	Content   string    `gorm:"type:text;not null;check:content <> ''" json:"content"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Author    *User     `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"author,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (p *Post) String() string {
	return fmt.Sprintf("<Post '%s'>", p.Title)
}
