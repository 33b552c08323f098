package models

import (
	"time"
)

type Post struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	UserID         uint       `json:"user_id" gorm:"not null;index"`
	Content        string     `json:"content" gorm:"type:text;not null"`
	OriginalPostID *uint      `json:"original_post_id" gorm:"index"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt      *time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`

	Author *User   `json:"author,omitempty" gorm:"foreignKey:UserID"`
	Images []Image `json:"images" gorm:"foreignKey:PostID"`
}

// Image is an uploaded blob; Name is also the storage key.
type Image struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"uniqueIndex;size:40;not null"`
	UserID     uint      `json:"user_id" gorm:"not null;index"`
	PostID     *uint     `json:"post_id" gorm:"index"`
	UploadTime time.Time `json:"upload_time" gorm:"autoCreateTime"`
}

func (Post) TableName() string {
	return "posts"
}

func (Image) TableName() string {
	return "images"
}
