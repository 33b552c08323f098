package models

import (
	"time"
)

type Comment struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Text            string     `json:"text" gorm:"type:text;not null"`
	UserID          uint       `json:"user_id" gorm:"not null;index"`
	CommentableType TargetType `json:"commentable_type" gorm:"size:20;not null;index:idx_comments_target"`
	CommentableID   uint       `json:"commentable_id" gorm:"not null;index:idx_comments_target"`
	ParentCommentID *uint      `json:"parent_comment_id" gorm:"index"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`

	// Children is assembled from flat rows by the repository.
	Children []*Comment `json:"child_comments" gorm:"-"`
}

func (c *Comment) Target() TargetRef {
	return TargetRef{Type: c.CommentableType, ID: c.CommentableID}
}

type Like struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UserID     uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_likes_user_target"`
	EntityType TargetType `json:"entity_type" gorm:"size:20;not null;uniqueIndex:idx_likes_user_target;index:idx_likes_target"`
	EntityID   uint       `json:"entity_id" gorm:"not null;uniqueIndex:idx_likes_user_target;index:idx_likes_target"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (l *Like) Target() TargetRef {
	return TargetRef{Type: l.EntityType, ID: l.EntityID}
}

func (Comment) TableName() string {
	return "comments"
}

func (Like) TableName() string {
	return "likes"
}
