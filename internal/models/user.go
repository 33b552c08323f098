package models

import (
	"time"
)

type User struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Email          string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name           string     `json:"name" gorm:"size:100;not null"`
	Surname        string     `json:"surname" gorm:"size:100;not null"`
	BirthDate      *time.Time `json:"birth_date" gorm:"type:date"`
	AboutMe        string     `json:"about_me" gorm:"type:text"`
	HashedPassword string     `json:"-" gorm:"not null"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Follow is a directed edge: FollowerID follows FollowedID.
type Follow struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	FollowerID uint      `json:"follower_id" gorm:"not null;uniqueIndex:idx_follows_pair"`
	FollowedID uint      `json:"followed_id" gorm:"not null;uniqueIndex:idx_follows_pair;index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

func (Follow) TableName() string {
	return "follows"
}
