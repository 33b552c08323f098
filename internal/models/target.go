package models

import (
	"fmt"
)

// TargetType is the persisted tag of a commentable/likeable entity.
// The values are stored in comments.commentable_type and likes.entity_type
// and must never change.
type TargetType string

const (
	TargetPost  TargetType = "post"
	TargetImage TargetType = "image"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetPost, TargetImage:
		return true
	}
	return false
}

// TargetRef is the (type, id) pair stored on comments and likes.
type TargetRef struct {
	Type TargetType `json:"type"`
	ID   uint       `json:"id"`
}

func (r TargetRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// Target is implemented only by *Post and *Image.
type Target interface {
	TargetRef() TargetRef
	isTarget()
}

func (p *Post) TargetRef() TargetRef {
	return TargetRef{Type: TargetPost, ID: p.ID}
}

func (*Post) isTarget() {}

func (i *Image) TargetRef() TargetRef {
	return TargetRef{Type: TargetImage, ID: i.ID}
}

func (*Image) isTarget() {}
