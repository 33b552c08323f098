package repository

import (
	"fmt"

	"github.com/social-feed/social-feed/internal/models"
	"gorm.io/gorm"
)

// Helpers shared by the cascading deletes. They all run on a transaction handle.

// commentSubtreeIDs returns roots plus every reply below them.
func commentSubtreeIDs(tx *gorm.DB, roots []uint) ([]uint, error) {
	all := append([]uint(nil), roots...)
	frontier := roots
	for len(frontier) > 0 {
		var next []uint
		if err := tx.Model(&models.Comment{}).
			Where("parent_comment_id IN ?", frontier).
			Pluck("id", &next).Error; err != nil {
			return nil, fmt.Errorf("failed to collect replies: %w", err)
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

func deleteCommentTrees(tx *gorm.DB, roots []uint) error {
	if len(roots) == 0 {
		return nil
	}
	ids, err := commentSubtreeIDs(tx, roots)
	if err != nil {
		return err
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	return nil
}

// deleteSocialFor removes comments and likes attached to the given targets.
// Replies always share their parent's target, so one pass covers them.
func deleteSocialFor(tx *gorm.DB, targetType models.TargetType, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("commentable_type = ? AND commentable_id IN ?", targetType, ids).
		Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("failed to delete %s comments: %w", targetType, err)
	}
	if err := tx.Where("entity_type = ? AND entity_id IN ?", targetType, ids).
		Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("failed to delete %s likes: %w", targetType, err)
	}
	return nil
}

// detachReposts clears original_post_id on posts that repost a deleted post.
func detachReposts(tx *gorm.DB, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	if err := tx.Model(&models.Post{}).
		Where("original_post_id IN ?", postIDs).
		Update("original_post_id", nil).Error; err != nil {
		return fmt.Errorf("failed to detach reposts: %w", err)
	}
	return nil
}
