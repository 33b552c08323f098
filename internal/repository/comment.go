package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/social-feed/social-feed/internal/models"
	"gorm.io/gorm"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetByID loads a single row without replies.
func (r *CommentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &comment, nil
}

// GetWithReplies loads the comment and its full reply tree.
func (r *CommentRepository) GetWithReplies(ctx context.Context, id uint) (*models.Comment, error) {
	root, err := r.GetByID(ctx, id)
	if err != nil || root == nil {
		return root, err
	}

	byID, _, err := r.loadTree(ctx, root.Target())
	if err != nil {
		return nil, err
	}
	if c, ok := byID[id]; ok {
		return c, nil
	}
	return root, nil
}

// ListTopLevel returns the comments on target that have no parent, each
// with its reply tree, in insertion order.
func (r *CommentRepository) ListTopLevel(ctx context.Context, target models.TargetRef) ([]*models.Comment, error) {
	_, roots, err := r.loadTree(ctx, target)
	return roots, err
}

// loadTree reads all comments of a target once and links them by parent id.
func (r *CommentRepository) loadTree(ctx context.Context, target models.TargetRef) (map[uint]*models.Comment, []*models.Comment, error) {
	var flat []*models.Comment
	if err := r.db.WithContext(ctx).
		Where("commentable_type = ? AND commentable_id = ?", target.Type, target.ID).
		Order("id").
		Find(&flat).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to list comments: %w", err)
	}

	byID := make(map[uint]*models.Comment, len(flat))
	for _, c := range flat {
		c.Children = []*models.Comment{}
		byID[c.ID] = c
	}

	roots := make([]*models.Comment, 0)
	for _, c := range flat {
		if c.ParentCommentID == nil {
			roots = append(roots, c)
			continue
		}
		if parent, ok := byID[*c.ParentCommentID]; ok {
			parent.Children = append(parent.Children, c)
		}
	}
	return byID, roots, nil
}

func (r *CommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).
		Model(comment).
		Updates(map[string]interface{}{
			"text":       comment.Text,
			"updated_at": comment.UpdatedAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return nil
}

// DeleteTree removes the comment and all replies below it atomically.
// Returns the number of deleted rows.
func (r *CommentRepository) DeleteTree(ctx context.Context, id uint) (int, error) {
	var deleted int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := commentSubtreeIDs(tx, []uint{id})
		if err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		deleted = len(ids)
		return nil
	})
	return deleted, err
}
