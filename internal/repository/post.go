package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/social-feed/social-feed/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts the post and, in the same transaction, the given images
// with post_id pointing at it.
func (r *PostRepository) Create(ctx context.Context, post *models.Post, images []*models.Image) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return attachImages(tx, post, images)
	})
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (r *PostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// Update saves the post columns and attaches newly uploaded images.
func (r *PostRepository) Update(ctx context.Context, post *models.Post, images []*models.Image) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(post).Error; err != nil {
			return err
		}
		return attachImages(tx, post, images)
	})
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

func attachImages(tx *gorm.DB, post *models.Post, images []*models.Image) error {
	for _, img := range images {
		img.PostID = &post.ID
		if img.UserID == 0 {
			img.UserID = post.UserID
		}
		if err := tx.Create(img).Error; err != nil {
			return err
		}
		post.Images = append(post.Images, *img)
	}
	return nil
}

// Touch sets updated_at without changing anything else.
func (r *PostRepository) Touch(ctx context.Context, postID uint, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("updated_at", at).Error; err != nil {
		return fmt.Errorf("failed to touch post: %w", err)
	}
	return nil
}

func (r *PostRepository) GetByUserID(ctx context.Context, userID uint, offset, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.withDetails(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get posts by user: %w", err)
	}
	return posts, nil
}

// ListAllByUser returns every post of the user, newest first.
func (r *PostRepository) ListAllByUser(ctx context.Context, userID uint) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.withDetails(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts by user: %w", err)
	}
	return posts, nil
}

func (r *PostRepository) CountByUserID(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count user posts: %w", err)
	}
	return count, nil
}

// feedAuthors restricts posts to the user and everyone the user follows.
func feedAuthors(userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"user_id IN (SELECT CAST(? AS BIGINT) UNION SELECT followed_id FROM follows WHERE follower_id = ?)",
			userID, userID,
		)
	}
}

func (r *PostRepository) GetFeed(ctx context.Context, userID uint, offset, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.withDetails(ctx).
		Scopes(feedAuthors(userID)).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return posts, nil
}

func (r *PostRepository) CountFeed(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Scopes(feedAuthors(userID)).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count feed posts: %w", err)
	}
	return count, nil
}

func (r *PostRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Author").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

// DeleteCascade removes the post, its images and every comment or like on
// either. Returns the deleted image names for blob cleanup.
func (r *PostRepository) DeleteCascade(ctx context.Context, postID uint) ([]string, error) {
	var imageNames []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var images []models.Image
		if err := tx.Where("post_id = ?", postID).Find(&images).Error; err != nil {
			return fmt.Errorf("failed to list post images: %w", err)
		}
		imageIDs := make([]uint, 0, len(images))
		for _, img := range images {
			imageIDs = append(imageIDs, img.ID)
			imageNames = append(imageNames, img.Name)
		}

		if err := deleteSocialFor(tx, models.TargetPost, []uint{postID}); err != nil {
			return err
		}
		if err := deleteSocialFor(tx, models.TargetImage, imageIDs); err != nil {
			return err
		}
		if err := detachReposts(tx, []uint{postID}); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Image{}).Error; err != nil {
			return fmt.Errorf("failed to delete post images: %w", err)
		}
		if err := tx.Delete(&models.Post{}, postID).Error; err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imageNames, nil
}
