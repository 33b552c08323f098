package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/social-feed/social-feed/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *UserRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}

// DeleteCascade removes the user together with everything the user owns
// and everything that points at it. It returns the names of the deleted
// images so the caller can drop their blobs after commit.
func (r *UserRepository) DeleteCascade(ctx context.Context, userID uint) ([]string, error) {
	var imageNames []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &postIDs).Error; err != nil {
			return fmt.Errorf("failed to list user posts: %w", err)
		}

		var images []models.Image
		q := tx.Where("user_id = ?", userID)
		if len(postIDs) > 0 {
			q = q.Or("post_id IN ?", postIDs)
		}
		if err := q.Find(&images).Error; err != nil {
			return fmt.Errorf("failed to list user images: %w", err)
		}
		imageIDs := make([]uint, 0, len(images))
		for _, img := range images {
			imageIDs = append(imageIDs, img.ID)
			imageNames = append(imageNames, img.Name)
		}

		if err := deleteSocialFor(tx, models.TargetPost, postIDs); err != nil {
			return err
		}
		if err := deleteSocialFor(tx, models.TargetImage, imageIDs); err != nil {
			return err
		}

		// comments written by the user elsewhere, with the replies under them
		var ownComments []uint
		if err := tx.Model(&models.Comment{}).Where("user_id = ?", userID).Pluck("id", &ownComments).Error; err != nil {
			return fmt.Errorf("failed to list user comments: %w", err)
		}
		if err := deleteCommentTrees(tx, ownComments); err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.Like{}).Error; err != nil {
			return fmt.Errorf("failed to delete user likes: %w", err)
		}
		if err := detachReposts(tx, postIDs); err != nil {
			return err
		}
		if len(imageIDs) > 0 {
			if err := tx.Where("id IN ?", imageIDs).Delete(&models.Image{}).Error; err != nil {
				return fmt.Errorf("failed to delete user images: %w", err)
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Post{}).Error; err != nil {
			return fmt.Errorf("failed to delete user posts: %w", err)
		}
		if err := tx.Where("follower_id = ? OR followed_id = ?", userID, userID).Delete(&models.Follow{}).Error; err != nil {
			return fmt.Errorf("failed to delete follows: %w", err)
		}
		if err := tx.Delete(&models.User{}, userID).Error; err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return imageNames, nil
}
