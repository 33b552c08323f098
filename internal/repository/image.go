package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/social-feed/social-feed/internal/models"
	"gorm.io/gorm"
)

type ImageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// CreateMany inserts the rows in one transaction.
func (r *ImageRepository) CreateMany(ctx context.Context, images []*models.Image) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, image := range images {
			if err := tx.Create(image).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create images: %w", err)
	}
	return nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	if err := r.db.WithContext(ctx).First(&image, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &image, nil
}

func (r *ImageRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Image, error) {
	var images []*models.Image
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// DeleteCascade removes the image row with its comments and likes.
func (r *ImageRepository) DeleteCascade(ctx context.Context, imageID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSocialFor(tx, models.TargetImage, []uint{imageID}); err != nil {
			return err
		}
		if err := tx.Delete(&models.Image{}, imageID).Error; err != nil {
			return fmt.Errorf("failed to delete image: %w", err)
		}
		return nil
	})
}
