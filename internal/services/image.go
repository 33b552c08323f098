package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/storage"
)

var allowedExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// Upload is one incoming file.
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

type ImageService struct {
	imageRepo *repository.ImageRepository
	blobs     storage.Storage
	logger    *logger.Logger
}

func NewImageService(imageRepo *repository.ImageRepository, blobs storage.Storage, logger *logger.Logger) *ImageService {
	return &ImageService{imageRepo: imageRepo, blobs: blobs, logger: logger}
}

func imageExtension(filename string) (string, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", "", Validation("body.files", "Unsupported file extension, allowed: jpg, jpeg, png")
	}
	return ext, contentType, nil
}

// store writes the blob under a fresh unique name and returns the unsaved row.
func (s *ImageService) store(ctx context.Context, userID uint, up Upload) (*models.Image, error) {
	ext, contentType, err := imageExtension(up.Filename)
	if err != nil {
		return nil, err
	}

	name := strings.ReplaceAll(uuid.New().String(), "-", "") + "." + ext
	if err := s.blobs.Write(ctx, name, up.Reader, up.Size, contentType); err != nil {
		return nil, Internal("failed to store image", err)
	}

	return &models.Image{Name: name, UserID: userID}, nil
}

// storeAll writes every blob or none of them.
func (s *ImageService) storeAll(ctx context.Context, userID uint, uploads []Upload) ([]*models.Image, error) {
	images := make([]*models.Image, 0, len(uploads))
	for _, up := range uploads {
		if _, _, err := imageExtension(up.Filename); err != nil {
			return nil, err
		}
	}
	for _, up := range uploads {
		img, err := s.store(ctx, userID, up)
		if err != nil {
			s.discard(ctx, images)
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// discard drops blobs whose rows were never committed.
func (s *ImageService) discard(ctx context.Context, images []*models.Image) {
	for _, img := range images {
		s.removeBlob(ctx, img.Name)
	}
}

// removeBlob is the best-effort variant used after rows are already gone.
func (s *ImageService) removeBlob(ctx context.Context, name string) {
	if err := s.blobs.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.WithError(err).WithField("image", name).Warn("Failed to delete image blob")
	}
}

// deleteBlob removes the stored file of a live row. A missing file is an
// error here; the row stays.
func (s *ImageService) deleteBlob(ctx context.Context, loc, name string) error {
	if err := s.blobs.Delete(ctx, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NotFound(loc, "Image not found")
		}
		return Internal("failed to delete image file", err)
	}
	return nil
}

func (s *ImageService) Upload(ctx context.Context, userID uint, up Upload) (*models.Image, error) {
	images, err := s.UploadMany(ctx, userID, []Upload{up})
	if err != nil {
		return nil, err
	}
	return images[0], nil
}

func (s *ImageService) UploadMany(ctx context.Context, userID uint, uploads []Upload) ([]*models.Image, error) {
	if len(uploads) == 0 {
		return nil, Validation("body.files", "At least one file is required")
	}

	images, err := s.storeAll(ctx, userID, uploads)
	if err != nil {
		return nil, err
	}

	if err := s.imageRepo.CreateMany(ctx, images); err != nil {
		s.discard(ctx, images)
		return nil, fmt.Errorf("failed to save images: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"count":   len(images),
	}).Info("Images uploaded successfully")
	return images, nil
}

func (s *ImageService) Get(ctx context.Context, imageID uint) (*models.Image, error) {
	image, err := s.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return nil, NotFound("path.image_id", "The image with this id does not exist")
	}
	return image, nil
}

func (s *ImageService) ListByUser(ctx context.Context, userID uint) ([]*models.Image, error) {
	images, err := s.imageRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []*models.Image{}
	}
	return images, nil
}

// Open returns the image row and a reader over its blob.
func (s *ImageService) Open(ctx context.Context, imageID uint) (*models.Image, io.ReadCloser, error) {
	image, err := s.Get(ctx, imageID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Read(ctx, image.Name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, NotFound("path.image_id", "The image file does not exist")
		}
		return nil, nil, Internal("failed to read image", err)
	}
	return image, rc, nil
}

// Delete removes an image uploaded by requesterID. The blob goes first; if
// it is missing or cannot be removed the row is kept.
func (s *ImageService) Delete(ctx context.Context, requesterID, imageID uint) error {
	image, err := s.Get(ctx, imageID)
	if err != nil {
		return err
	}
	if image.UserID != requesterID {
		return Forbidden("Only the uploader can delete this image")
	}

	if err := s.deleteBlob(ctx, "path.image_id", image.Name); err != nil {
		return err
	}
	if err := s.imageRepo.DeleteCascade(ctx, image.ID); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"image_id": image.ID,
		"user_id":  requesterID,
	}).Info("Image deleted successfully")
	return nil
}
