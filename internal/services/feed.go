package services

import (
	"context"
	"fmt"
	"time"

	"github.com/social-feed/social-feed/internal/config"
	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/queue"
	"golang.org/x/sync/singleflight"
)

type FeedService struct {
	postRepo *repository.PostRepository
	userRepo *repository.UserRepository
	images   *ImageService
	cache    *FeedCache
	producer queue.Publisher
	config   *config.FeedConfig
	logger   *logger.Logger

	// loads collapses concurrent cache misses for the same feed page.
	loads singleflight.Group
}

// NewFeedService accepts a nil cache; pages are then always read from the database.
func NewFeedService(
	postRepo *repository.PostRepository,
	userRepo *repository.UserRepository,
	images *ImageService,
	cache *FeedCache,
	producer queue.Publisher,
	config *config.FeedConfig,
	logger *logger.Logger,
) *FeedService {
	return &FeedService{
		postRepo: postRepo,
		userRepo: userRepo,
		images:   images,
		cache:    cache,
		producer: producer,
		config:   config,
		logger:   logger,
	}
}

type CreatePostRequest struct {
	Content        string `json:"content" form:"content" binding:"required,max=5000"`
	OriginalPostID *uint  `json:"original_post_id" form:"original_post_id"`
}

type UpdatePostRequest struct {
	Content *string `json:"content" form:"content" binding:"omitempty,max=5000"`
}

func (s *FeedService) CreatePost(ctx context.Context, userID uint, req *CreatePostRequest, uploads []Upload) (*models.Post, error) {
	if req.OriginalPostID != nil {
		original, err := s.postRepo.GetByID(ctx, *req.OriginalPostID)
		if err != nil {
			return nil, fmt.Errorf("failed to get original post: %w", err)
		}
		if original == nil {
			return nil, NotFound("body.original_post_id", "The post with this id does not exist")
		}
	}

	images, err := s.images.storeAll(ctx, userID, uploads)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:         userID,
		Content:        req.Content,
		OriginalPostID: req.OriginalPostID,
	}
	if err := s.postRepo.Create(ctx, post, images); err != nil {
		s.images.discard(ctx, images)
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.afterPostChange(ctx, queue.EventPostCreated, post)

	s.logger.WithFields(map[string]interface{}{
		"post_id": post.ID,
		"user_id": userID,
		"images":  len(images),
	}).Info("Post created successfully")

	return s.GetPost(ctx, post.ID)
}

func (s *FeedService) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, NotFound("path.post_id", "The post with this id does not exist")
	}
	return post, nil
}

func (s *FeedService) ownedPost(ctx context.Context, requesterID, postID uint) (*models.Post, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != requesterID {
		return nil, Forbidden("Only the author can modify this post")
	}
	return post, nil
}

// UpdatePost changes the text and attaches new images; updated_at is refreshed.
func (s *FeedService) UpdatePost(ctx context.Context, requesterID, postID uint, req *UpdatePostRequest, uploads []Upload) (*models.Post, error) {
	post, err := s.ownedPost(ctx, requesterID, postID)
	if err != nil {
		return nil, err
	}

	images, err := s.images.storeAll(ctx, requesterID, uploads)
	if err != nil {
		return nil, err
	}

	if req.Content != nil {
		post.Content = *req.Content
	}
	now := time.Now().UTC()
	post.UpdatedAt = &now

	if err := s.postRepo.Update(ctx, post, images); err != nil {
		s.images.discard(ctx, images)
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	s.afterPostChange(ctx, queue.EventPostUpdated, post)

	s.logger.WithField("post_id", post.ID).Info("Post updated successfully")
	return post, nil
}

// DeletePost removes the post with its images, comments and likes.
func (s *FeedService) DeletePost(ctx context.Context, requesterID, postID uint) error {
	post, err := s.ownedPost(ctx, requesterID, postID)
	if err != nil {
		return err
	}

	imageNames, err := s.postRepo.DeleteCascade(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	for _, name := range imageNames {
		s.images.removeBlob(ctx, name)
	}

	s.afterPostChange(ctx, queue.EventPostDeleted, post)

	s.logger.WithFields(map[string]interface{}{
		"post_id": post.ID,
		"user_id": requesterID,
	}).Info("Post deleted successfully")
	return nil
}

// RemoveImage deletes one image of the post, file included.
func (s *FeedService) RemoveImage(ctx context.Context, requesterID, postID uint, imageName string) error {
	post, err := s.ownedPost(ctx, requesterID, postID)
	if err != nil {
		return err
	}

	var image *models.Image
	for i := range post.Images {
		if post.Images[i].Name == imageName {
			image = &post.Images[i]
			break
		}
	}
	if image == nil {
		return NotFound("path.filename", "The image is not attached to this post")
	}

	if err := s.images.deleteBlob(ctx, "path.filename", image.Name); err != nil {
		return err
	}
	if err := s.images.imageRepo.DeleteCascade(ctx, image.ID); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if err := s.postRepo.Touch(ctx, post.ID, time.Now().UTC()); err != nil {
		return err
	}

	s.afterPostChange(ctx, queue.EventPostUpdated, post)
	return nil
}

// ListOwnPosts returns every post of the user without paging.
func (s *FeedService) ListOwnPosts(ctx context.Context, userID uint) ([]*models.Post, error) {
	posts, err := s.postRepo.ListAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *FeedService) checkSize(size int) error {
	if s.config != nil && s.config.MaxPageSize > 0 && size > s.config.MaxPageSize {
		return Validation("query.size", fmt.Sprintf("size must be at most %d", s.config.MaxPageSize))
	}
	return nil
}

// GetFeed returns the user's own posts merged with the posts of everyone
// the user follows, newest first.
func (s *FeedService) GetFeed(ctx context.Context, userID uint, page, size int) (*Page[*models.Post], error) {
	if err := s.checkSize(size); err != nil {
		return nil, err
	}

	if s.cache == nil || page < 1 || size < 1 {
		return s.loadFeed(ctx, userID, page, size)
	}

	cached, version, ok := s.cache.Lookup(ctx, userID, page, size)
	if ok {
		return cached, nil
	}

	key := fmt.Sprintf("%d:%s:%d:%d", userID, version, page, size)
	v, err, _ := s.loads.Do(key, func() (interface{}, error) {
		result, err := s.loadFeed(ctx, userID, page, size)
		if err != nil {
			return nil, err
		}
		s.cache.Store(ctx, userID, version, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page[*models.Post]), nil
}

func (s *FeedService) loadFeed(ctx context.Context, userID uint, page, size int) (*Page[*models.Post], error) {
	total, err := s.postRepo.CountFeed(ctx, userID)
	if err != nil {
		return nil, err
	}
	pages, err := checkPage(total, page, size)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.GetFeed(ctx, userID, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return newPage(posts, total, page, size, pages), nil
}

// GetUserPosts pages through one user's posts.
func (s *FeedService) GetUserPosts(ctx context.Context, userID uint, page, size int) (*Page[*models.Post], error) {
	if err := s.checkSize(size); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, NotFound("path.user_id", "The user with this id does not exist")
	}

	total, err := s.postRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	pages, err := checkPage(total, page, size)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.GetByUserID(ctx, userID, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return newPage(posts, total, page, size, pages), nil
}

// afterPostChange drops the author's cached feed right away and tells the
// worker, which takes care of the followers.
func (s *FeedService) afterPostChange(ctx context.Context, eventType queue.EventType, post *models.Post) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, post.UserID); err != nil {
			s.logger.WithError(err).WithField("user_id", post.UserID).Warn("Failed to invalidate feed cache")
		}
	}
	publishEvent(ctx, s.producer, s.logger, userKey(post.UserID), eventType, queue.PostEventData{
		PostID:    post.ID,
		UserID:    post.UserID,
		CreatedAt: post.CreatedAt,
	})
}
