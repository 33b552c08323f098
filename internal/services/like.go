package services

import (
	"context"

	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/queue"
)

type LikeService struct {
	likeRepo *repository.LikeRepository
	resolver *TargetResolver
	producer queue.Publisher
	logger   *logger.Logger
}

func NewLikeService(likeRepo *repository.LikeRepository, resolver *TargetResolver, producer queue.Publisher, logger *logger.Logger) *LikeService {
	return &LikeService{
		likeRepo: likeRepo,
		resolver: resolver,
		producer: producer,
		logger:   logger,
	}
}

// Create likes the target once; a second like is a validation error.
func (s *LikeService) Create(ctx context.Context, userID uint, ref models.TargetRef) (*models.Like, error) {
	if _, err := s.resolver.Resolve(ctx, ref); err != nil {
		return nil, err
	}

	existing, err := s.likeRepo.Get(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, Validation(string(ref.Type)+"_id", "already liked")
	}

	like := &models.Like{
		UserID:     userID,
		EntityType: ref.Type,
		EntityID:   ref.ID,
	}
	if err := s.likeRepo.Create(ctx, like); err != nil {
		// 并发请求抢先写入
		if repository.IsUniqueViolation(err) {
			return nil, Validation(string(ref.Type)+"_id", "already liked")
		}
		return nil, err
	}

	publishEvent(ctx, s.producer, s.logger, userKey(userID), queue.EventLikeCreated, queue.LikeEventData{
		UserID:     userID,
		EntityType: string(ref.Type),
		EntityID:   ref.ID,
	})

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"target":  ref.String(),
	}).Info("Like created successfully")

	return like, nil
}

func (s *LikeService) Remove(ctx context.Context, userID uint, ref models.TargetRef) error {
	if _, err := s.resolver.Resolve(ctx, ref); err != nil {
		return err
	}

	like, err := s.likeRepo.Get(ctx, userID, ref)
	if err != nil {
		return err
	}
	if like == nil {
		return Validation(string(ref.Type)+"_id", "like not found")
	}
	if err := s.likeRepo.Delete(ctx, like); err != nil {
		return err
	}

	publishEvent(ctx, s.producer, s.logger, userKey(userID), queue.EventLikeDeleted, queue.LikeEventData{
		UserID:     userID,
		EntityType: string(ref.Type),
		EntityID:   ref.ID,
	})
	return nil
}

func (s *LikeService) Count(ctx context.Context, ref models.TargetRef) (int64, error) {
	if _, err := s.resolver.Resolve(ctx, ref); err != nil {
		return 0, err
	}
	return s.likeRepo.Count(ctx, ref)
}

func (s *LikeService) IsLiked(ctx context.Context, userID uint, ref models.TargetRef) (bool, error) {
	like, err := s.likeRepo.Get(ctx, userID, ref)
	if err != nil {
		return false, err
	}
	return like != nil, nil
}
