package services

import (
	"context"
	"fmt"
	"time"

	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/queue"
)

type CommentService struct {
	commentRepo *repository.CommentRepository
	resolver    *TargetResolver
	producer    queue.Publisher
	logger      *logger.Logger
}

func NewCommentService(commentRepo *repository.CommentRepository, resolver *TargetResolver, producer queue.Publisher, logger *logger.Logger) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		resolver:    resolver,
		producer:    producer,
		logger:      logger,
	}
}

type CreateCommentRequest struct {
	Text            string `json:"text" binding:"required,min=1,max=2000"`
	ParentCommentID *uint  `json:"parent_comment_id"`
}

type UpdateCommentRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

func (s *CommentService) Create(ctx context.Context, userID uint, ref models.TargetRef, req *CreateCommentRequest) (*models.Comment, error) {
	if _, err := s.resolver.Resolve(ctx, ref); err != nil {
		return nil, err
	}

	// 回复必须挂在同一目标下
	if req.ParentCommentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *req.ParentCommentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get parent comment: %w", err)
		}
		if parent == nil {
			return nil, NotFound("body.parent_comment_id", "The parent comment with this id does not exist")
		}
		if parent.Target() != ref {
			return nil, Validation("body.parent_comment_id", "The parent comment belongs to another entity")
		}
	}

	comment := &models.Comment{
		Text:            req.Text,
		UserID:          userID,
		CommentableType: ref.Type,
		CommentableID:   ref.ID,
		ParentCommentID: req.ParentCommentID,
		Children:        []*models.Comment{},
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.producer, s.logger, userKey(userID), queue.EventCommentCreated, queue.CommentEventData{
		CommentID:  comment.ID,
		UserID:     userID,
		TargetType: string(ref.Type),
		TargetID:   ref.ID,
	})

	s.logger.WithFields(map[string]interface{}{
		"comment_id": comment.ID,
		"user_id":    userID,
		"target":     ref.String(),
	}).Info("Comment created successfully")

	return comment, nil
}

// Get returns the comment with its reply tree.
func (s *CommentService) Get(ctx context.Context, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetWithReplies(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, NotFound("path.comment_id", "The comment with this id does not exist")
	}
	return comment, nil
}

func (s *CommentService) owned(ctx context.Context, requesterID, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, NotFound("path.comment_id", "The comment with this id does not exist")
	}
	if comment.UserID != requesterID {
		return nil, Forbidden("Only the author can modify this comment")
	}
	return comment, nil
}

// Update replaces the text and refreshes updated_at.
func (s *CommentService) Update(ctx context.Context, requesterID, commentID uint, req *UpdateCommentRequest) (*models.Comment, error) {
	comment, err := s.owned(ctx, requesterID, commentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	comment.Text = req.Text
	comment.UpdatedAt = &now
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return s.Get(ctx, comment.ID)
}

func (s *CommentService) ListTopLevel(ctx context.Context, ref models.TargetRef) ([]*models.Comment, error) {
	if _, err := s.resolver.Resolve(ctx, ref); err != nil {
		return nil, err
	}
	return s.commentRepo.ListTopLevel(ctx, ref)
}

// Remove deletes the comment together with every reply below it.
func (s *CommentService) Remove(ctx context.Context, requesterID, commentID uint) error {
	comment, err := s.owned(ctx, requesterID, commentID)
	if err != nil {
		return err
	}

	deleted, err := s.commentRepo.DeleteTree(ctx, comment.ID)
	if err != nil {
		return err
	}

	publishEvent(ctx, s.producer, s.logger, userKey(requesterID), queue.EventCommentDeleted, queue.CommentEventData{
		CommentID:  comment.ID,
		UserID:     requesterID,
		TargetType: string(comment.CommentableType),
		TargetID:   comment.CommentableID,
	})

	s.logger.WithFields(map[string]interface{}{
		"comment_id": comment.ID,
		"deleted":    deleted,
	}).Info("Comment deleted successfully")
	return nil
}

// Target resolves the entity a stored comment is attached to.
func (s *CommentService) Target(ctx context.Context, comment *models.Comment) (models.Target, error) {
	return s.resolver.ResolveStored(ctx, comment.Target())
}
