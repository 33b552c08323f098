package services

import (
	"context"
	"fmt"

	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/repository"
)

// TargetResolver turns a stored (type, id) pair into the entity it names.
// Every comment and like lookup goes through it.
type TargetResolver struct {
	postRepo  *repository.PostRepository
	imageRepo *repository.ImageRepository
}

func NewTargetResolver(postRepo *repository.PostRepository, imageRepo *repository.ImageRepository) *TargetResolver {
	return &TargetResolver{postRepo: postRepo, imageRepo: imageRepo}
}

// Resolve is used for refs that came from a caller: a missing row is NotFound.
func (r *TargetResolver) Resolve(ctx context.Context, ref models.TargetRef) (models.Target, error) {
	target, err := r.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, NotFound(string(ref.Type)+"_id", fmt.Sprintf("The %s with this id does not exist", ref.Type))
	}
	return target, nil
}

// ResolveStored is used for refs read back from comments or likes: a missing
// row means the association is dangling.
func (r *TargetResolver) ResolveStored(ctx context.Context, ref models.TargetRef) (models.Target, error) {
	target, err := r.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, Integrity(fmt.Sprintf("dangling association %s", ref), nil)
	}
	return target, nil
}

func (r *TargetResolver) load(ctx context.Context, ref models.TargetRef) (models.Target, error) {
	switch ref.Type {
	case models.TargetPost:
		post, err := r.postRepo.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", ref, err)
		}
		if post == nil {
			return nil, nil
		}
		return post, nil
	case models.TargetImage:
		image, err := r.imageRepo.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", ref, err)
		}
		if image == nil {
			return nil, nil
		}
		return image, nil
	default:
		return nil, Integrity(fmt.Sprintf("unknown target type %q", ref.Type), nil)
	}
}
