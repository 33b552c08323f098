package workers

import (
	"context"

	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/internal/services"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/queue"
	"golang.org/x/sync/errgroup"
)

// Subscriber is the consuming side of a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(queue.Message) error) error
	Close() error
}

// FeedWorker keeps cached feeds fresh: whenever the set of posts visible to
// a user changes, that user's feed version is bumped.
type FeedWorker struct {
	followRepo *repository.FollowRepository
	cache      *services.FeedCache
	consumers  []Subscriber
	logger     *logger.Logger
}

func NewFeedWorker(
	followRepo *repository.FollowRepository,
	cache *services.FeedCache,
	logger *logger.Logger,
	consumers ...Subscriber,
) *FeedWorker {
	return &FeedWorker{
		followRepo: followRepo,
		cache:      cache,
		consumers:  consumers,
		logger:     logger,
	}
}

// Start consumes every topic until ctx is cancelled or one reader fails.
func (w *FeedWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting feed worker...")

	g, gCtx := errgroup.WithContext(ctx)
	for _, consumer := range w.consumers {
		consumer := consumer
		g.Go(func() error {
			return consumer.Subscribe(gCtx, func(msg queue.Message) error {
				return w.HandleMessage(gCtx, msg)
			})
		})
	}
	return g.Wait()
}

func (w *FeedWorker) HandleMessage(ctx context.Context, msg queue.Message) error {
	event, err := queue.DecodeEvent(msg)
	if err != nil {
		return err
	}

	w.logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"timestamp":  event.Timestamp,
		"topic":      msg.Topic,
	}).Debug("Processing event")

	switch event.Type {
	case queue.EventPostCreated, queue.EventPostUpdated, queue.EventPostDeleted:
		return w.handlePostChanged(ctx, event)
	case queue.EventFollowCreated, queue.EventFollowDeleted:
		return w.handleFollowChanged(ctx, event)
	case queue.EventUserDeleted:
		return w.handleUserDeleted(ctx, event)
	case queue.EventUserCreated, queue.EventUserUpdated,
		queue.EventLikeCreated, queue.EventLikeDeleted,
		queue.EventCommentCreated, queue.EventCommentDeleted:
		// feed pages do not embed these
		return nil
	default:
		w.logger.WithField("event_type", event.Type).Warn("Unknown event type")
		return nil
	}
}

func (w *FeedWorker) handlePostChanged(ctx context.Context, event queue.Event) error {
	var data queue.PostEventData
	if err := event.Bind(&data); err != nil {
		return err
	}

	followerIDs, err := w.followRepo.GetFollowerIDs(ctx, data.UserID)
	if err != nil {
		return err
	}

	if err := w.cache.Invalidate(ctx, append(followerIDs, data.UserID)...); err != nil {
		return err
	}

	w.logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"post_id":    data.PostID,
		"user_id":    data.UserID,
		"followers":  len(followerIDs),
	}).Info("Feed caches invalidated for post change")
	return nil
}

func (w *FeedWorker) handleFollowChanged(ctx context.Context, event queue.Event) error {
	var data queue.FollowEventData
	if err := event.Bind(&data); err != nil {
		return err
	}

	// 只有关注者的feed内容发生变化
	if err := w.cache.Invalidate(ctx, data.FollowerID); err != nil {
		return err
	}

	w.logger.WithFields(map[string]interface{}{
		"event_type":  event.Type,
		"follower_id": data.FollowerID,
		"followed_id": data.FollowedID,
	}).Info("Feed cache invalidated for follow change")
	return nil
}

func (w *FeedWorker) handleUserDeleted(ctx context.Context, event queue.Event) error {
	var data queue.UserEventData
	if err := event.Bind(&data); err != nil {
		return err
	}
	return w.cache.Invalidate(ctx, append(data.FollowerIDs, data.UserID)...)
}

func (w *FeedWorker) Stop() error {
	w.logger.Info("Stopping feed worker...")
	var firstErr error
	for _, consumer := range w.consumers {
		if err := consumer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
