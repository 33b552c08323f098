package services

import (
	"context"

	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/queue"
)

// publishEvent sends a domain event. Delivery problems are logged only;
// consumers of these events are caches that tolerate gaps.
func publishEvent(ctx context.Context, producer queue.Publisher, log *logger.Logger, key string, eventType queue.EventType, data interface{}) {
	if producer == nil {
		return
	}
	event, err := queue.NewEvent(eventType, data)
	if err != nil {
		log.WithError(err).WithField("event_type", eventType).Error("Failed to build event")
		return
	}
	if err := producer.Publish(ctx, key, event); err != nil {
		log.WithError(err).WithField("event_type", eventType).Error("Failed to publish event")
	}
}
