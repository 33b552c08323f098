package services

import (
	"context"

	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/queue"
)

// MailDispatcher hands mail jobs to the mail worker through the queue.
type MailDispatcher struct {
	publisher queue.Publisher
	logger    *logger.Logger
}

func NewMailDispatcher(publisher queue.Publisher, logger *logger.Logger) *MailDispatcher {
	return &MailDispatcher{publisher: publisher, logger: logger}
}

// Enqueue returns as soon as the job is handed off. A failed hand-off is
// logged; the caller's operation has already succeeded.
func (d *MailDispatcher) Enqueue(ctx context.Context, job queue.MailJob) {
	if err := d.publisher.Publish(ctx, job.To, job); err != nil {
		d.logger.WithError(err).WithFields(map[string]interface{}{
			"to":       job.To,
			"template": job.Template,
		}).Error("Failed to enqueue mail job")
		return
	}
	d.logger.WithFields(map[string]interface{}{
		"to":       job.To,
		"template": job.Template,
	}).Info("Mail job enqueued")
}
