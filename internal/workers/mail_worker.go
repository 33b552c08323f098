package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/mailer"
	"github.com/social-feed/social-feed/pkg/queue"
)

// MailSender delivers one rendered template.
type MailSender interface {
	Send(ctx context.Context, to, templateName string, params map[string]string) error
}

type RetryConfig struct {
	// MaxAttempts counts the first try.
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type MailWorker struct {
	consumer Subscriber
	sender   MailSender
	retry    RetryConfig
	logger   *logger.Logger
}

func NewMailWorker(consumer Subscriber, sender MailSender, retry RetryConfig, logger *logger.Logger) *MailWorker {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 1
	}
	return &MailWorker{
		consumer: consumer,
		sender:   sender,
		retry:    retry,
		logger:   logger,
	}
}

func (w *MailWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting mail worker...")
	return w.consumer.Subscribe(ctx, func(msg queue.Message) error {
		return w.HandleMessage(ctx, msg)
	})
}

// backOff doubles the wait after every failed attempt, capped at MaxInterval.
func (w *MailWorker) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retry.InitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if w.retry.MaxInterval > 0 {
		b.MaxInterval = w.retry.MaxInterval
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, w.retry.MaxAttempts-1), ctx)
}

// HandleMessage sends one mail job, retrying transient failures. A job that
// still fails after the last attempt is logged and dropped.
func (w *MailWorker) HandleMessage(ctx context.Context, msg queue.Message) error {
	var job queue.MailJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return fmt.Errorf("failed to unmarshal mail job: %w", err)
	}

	log := w.logger.WithFields(map[string]interface{}{
		"to":       job.To,
		"template": job.Template,
	})

	if _, _, err := mailer.Render(job.Template, job.Params); err != nil {
		log.WithError(err).Error("Dropping mail job with bad template")
		return nil
	}

	attempt := 0
	send := func() error {
		attempt++
		return w.sender.Send(ctx, job.To, job.Template, job.Params)
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithFields(map[string]interface{}{
			"attempt":  attempt,
			"retry_in": wait.String(),
		}).Warn("Mail delivery failed, retrying")
	}

	if err := backoff.RetryNotify(send, w.backOff(ctx), notify); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.WithError(err).WithField("attempts", attempt).Error("Mail delivery failed permanently")
		return nil
	}

	log.WithField("attempts", attempt).Info("Mail sent successfully")
	return nil
}

func (w *MailWorker) Stop() error {
	w.logger.Info("Stopping mail worker...")
	return w.consumer.Close()
}
