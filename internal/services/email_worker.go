package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"servus-backend/internal/config"
	"servus-backend/internal/mail"
	"servus-backend/internal/metrics"
	"servus-backend/internal/timeutil"
)

type EmailWorkerConfig struct {
	Schedule     string
	BatchSize    int
	MaxRetries   int
	ClaimTimeout time.Duration
}

// EmailWorker drains the email queue on a cron schedule. Rows are claimed
// before sending so a second worker never picks up the same email.
type EmailWorker struct {
	Emails EmailStore
	Sender mail.Sender
	cfg    EmailWorkerConfig
	id     string
	now    timeutil.Clock

	cron    *cron.Cron
	running sync.Mutex
}

func NewEmailWorker(emails EmailStore, sender mail.Sender, cfg EmailWorkerConfig, clock timeutil.Clock) *EmailWorker {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultEmailDrainSchedule
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultEmailBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = config.DefaultEmailMaxRetries
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = config.DefaultEmailClaimTimeout
	}
	if clock == nil {
		clock = timeutil.Now
	}
	host, _ := os.Hostname()
	return &EmailWorker{
		Emails: emails,
		Sender: sender,
		cfg:    cfg,
		id:     fmt.Sprintf("%s-%d", host, os.Getpid()),
		now:    clock,
	}
}

// Start schedules the drain. It returns an error for an invalid schedule.
func (w *EmailWorker) Start() error {
	log.Printf("[EmailWorker] Starting email worker %s (schedule %q)", w.id, w.cfg.Schedule)
	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ClaimTimeout)
		defer cancel()
		w.Drain(ctx)
	}); err != nil {
		return fmt.Errorf("invalid email drain schedule %q: %w", w.cfg.Schedule, err)
	}
	w.cron.Start()
	return nil
}

// Stop waits for a running drain to finish.
func (w *EmailWorker) Stop() {
	if w.cron == nil {
		return
	}
	log.Println("[EmailWorker] Stopping email worker...")
	<-w.cron.Stop().Done()
}

// Drain sends one batch and returns how many emails were delivered.
// Overlapping runs are skipped.
func (w *EmailWorker) Drain(ctx context.Context) int {
	if !w.running.TryLock() {
		return 0
	}
	defer w.running.Unlock()

	now := w.now()
	if released, err := w.Emails.ReleaseStale(ctx, now.Add(-w.cfg.ClaimTimeout)); err != nil {
		log.WithError(err).Warn("[EmailWorker] Failed to release stale claims")
	} else if released > 0 {
		log.Printf("[EmailWorker] Released %d stale claims", released)
	}

	batch, err := w.Emails.Claim(ctx, w.id, w.cfg.BatchSize, w.cfg.MaxRetries, now)
	if err != nil {
		log.WithError(err).Error("[EmailWorker] Failed to claim emails")
		return 0
	}

	sent := 0
	for _, e := range batch {
		fields := log.Fields{"email_id": e.ID, "to": e.To, "attempt": e.RetryCount + 1}

		if err := w.Sender.Send(ctx, e.To, e.Subject, e.Body); err != nil {
			metrics.EmailsFailed.Inc()
			dead, markErr := w.Emails.MarkFailed(ctx, e.ID, err.Error(), w.cfg.MaxRetries, w.now())
			if markErr != nil {
				log.WithFields(fields).WithError(markErr).Error("[EmailWorker] Failed to record send failure")
				continue
			}
			if dead {
				metrics.EmailsDeadLettered.Inc()
				log.WithFields(fields).WithError(err).Error("[EmailWorker] Email dead-lettered after final attempt")
			} else {
				log.WithFields(fields).WithError(err).Warn("[EmailWorker] Send failed, will retry")
			}
			continue
		}

		if err := w.Emails.MarkSent(ctx, e.ID, w.now()); err != nil {
			log.WithFields(fields).WithError(err).Error("[EmailWorker] Sent but failed to mark as sent")
			continue
		}
		metrics.EmailsSent.Inc()
		sent++
	}
	return sent
}
