package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
	"github.com/ewynk/mail-backend/internal/queue"
)

// CampaignSender runs one campaign send.
type CampaignSender interface {
	Send(ctx context.Context, campaignID, ctaURL string) (*SendResult, error)
}

// Worker processes queued send jobs
type Worker struct {
	Sender CampaignSender
	Log    *zap.SugaredLogger
}

// Constructor
func NewWorker(sender CampaignSender, log *zap.SugaredLogger) *Worker {
	return &Worker{Sender: sender, Log: log}
}

// Start consumes jobs from q until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, q queue.Queue) error {
	w.Log.Info("worker running, waiting for send jobs")
	return q.Consume(ctx, w.Handle)
}

// Handle runs one job. Errors a retry cannot fix are logged and swallowed so
// the queue does not redeliver them.
func (w *Worker) Handle(ctx context.Context, job queue.SendJob) error {
	res, err := w.Sender.Send(ctx, job.CampaignID, job.CTAURL)
	if err != nil {
		if appErrors.IsPermanent(err) {
			w.Log.Warnw("dropping send job", "campaign_id", job.CampaignID, "error", err)
			return nil
		}
		return err
	}

	w.Log.Infow("send job finished", "campaign_id", job.CampaignID, "sent", res.Sent, "failed", res.Failed, "paused", res.Paused)
	return nil
}
