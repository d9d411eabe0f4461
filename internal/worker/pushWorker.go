package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/internal/service"
)

// PushWorker polls for due notifications. One goroutine per instance, so
// passes never overlap.
type PushWorker struct {
	pushService service.PushService
	interval    time.Duration
}

func NewPushWorker(pushService service.PushService, interval time.Duration) *PushWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PushWorker{
		pushService: pushService,
		interval:    interval,
	}
}

func (w *PushWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval.String()).Info("push worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("push worker stopped")
			return
		case <-ticker.C:
			w.processDue(ctx)
		}
	}
}

func (w *PushWorker) processDue(ctx context.Context) {
	res, err := w.pushService.ProcessDue(ctx)
	if err != nil {
		logrus.Errorf("push pass failed: %v", err)
		return
	}

	if res.Failed > 0 {
		logrus.Warnf("%d notifications failed permanently in this pass", res.Failed)
	}
}
