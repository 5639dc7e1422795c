package quotes

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs jobs on cron specs with a shared base context.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func NewScheduler(logger *zap.Logger, baseCtx context.Context) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

func (r *Scheduler) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// ScheduleRefresh registers a periodic Refresh of svc.
func (r *Scheduler) ScheduleRefresh(spec string, svc *Service) (cron.EntryID, error) {
	return r.Add(spec, func(ctx context.Context) {
		if _, err := svc.Refresh(ctx); err != nil {
			r.logger.Warn("scheduled quote refresh failed", zap.Error(err))
		}
	})
}

func (r *Scheduler) Start() {
	r.logger.Info("cron started")
	r.cron.Start()
}

func (r *Scheduler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}
