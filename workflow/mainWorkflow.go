package workflow

import (
	"context"
	"sync"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/sirupsen/logrus"
)

type reconcileJob struct {
	outletId int
	actor    string
}

// BackgroundRunner owns the long-lived goroutines: the repair sweep ticker
// and a single worker draining outlet reconciliation jobs. One worker means
// reconciliations from approvals run one at a time, which keeps the per-outlet
// lock contention trivial.
type BackgroundRunner struct {
	logger      *logrus.Logger
	reconcileCh chan reconcileJob
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewBackgroundRunner(logger *logrus.Logger) *BackgroundRunner {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &BackgroundRunner{
		logger:      logger,
		reconcileCh: make(chan reconcileJob, 64),
	}
}

func (runner *BackgroundRunner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	runner.cancel = cancel

	runner.wg.Add(1)
	go func() {
		defer runner.wg.Done()
		StartRepairSweep(ctx, runner.logger)
	}()

	runner.wg.Add(1)
	go func() {
		defer runner.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-runner.reconcileCh:
				if err := ReconcileOutletStock(ctx, runner.logger, job.outletId, job.actor); err != nil {
					runner.logger.WithFields(logrus.Fields{
						"outlet_id": job.outletId,
						"error":     err.Error(),
					}).Error("inv.rebuild.queued_failed")
				}
			}
		}
	}()

	runner.logger.Info("background runner started")
}

func (runner *BackgroundRunner) Stop() {
	if runner.cancel != nil {
		runner.cancel()
	}
	runner.wg.Wait()
	runner.logger.Info("background runner stopped")
}

// QueueOutletReconcile schedules a reconciliation without blocking the
// caller. Nil-safe: with no runner (CLI tools, tests) it falls back to a
// detached goroutine. A full queue also degrades to a goroutine rather than
// dropping the job.
func (runner *BackgroundRunner) QueueOutletReconcile(logger *logrus.Logger, outletId int, actor string) {
	if logger == nil {
		logger = config.GetLogger()
	}
	if runner == nil {
		go func() {
			if err := ReconcileOutletStock(context.Background(), logger, outletId, actor); err != nil {
				logger.WithFields(logrus.Fields{
					"outlet_id": outletId,
					"error":     err.Error(),
				}).Error("inv.rebuild.queued_failed")
			}
		}()
		return
	}
	select {
	case runner.reconcileCh <- reconcileJob{outletId: outletId, actor: actor}:
	default:
		logger.WithFields(logrus.Fields{
			"outlet_id": outletId,
		}).Warn("reconcile queue full, running inline goroutine")
		go func() {
			if err := ReconcileOutletStock(context.Background(), logger, outletId, actor); err != nil {
				logger.WithFields(logrus.Fields{
					"outlet_id": outletId,
					"error":     err.Error(),
				}).Error("inv.rebuild.queued_failed")
			}
		}()
	}
}
