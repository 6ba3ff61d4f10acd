package workflow

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/sirupsen/logrus"

	"github.com/rasamasa/franchise_backend/models"
)

const repairSweepActor = "repair-sweep"

func sweepBatchSize() int {
	if raw := os.Getenv("REPAIR_SWEEP_BATCH_SIZE"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 200
}

func sweepInterval() time.Duration {
	if raw := os.Getenv("REPAIR_SWEEP_INTERVAL_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 60 * time.Second
}

// RunRepairSweep finds valid entries the immediate sync failed to fold in
// (is_calculated=0) and re-drives each through the normal claim-and-apply
// path. Concurrent sweeps, or a sweep racing the immediate sync, are safe:
// the claim makes the second applier a no-op. Returns how many entries were
// picked up.
func RunRepairSweep(ctx context.Context, logger *logrus.Logger) (int, error) {
	if logger == nil {
		logger = config.GetLogger()
	}

	ids, err := models.ListUncalculatedTransactionIds(ctx, sweepBatchSize())
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var repaired int
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return repaired, ctx.Err()
		default:
		}
		if err := SyncInventoryTransaction(ctx, logger, id, repairSweepActor); err != nil {
			logger.WithFields(logrus.Fields{
				"transaction_id": id,
				"error":          err.Error(),
			}).Warn("inv.sweep.entry_failed")
			continue
		}
		repaired++
	}

	logger.WithFields(logrus.Fields{
		"candidates": len(ids),
		"repaired":   repaired,
	}).Info("inv.sweep.done")

	return repaired, nil
}

// StartRepairSweep loops RunRepairSweep on a ticker until ctx is cancelled.
func StartRepairSweep(ctx context.Context, logger *logrus.Logger) {
	if logger == nil {
		logger = config.GetLogger()
	}
	interval := sweepInterval()
	logger.WithFields(logrus.Fields{
		"interval": interval.String(),
	}).Info("inv.sweep.start")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("inv.sweep.stop")
			return
		case <-ticker.C:
			if _, err := RunRepairSweep(ctx, logger); err != nil && ctx.Err() == nil {
				logger.WithFields(logrus.Fields{
					"error": err.Error(),
				}).Error("inv.sweep.failed")
			}
		}
	}
}
