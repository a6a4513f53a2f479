package jobs

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron/v3"

	"github.com/merchpulse/merchpulse/pkg/abandoned"
	"github.com/merchpulse/merchpulse/pkg/logger"
	"github.com/merchpulse/merchpulse/pkg/metrics"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	scanner *abandoned.Scanner
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(scanner *abandoned.Scanner, m *metrics.Metrics, log logger.Logger) *CronManager {
	return &CronManager{
		cron:    cron.New(),
		scanner: scanner,
		metrics: m,
		log:     log,
	}
}

// SetupJobs configures all scheduled jobs. scanSpec is a standard 5-field
// cron expression for the abandoned-cart scan.
func (cm *CronManager) SetupJobs(scanSpec string) error {
	_, err := cm.cron.AddFunc(scanSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		cm.RunAbandonedCartScan(ctx)
	})
	if err != nil {
		return err
	}

	cm.log.Info("cron jobs configured", "abandoned_cart_scan", scanSpec)
	return nil
}

// RunAbandonedCartScan executes one scan and records its outcome. Also
// invoked directly by the manual jobs endpoint.
func (cm *CronManager) RunAbandonedCartScan(ctx context.Context) {
	cm.metrics.ScannerRuns.Inc()

	summary, err := cm.scanner.Run(ctx)
	if err != nil {
		// Systemic failure: the batch never got going.
		cm.log.Error("abandoned cart scan aborted", "error", err)
		sentry.CaptureException(err)
		return
	}

	cm.metrics.ScannerCartsFound.Add(float64(summary.CartsFound))
	cm.metrics.ScannerEnrollments.Add(float64(summary.EnrollmentsCreated))
	cm.metrics.ScannerFailures.Add(float64(summary.Failures))
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.log.Info("🚀 starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.log.Info("🛑 stopping cron scheduler")
	cm.cron.Stop()
}
