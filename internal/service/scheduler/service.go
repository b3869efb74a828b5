// Package scheduler runs the daily reset and the sales report on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maplenou/maplenou-api/internal/config"
	"github.com/maplenou/maplenou-api/internal/mattermost"
	prommetrics "github.com/maplenou/maplenou-api/internal/metrics"
	"github.com/maplenou/maplenou-api/internal/models"
	"github.com/maplenou/maplenou-api/internal/service/reset"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// Job names used in logs, locks and metrics.
const (
	JobDailyReset  = "daily_reset"
	JobDailyReport = "daily_report"
)

const lockTTL = time.Hour

// Resetter runs the daily reset.
type Resetter interface {
	RunForDay(ctx context.Context, day string) (*reset.Report, error)
}

// Aggregator snapshots the sales of a day.
type Aggregator interface {
	AggregateDaily(ctx context.Context, day string) ([]models.DailySales, error)
}

// Notifier posts the daily report.
type Notifier interface {
	Enabled() bool
	SendDailySalesReport(ctx context.Context, report mattermost.DailyReport) error
}

// VendorLister lists vendors for report labels.
type VendorLister interface {
	ListVendors(ctx context.Context) ([]models.User, error)
}

// Locker guards a job so that only one instance runs it per day.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Service handles the daily jobs.
type Service struct {
	config     *config.SchedulerConfig
	resetter   Resetter
	aggregator Aggregator
	notifier   Notifier
	vendors    VendorLister
	locker     Locker
	now        func() time.Time
	log        *logger.Logger
	cron       *cron.Cron

	mu          sync.Mutex
	lastRevoked map[string]int
}

// NewService creates a new scheduler service. locker may be nil when Redis
// is disabled; jobs then run unguarded.
func NewService(
	cfg *config.SchedulerConfig,
	resetter Resetter,
	aggregator Aggregator,
	notifier Notifier,
	vendors VendorLister,
	locker Locker,
	log *logger.Logger,
) *Service {
	return &Service{
		config:      cfg,
		resetter:    resetter,
		aggregator:  aggregator,
		notifier:    notifier,
		vendors:     vendors,
		locker:      locker,
		now:         time.Now,
		log:         log,
		lastRevoked: make(map[string]int),
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	resetExpr, err := buildCronExpression(s.config.ResetTime)
	if err != nil {
		return fmt.Errorf("failed to build reset schedule: %w", err)
	}
	reportExpr, err := buildCronExpression(s.config.ReportTime)
	if err != nil {
		return fmt.Errorf("failed to build report schedule: %w", err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if _, err := s.cron.AddFunc(resetExpr, func() {
		s.runDailyReset(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register daily reset job: %w", err)
	}
	if _, err := s.cron.AddFunc(reportExpr, func() {
		s.runDailyReport(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register daily report job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("reset_schedule", resetExpr).
		Str("report_schedule", reportExpr).
		Str("timezone", s.config.Timezone).
		Bool("locked", s.locker != nil).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// RunDailyReset runs the reset immediately for today, without taking the lock.
func (s *Service) RunDailyReset(ctx context.Context) (*reset.Report, error) {
	return s.resetFor(ctx, models.DayOf(s.now()))
}

// buildCronExpression turns "HH:MM" into a daily cron expression.
func buildCronExpression(hhmm string) (string, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", hhmm)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// Format: "minute hour day month weekday"
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// acquire reports whether this instance should run job for day.
func (s *Service) acquire(ctx context.Context, job, day string) bool {
	if s.locker == nil {
		return true
	}

	ok, err := s.locker.AcquireLock(ctx, job+":"+day, lockTTL)
	if err != nil {
		// Both jobs are idempotent per day.
		s.log.Warn().Err(err).Str("job", job).Msg("Failed to acquire job lock, running anyway")
		return true
	}
	if !ok {
		s.log.Info().Str("job", job).Str("day", day).Msg("Job already taken by another instance")
		prommetrics.RecordJobRun(job, "skipped")
	}
	return ok
}

func (s *Service) runDailyReset(ctx context.Context) {
	day := models.DayOf(s.now())
	if !s.acquire(ctx, JobDailyReset, day) {
		return
	}
	_, _ = s.resetFor(ctx, day)
}

func (s *Service) resetFor(ctx context.Context, day string) (*reset.Report, error) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveJobDuration(JobDailyReset, time.Since(start).Seconds())
		prommetrics.SetJobLastRun(JobDailyReset)
	}()

	report, err := s.resetter.RunForDay(ctx, day)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("day", day).
			Dur("duration", time.Since(start)).
			Msg("Daily reset job failed")
		prommetrics.RecordJobRun(JobDailyReset, "error")
		return nil, err
	}

	s.mu.Lock()
	s.lastRevoked[report.Yesterday] = report.Revoked
	s.mu.Unlock()

	prommetrics.RecordJobRun(JobDailyReset, "success")
	s.log.Info().
		Str("day", day).
		Int("revoked", report.Revoked).
		Dur("duration", time.Since(start)).
		Msg("Daily reset job completed successfully")

	return report, nil
}

// runDailyReport snapshots yesterday's sales and posts them.
func (s *Service) runDailyReport(ctx context.Context) {
	today := models.DayOf(s.now())
	if !s.acquire(ctx, JobDailyReport, today) {
		return
	}

	start := time.Now()
	defer func() {
		prommetrics.ObserveJobDuration(JobDailyReport, time.Since(start).Seconds())
		prommetrics.SetJobLastRun(JobDailyReport)
	}()

	if err := s.report(ctx, today); err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Daily report job failed")
		prommetrics.RecordJobRun(JobDailyReport, "error")
		return
	}

	prommetrics.RecordJobRun(JobDailyReport, "success")
}

func (s *Service) report(ctx context.Context, today string) error {
	yesterday, err := models.PreviousDay(today)
	if err != nil {
		return err
	}

	rows, err := s.aggregator.AggregateDaily(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("failed to aggregate sales of %s: %w", yesterday, err)
	}

	if s.notifier == nil || !s.notifier.Enabled() {
		s.log.Debug().Str("day", yesterday).Msg("Notifications disabled, report not sent")
		return nil
	}

	names := map[uint]string{}
	vendors, err := s.vendors.ListVendors(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to list vendors, using ids in report")
	}
	for _, v := range vendors {
		names[v.ID] = v.FullName()
	}

	report := mattermost.DailyReport{Day: yesterday}
	for _, row := range rows {
		name, ok := names[row.VendeurID]
		if !ok {
			name = fmt.Sprintf("Vendeur #%d", row.VendeurID)
		}
		report.Vendors = append(report.Vendors, mattermost.VendorSales{
			Name:         name,
			Accepted:     row.Accepted,
			Rejected:     row.Rejected,
			Pending:      row.Pending,
			Revenue:      row.Revenue,
			StockAlloue:  row.StockAlloue,
			StockRestant: row.StockRestant,
		})
	}

	s.mu.Lock()
	report.StreaksRevoked = s.lastRevoked[yesterday]
	s.mu.Unlock()

	if err := s.notifier.SendDailySalesReport(ctx, report); err != nil {
		return fmt.Errorf("failed to send daily report: %w", err)
	}

	s.log.Info().
		Str("day", yesterday).
		Int("vendors", len(report.Vendors)).
		Msg("Daily report sent")
	return nil
}
