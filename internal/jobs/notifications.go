package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/services"
)

// Biller is the part of the billing service the scheduler drives
type Biller interface {
	SendBills(ctx context.Context) (int, error)
	SendReminders(ctx context.Context, kind services.ReminderKind) (int, error)
}

// Schedule is one named cron entry
type Schedule struct {
	Name string
	Cron string
	Run  func(ctx context.Context) (int, error)
}

// NotificationJob runs the monthly billing notifications on cron schedules
type NotificationJob struct {
	schedules []Schedule
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewNotificationJob builds the bill, friendly reminder and final reminder
// schedules. An empty cron expression disables that schedule.
func NewNotificationJob(billing Biller, billCron, reminderCron, finalCron string) *NotificationJob {
	return &NotificationJob{
		schedules: []Schedule{
			{Name: "monthly_bill", Cron: billCron, Run: billing.SendBills},
			{Name: "friendly_reminder", Cron: reminderCron, Run: func(ctx context.Context) (int, error) {
				return billing.SendReminders(ctx, services.ReminderFriendly)
			}},
			{Name: "final_reminder", Cron: finalCron, Run: func(ctx context.Context) (int, error) {
				return billing.SendReminders(ctx, services.ReminderFinal)
			}},
		},
	}
}

// Start validates every cron expression and launches one goroutine per schedule
func (n *NotificationJob) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isRunning {
		logger.Warn("Notification jobs already running")
		return nil
	}
	for _, s := range n.schedules {
		if s.Cron != "" && !gronx.IsValid(s.Cron) {
			return fmt.Errorf("invalid cron expression for %s: %q", s.Name, s.Cron)
		}
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.isRunning = true
	logger.Info("⏰ Starting scheduled notification jobs...")

	for _, s := range n.schedules {
		if s.Cron == "" {
			logger.Info("Schedule disabled", "job", s.Name)
			continue
		}
		n.wg.Add(1)
		go n.loop(ctx, s)
	}
	return nil
}

// Stop cancels all schedules and waits for running jobs to return
func (n *NotificationJob) Stop() {
	n.mu.Lock()
	if !n.isRunning {
		n.mu.Unlock()
		return
	}
	n.isRunning = false
	n.cancel()
	n.mu.Unlock()

	logger.Info("Stopping scheduled notification jobs...")
	n.wg.Wait()
}

func (n *NotificationJob) loop(ctx context.Context, s Schedule) {
	defer n.wg.Done()

	for {
		next, err := NextRun(s.Cron, time.Now())
		if err != nil {
			logger.Error("❌ Failed to compute next run", "job", s.Name, "cron", s.Cron, "error", err)
			select {
			case <-time.After(time.Minute):
				continue
			case <-ctx.Done():
				return
			}
		}

		wait := time.Until(next)
		logger.Info("Next run scheduled", "job", s.Name, "at", next.Format(time.RFC3339), "in", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			n.runOnce(ctx, s)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (n *NotificationJob) runOnce(ctx context.Context, s Schedule) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("❌ Scheduled job panicked", "job", s.Name, "panic", r)
		}
	}()

	start := time.Now()
	sent, err := s.Run(ctx)
	if err != nil {
		logger.Error("❌ Scheduled job failed", "job", s.Name, "sent", sent, "error", err)
		return
	}
	logger.Info("✅ Scheduled job finished", "job", s.Name, "sent", sent, "took", time.Since(start).Round(time.Millisecond))
}

// NextRun returns the first tick of expr strictly after now
func NextRun(expr string, now time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, now, false)
}
