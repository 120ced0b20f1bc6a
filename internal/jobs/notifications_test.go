package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayflow/stayflow-backend/internal/services"
)

type countingBiller struct {
	bills     int
	reminders []services.ReminderKind
}

func (c *countingBiller) SendBills(context.Context) (int, error) {
	c.bills++
	return 3, nil
}

func (c *countingBiller) SendReminders(_ context.Context, kind services.ReminderKind) (int, error) {
	c.reminders = append(c.reminders, kind)
	return 1, nil
}

func TestNextRun(t *testing.T) {
	now := time.Date(2025, time.March, 2, 10, 30, 0, 0, time.UTC)

	next, err := NextRun("0 9 1 * *", now)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC).Equal(next), next)

	next, err = NextRun("0 9 3 * *", now)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC).Equal(next), next)
}

func TestNextRunIsStrictlyAfterNow(t *testing.T) {
	now := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)

	next, err := NextRun("0 9 5 * *", now)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC).Equal(next), next)
}

func TestSchedulesDispatchToBiller(t *testing.T) {
	b := &countingBiller{}
	job := NewNotificationJob(b, "0 9 1 * *", "0 9 3 * *", "0 9 5 * *")
	require.Len(t, job.schedules, 3)

	for _, s := range job.schedules {
		job.runOnce(context.Background(), s)
	}

	assert.Equal(t, 1, b.bills)
	assert.Equal(t, []services.ReminderKind{services.ReminderFriendly, services.ReminderFinal}, b.reminders)
}

func TestStartRejectsInvalidCron(t *testing.T) {
	job := NewNotificationJob(&countingBiller{}, "not a cron", "", "")

	err := job.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, job.isRunning)
}

func TestStartAndStop(t *testing.T) {
	job := NewNotificationJob(&countingBiller{}, "0 9 1 * *", "", "")

	require.NoError(t, job.Start(context.Background()))
	assert.True(t, job.isRunning)
	require.NoError(t, job.Start(context.Background()))

	job.Stop()
	assert.False(t, job.isRunning)
	job.Stop()
}
