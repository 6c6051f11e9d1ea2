package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/opsweep/opsweep/pkg/eventbus"
	"github.com/opsweep/opsweep/pkg/events"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs [][]models.AutomationAction
}

func (f *fakeRunner) RunAll(_ context.Context, actions []models.AutomationAction) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runs = append(f.runs, actions)

	return 0
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.runs)
}

type fakeBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (f *fakeBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, event)

	return nil
}

func (f *fakeBus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.events)
}

func onceTask(id string, at time.Time) *models.ScheduledTask {
	return &models.ScheduledTask{
		ID:       id,
		Name:     "one-shot cleanup",
		Schedule: models.Schedule{Kind: models.ScheduleOnce, At: &at},
		Actions:  []models.AutomationAction{{Kind: models.ActionCleanMemory}},
		Enabled:  true,
	}
}

func recurringTask(id string, interval time.Duration) *models.ScheduledTask {
	return &models.ScheduledTask{
		ID:       id,
		Name:     "recurring cleanup",
		Schedule: models.Schedule{Kind: models.ScheduleRecurring, Interval: interval},
		Actions:  []models.AutomationAction{{Kind: models.ActionCleanCaches}},
		Enabled:  true,
	}
}

func TestScheduler_OnceTaskRunsExactlyOnce(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner)
	ctx := context.Background()

	task := onceTask("task-once", time.Now().Add(20*time.Millisecond))
	require.NoError(t, s.AddTask(ctx, task))
	require.NoError(t, s.Start(ctx))

	defer s.Stop()

	assert.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

	// The task retires itself: disabled, no next occurrence, still one run.
	assert.Eventually(t, func() bool {
		got, err := s.TaskByID("task-once")

		return err == nil && !got.Enabled && got.NextRun == nil
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, runner.count())

	got, err := s.TaskByID("task-once")
	require.NoError(t, err)
	assert.Equal(t, 1, got.RunCount)
	assert.NotNil(t, got.LastRun)
}

func TestScheduler_OnceTaskInThePastFiresImmediately(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner)
	ctx := context.Background()

	require.NoError(t, s.AddTask(ctx, onceTask("task-past", time.Now().Add(-time.Hour))))
	require.NoError(t, s.Start(ctx))

	defer s.Stop()

	assert.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RecurringTaskRepeats(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner)
	ctx := context.Background()

	require.NoError(t, s.AddTask(ctx, recurringTask("task-rec", 20*time.Millisecond)))
	require.NoError(t, s.Start(ctx))

	defer s.Stop()

	assert.Eventually(t, func() bool { return runner.count() >= 3 }, time.Second, 5*time.Millisecond)

	got, err := s.TaskByID("task-rec")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.NotNil(t, got.NextRun)
	assert.GreaterOrEqual(t, got.RunCount, 3)
}

func TestScheduler_AddTaskRejectsDuplicatesAndInvalid(t *testing.T) {
	s := NewScheduler(&fakeRunner{})
	ctx := context.Background()

	task := recurringTask("task-1", time.Hour)
	require.NoError(t, s.AddTask(ctx, task))
	assert.ErrorIs(t, s.AddTask(ctx, task), ErrTaskExists)

	invalid := recurringTask("task-2", 0)
	assert.ErrorIs(t, s.AddTask(ctx, invalid), models.ErrInvalidSchedule)
}

func TestScheduler_TasksAreCopies(t *testing.T) {
	s := NewScheduler(&fakeRunner{})
	ctx := context.Background()

	require.NoError(t, s.AddTask(ctx, recurringTask("task-rec", time.Hour)))

	got, err := s.TaskByID("task-rec")
	require.NoError(t, err)

	got.Enabled = false
	got.RunCount = 99

	fresh, err := s.TaskByID("task-rec")
	require.NoError(t, err)
	assert.True(t, fresh.Enabled, "mutating a returned task must not touch the registry")
	assert.Zero(t, fresh.RunCount)

	for _, task := range s.Tasks() {
		task.RunCount = 42
	}

	fresh, err = s.TaskByID("task-rec")
	require.NoError(t, err)
	assert.Zero(t, fresh.RunCount)
}

func TestScheduler_CancelTaskStopsRuns(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner)
	ctx := context.Background()

	require.NoError(t, s.AddTask(ctx, recurringTask("task-rec", 20*time.Millisecond)))
	require.NoError(t, s.Start(ctx))

	defer s.Stop()

	assert.Eventually(t, func() bool { return runner.count() >= 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.CancelTask(ctx, "task-rec"))

	after := runner.count()

	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, runner.count(), after+1, "at most one in-flight run after cancel")

	_, err := s.TaskByID("task-rec")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	assert.ErrorIs(t, s.CancelTask(ctx, "task-rec"), ErrTaskNotFound)
}

func TestScheduler_DisableAndReEnable(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner)
	ctx := context.Background()

	require.NoError(t, s.AddTask(ctx, recurringTask("task-rec", 20*time.Millisecond)))
	require.NoError(t, s.Start(ctx))

	defer s.Stop()

	require.NoError(t, s.SetTaskEnabled(ctx, "task-rec", false))

	got, err := s.TaskByID("task-rec")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Nil(t, got.NextRun)

	require.NoError(t, s.SetTaskEnabled(ctx, "task-rec", true))

	assert.Eventually(t, func() bool { return runner.count() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RunTaskExecutesOnTriggerTask(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner)
	ctx := context.Background()

	task := &models.ScheduledTask{
		ID:   "task-trigger",
		Name: "triggered cleanup",
		Schedule: models.Schedule{
			Kind:    models.ScheduleOnTrigger,
			Trigger: &models.Trigger{Kind: models.TriggerMemoryPressure, Threshold: 80},
		},
		Actions: []models.AutomationAction{{Kind: models.ActionCleanMemory}},
		Enabled: true,
	}

	require.NoError(t, s.AddTask(ctx, task))
	assert.Nil(t, task.NextRun, "on_trigger tasks have no timed occurrence")

	require.NoError(t, s.RunTask(ctx, "task-trigger"))
	assert.Equal(t, 1, runner.count())
	assert.Equal(t, 1, task.RunCount)

	assert.ErrorIs(t, s.RunTask(ctx, "missing"), ErrTaskNotFound)
}

func TestScheduler_PersistsTaskState(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	runner := &fakeRunner{}
	s := NewScheduler(runner, WithTaskStore(store))
	ctx := context.Background()

	require.NoError(t, s.AddTask(ctx, onceTask("task-once", time.Now().Add(-time.Second))))
	require.NoError(t, s.Start(ctx))

	defer s.Stop()

	assert.Eventually(t, func() bool {
		stored, err := store.TaskByID(ctx, "task-once")

		return err == nil && !stored.Enabled && stored.RunCount == 1
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_PublishesTaskEvents(t *testing.T) {
	bus := &fakeBus{}
	runner := &fakeRunner{}
	s := NewScheduler(runner, WithEventBus(bus))
	ctx := context.Background()

	require.NoError(t, s.AddTask(ctx, onceTask("task-once", time.Now().Add(-time.Second))))
	require.NoError(t, s.Start(ctx))

	defer s.Stop()

	assert.Eventually(t, func() bool { return bus.count() == 1 }, time.Second, 5*time.Millisecond)

	bus.mu.Lock()
	defer bus.mu.Unlock()

	executed, ok := bus.events[0].(events.TaskExecuted)
	require.True(t, ok)
	assert.Equal(t, "task-once", executed.TaskID)
	assert.Equal(t, models.ScheduleOnce, executed.Kind)
}
