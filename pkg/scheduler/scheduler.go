// Package scheduler runs calendar and interval maintenance tasks. The
// scheduler is the single owner of task state: LastRun, NextRun and RunCount
// are only ever mutated here, under one lock.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsweep/opsweep/pkg/eventbus"
	"github.com/opsweep/opsweep/pkg/events"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/otelhelper"
	"github.com/opsweep/opsweep/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrTaskExists   = errors.New("scheduled task already registered")
	ErrTaskNotFound = errors.New("scheduled task not registered")
)

// ActionRunner executes a task's action list, best effort, returning the
// number of failed actions.
type ActionRunner interface {
	RunAll(ctx context.Context, actions []models.AutomationAction) int
}

type taskEntry struct {
	task   *models.ScheduledTask
	cancel context.CancelFunc
}

type Scheduler struct {
	runner ActionRunner
	store  persistence.TaskRepository
	bus    eventbus.EventPublisher
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	mu      sync.Mutex
	tasks   map[string]*taskEntry
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

// WithTaskStore persists task state after every run and state change.
func WithTaskStore(store persistence.TaskRepository) Option {
	return func(s *Scheduler) {
		s.store = store
	}
}

func WithEventBus(bus eventbus.EventPublisher) Option {
	return func(s *Scheduler) {
		s.bus = bus
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func NewScheduler(runner ActionRunner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		logger: slog.Default(),
		tracer: otel.Tracer("opsweep-scheduler"),
		now:    time.Now,
		tasks:  make(map[string]*taskEntry),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("module", "scheduler")

	return s
}

// AddTask registers task and, if the scheduler is running and the task has a
// timed schedule, starts waiting for its next occurrence. on_trigger tasks
// are registered without a wait loop; they run via RunTask when their
// trigger fires.
func (s *Scheduler) AddTask(ctx context.Context, task *models.ScheduledTask) error {
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	next, err := task.Schedule.NextAfter(s.now())
	if err != nil {
		return err
	}

	task.NextRun = next

	entry := &taskEntry{task: task}
	s.tasks[task.ID] = entry

	s.persist(ctx, task)

	if s.running && task.Enabled && next != nil {
		s.launch(entry)
	}

	s.logger.Info("Registered scheduled task",
		"task_id", task.ID,
		"kind", task.Schedule.Kind,
		"next_run", task.NextRun)

	return nil
}

// CancelTask stops a task's wait loop and removes it from the scheduler.
func (s *Scheduler) CancelTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	if entry.cancel != nil {
		entry.cancel()
	}

	delete(s.tasks, id)

	if s.store != nil {
		if err := s.store.DeleteTask(ctx, id); err != nil && !persistence.IsTaskNotFound(err) {
			s.logger.Warn("Failed to delete persisted task", "task_id", id, "error", err)
		}
	}

	return nil
}

// SetTaskEnabled flips a task on or off. Disabling stops the wait loop;
// enabling a timed task recomputes NextRun and restarts it.
func (s *Scheduler) SetTaskEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	if entry.task.Enabled == enabled {
		return nil
	}

	entry.task.Enabled = enabled

	if !enabled {
		if entry.cancel != nil {
			entry.cancel()
			entry.cancel = nil
		}

		entry.task.NextRun = nil
	} else {
		next, err := entry.task.Schedule.NextAfter(s.now())
		if err != nil {
			return err
		}

		entry.task.NextRun = next

		if s.running && next != nil {
			s.launch(entry)
		}
	}

	s.persist(ctx, entry.task)

	return nil
}

// Tasks returns copies of the registered tasks in unspecified order, so
// callers can read them without racing the wait loops.
func (s *Scheduler) Tasks() []*models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*models.ScheduledTask, 0, len(s.tasks))
	for _, entry := range s.tasks {
		task := *entry.task
		tasks = append(tasks, &task)
	}

	return tasks
}

// TaskByID returns a copy of one registered task.
func (s *Scheduler) TaskByID(id string) (*models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tasks[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	task := *entry.task

	return &task, nil
}

// RunTask executes a task's actions immediately, outside its schedule. This
// is how on_trigger tasks run.
func (s *Scheduler) RunTask(ctx context.Context, id string) error {
	s.mu.Lock()
	entry, exists := s.tasks[id]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	s.execute(ctx, entry)

	return nil
}

// Start launches wait loops for every enabled timed task.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	for _, entry := range s.tasks {
		if entry.task.Enabled && entry.task.NextRun != nil {
			s.launch(entry)
		}
	}

	s.logger.Info("Scheduler started", "tasks", len(s.tasks))

	return nil
}

// Stop cancels all wait loops and blocks until they exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()

		return
	}

	s.running = false
	s.cancel()

	for _, entry := range s.tasks {
		entry.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// launch starts the wait loop for entry. Caller holds s.mu.
func (s *Scheduler) launch(entry *taskEntry) {
	if entry.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	entry.cancel = cancel

	s.wg.Add(1)

	go s.waitLoop(ctx, entry)
}

func (s *Scheduler) waitLoop(ctx context.Context, entry *taskEntry) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		task := entry.task

		if !task.Enabled || task.NextRun == nil {
			entry.cancel = nil
			s.mu.Unlock()

			return
		}

		wait := task.NextRun.Sub(s.now())
		s.mu.Unlock()

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}

		s.execute(ctx, entry)

		s.mu.Lock()

		if task.Schedule.Kind == models.ScheduleOnce {
			// One-shot tasks retire themselves after the single run.
			task.Enabled = false
			task.NextRun = nil
			entry.cancel = nil
			s.persist(ctx, task)
			s.mu.Unlock()

			s.logger.Info("One-shot task retired", "task_id", task.ID)

			return
		}

		next, err := task.Schedule.NextAfter(s.now())
		if err != nil {
			s.logger.Error("Failed to compute next occurrence", "task_id", task.ID, "error", err)

			entry.cancel = nil
			s.mu.Unlock()

			return
		}

		task.NextRun = next
		s.persist(ctx, task)
		s.mu.Unlock()
	}
}

func (s *Scheduler) execute(ctx context.Context, entry *taskEntry) {
	s.mu.Lock()
	task := entry.task
	actions := append([]models.AutomationAction(nil), task.Actions...)
	s.mu.Unlock()

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.task_run",
		attribute.String(otelhelper.TaskIDKey, task.ID),
	)
	defer span.End()

	s.logger.Info("Running scheduled task", "task_id", task.ID, "task_name", task.Name)

	failures := s.runner.RunAll(ctx, actions)
	if failures > 0 {
		s.logger.Warn("Task finished with action failures", "task_id", task.ID, "failures", failures)
	}

	s.mu.Lock()
	ran := s.now()
	task.LastRun = &ran
	task.RunCount++
	runCount := task.RunCount
	s.persist(ctx, task)
	s.mu.Unlock()

	if s.bus != nil {
		event := events.TaskExecuted{
			BaseEvent: events.NewBaseEvent(events.TaskExecutedEvent),
			TaskID:    task.ID,
			TaskName:  task.Name,
			Kind:      task.Schedule.Kind,
			RunCount:  runCount,
		}
		if err := s.bus.Publish(ctx, task.ID, event); err != nil {
			s.logger.Warn("Failed to publish task event", "task_id", task.ID, "error", err)
		}
	}
}

// persist saves task state if a store is configured. Caller holds s.mu or
// otherwise owns the task.
func (s *Scheduler) persist(ctx context.Context, task *models.ScheduledTask) {
	if s.store == nil {
		return
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		s.logger.Warn("Failed to persist task state", "task_id", task.ID, "error", err)
	}
}
