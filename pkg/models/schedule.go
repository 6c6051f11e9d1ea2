package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleKind selects how a task's next run is computed.
type ScheduleKind string

const (
	ScheduleOnce      ScheduleKind = "once"
	ScheduleRecurring ScheduleKind = "recurring"
	ScheduleDaily     ScheduleKind = "daily"
	ScheduleWeekly    ScheduleKind = "weekly"
	ScheduleMonthly   ScheduleKind = "monthly"
	ScheduleOnTrigger ScheduleKind = "on_trigger"
)

var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Schedule is a tagged variant describing when a task runs.
type Schedule struct {
	Kind ScheduleKind `json:"kind" validate:"required"`

	// once
	At *time.Time `json:"at,omitempty"`

	// recurring
	Interval time.Duration `json:"interval,omitempty"`

	// daily, weekly, monthly
	Hour   int `json:"hour,omitempty"`
	Minute int `json:"minute,omitempty"`

	// weekly
	Weekday time.Weekday `json:"weekday,omitempty"`

	// monthly: day of month 1..31
	Day int `json:"day,omitempty"`

	// on_trigger
	Trigger *Trigger `json:"trigger,omitempty"`
}

// calendarParser accepts standard 5-field cron expressions. Calendar kinds
// are translated to cron expressions so next-occurrence math, including
// rolling into the next day/week/month when the naive target already
// passed, comes from one tested implementation.
var calendarParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the payload fields required by the schedule kind.
func (s Schedule) Validate() error {
	switch s.Kind {
	case ScheduleOnce:
		if s.At == nil {
			return fmt.Errorf("%w: once requires a time", ErrInvalidSchedule)
		}
	case ScheduleRecurring:
		if s.Interval <= 0 {
			return fmt.Errorf("%w: recurring requires a positive interval", ErrInvalidSchedule)
		}
	case ScheduleDaily, ScheduleWeekly, ScheduleMonthly:
		if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("%w: %s requires hour 0-23 and minute 0-59", ErrInvalidSchedule, s.Kind)
		}

		if s.Kind == ScheduleMonthly && (s.Day < 1 || s.Day > 31) {
			return fmt.Errorf("%w: monthly requires day 1-31", ErrInvalidSchedule)
		}
	case ScheduleOnTrigger:
		if s.Trigger == nil {
			return fmt.Errorf("%w: on_trigger requires a trigger", ErrInvalidSchedule)
		}

		return s.Trigger.Validate()
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, s.Kind)
	}

	return nil
}

// NextAfter computes the next run strictly after now. Once schedules return
// their fixed time (which may be in the past, firing immediately);
// on_trigger schedules have no timed occurrence and return nil.
func (s Schedule) NextAfter(now time.Time) (*time.Time, error) {
	switch s.Kind {
	case ScheduleOnce:
		if s.At == nil {
			return nil, fmt.Errorf("%w: once requires a time", ErrInvalidSchedule)
		}

		at := *s.At

		return &at, nil
	case ScheduleRecurring:
		if s.Interval <= 0 {
			return nil, fmt.Errorf("%w: recurring requires a positive interval", ErrInvalidSchedule)
		}

		next := now.Add(s.Interval)

		return &next, nil
	case ScheduleDaily, ScheduleWeekly, ScheduleMonthly:
		expr, err := s.cronExpression()
		if err != nil {
			return nil, err
		}

		cronSchedule, err := calendarParser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}

		next := cronSchedule.Next(now)

		return &next, nil
	case ScheduleOnTrigger:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, s.Kind)
	}
}

func (s Schedule) cronExpression() (string, error) {
	switch s.Kind {
	case ScheduleDaily:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour), nil
	case ScheduleWeekly:
		return fmt.Sprintf("%d %d * * %d", s.Minute, s.Hour, int(s.Weekday)), nil
	case ScheduleMonthly:
		return fmt.Sprintf("%d %d %d * *", s.Minute, s.Hour, s.Day), nil
	default:
		return "", fmt.Errorf("%w: %s has no cron form", ErrInvalidSchedule, s.Kind)
	}
}

// ScheduledTask is a registered unit of autonomous work. LastRun, NextRun
// and RunCount are mutated in place after each execution by the scheduler,
// which is the single owner of task state.
type ScheduledTask struct {
	ID       string             `json:"id"       validate:"required"`
	Name     string             `json:"name"     validate:"required,min=3"`
	Schedule Schedule           `json:"schedule"`
	Actions  []AutomationAction `json:"actions"  validate:"required,min=1"`
	Enabled  bool               `json:"enabled"`
	LastRun  *time.Time         `json:"last_run,omitempty"`
	NextRun  *time.Time         `json:"next_run,omitempty"`
	RunCount int                `json:"run_count"`
}

// Validate checks the task, its schedule, and every action.
func (t ScheduledTask) Validate() error {
	if t.ID == "" || t.Name == "" {
		return fmt.Errorf("%w: task id and name are required", ErrInvalidSchedule)
	}

	if err := t.Schedule.Validate(); err != nil {
		return err
	}

	if len(t.Actions) == 0 {
		return fmt.Errorf("%w: task %s has no actions", ErrInvalidAction, t.ID)
	}

	for _, action := range t.Actions {
		if err := action.Validate(); err != nil {
			return err
		}
	}

	return nil
}
