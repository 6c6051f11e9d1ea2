// Package events defines the lifecycle notifications published by the
// workflow executor, the scheduler, and the automation monitor.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/opsweep/opsweep/pkg/models"
)

type EventType string

const Topic = "opsweep.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowStartedEvent   EventType = "workflow.execution.started"
	WorkflowStepEvent      EventType = "workflow.step.finished"
	WorkflowCompletedEvent EventType = "workflow.execution.completed"

	RuleFiredEvent    EventType = "automation.rule.fired"
	TaskExecutedEvent EventType = "scheduler.task.executed"
)

type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

type WorkflowStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Summary     string `json:"summary"`
	StepCount   int    `json:"step_count"`
}

func (e WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type WorkflowStepFinished struct {
	BaseEvent

	ExecutionID string                    `json:"execution_id"`
	Result      models.WorkflowStepResult `json:"result"`
}

func (e WorkflowStepFinished) GetType() EventType {
	return WorkflowStepEvent
}

type WorkflowCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Success     bool          `json:"success"`
	Aborted     bool          `json:"aborted"`
	FailedSteps int           `json:"failed_steps"`
	Duration    time.Duration `json:"duration"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type RuleFired struct {
	BaseEvent

	RuleID      string             `json:"rule_id"`
	RuleName    string             `json:"rule_name"`
	TriggerKind models.TriggerKind `json:"trigger_kind"`
	MetricValue float64            `json:"metric_value"`
	Actions     int                `json:"actions"`
}

func (e RuleFired) GetType() EventType {
	return RuleFiredEvent
}

type TaskExecuted struct {
	BaseEvent

	TaskID   string              `json:"task_id"`
	TaskName string              `json:"task_name"`
	Kind     models.ScheduleKind `json:"kind"`
	RunCount int                 `json:"run_count"`
}

func (e TaskExecuted) GetType() EventType {
	return TaskExecutedEvent
}
