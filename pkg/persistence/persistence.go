// Package persistence provides the storage abstraction for scheduled tasks
// and automation rules.
package persistence

import (
	"context"

	"github.com/opsweep/opsweep/pkg/models"
)

type TaskRepository interface {
	Tasks(ctx context.Context) ([]*models.ScheduledTask, error)
	TaskByID(ctx context.Context, id string) (*models.ScheduledTask, error)
	SaveTask(ctx context.Context, task *models.ScheduledTask) error
	DeleteTask(ctx context.Context, id string) error
}

type RuleRepository interface {
	Rules(ctx context.Context) ([]*models.AutomationRule, error)
	RuleByID(ctx context.Context, id string) (*models.AutomationRule, error)
	SaveRule(ctx context.Context, rule *models.AutomationRule) error
	DeleteRule(ctx context.Context, id string) error
}

type Persistence interface {
	TaskRepository
	RuleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
