package automation

import (
	"time"

	"github.com/opsweep/opsweep/pkg/models"
)

// DefaultRules returns the stock trigger rules installed on first run.
func DefaultRules() []*models.AutomationRule {
	return []*models.AutomationRule{
		{
			ID:   "rule-memory-pressure",
			Name: "Relieve memory pressure",
			Trigger: models.Trigger{
				Kind:      models.TriggerMemoryPressure,
				Threshold: 80,
			},
			Actions: []models.AutomationAction{
				{Kind: models.ActionCleanMemory},
				{Kind: models.ActionCloseBrowserTabs, ThresholdMB: 200},
			},
			Enabled: true,
		},
		{
			ID:   "rule-disk-space-low",
			Name: "Reclaim disk space",
			Trigger: models.Trigger{
				Kind:      models.TriggerDiskSpaceLow,
				Threshold: 90,
			},
			Actions: []models.AutomationAction{
				{Kind: models.ActionCleanTemporaryFiles},
				{Kind: models.ActionCleanCaches},
			},
			Enabled: true,
		},
	}
}

// DefaultTasks returns the stock calendar tasks installed on first run.
func DefaultTasks() []*models.ScheduledTask {
	return []*models.ScheduledTask{
		{
			ID:   "task-daily-memory",
			Name: "Daily memory cleanup",
			Schedule: models.Schedule{
				Kind: models.ScheduleDaily,
				Hour: 3,
			},
			Actions: []models.AutomationAction{
				{Kind: models.ActionCleanMemory},
			},
			Enabled: true,
		},
		{
			ID:   "task-weekly-caches",
			Name: "Weekly cache cleanup",
			Schedule: models.Schedule{
				Kind:    models.ScheduleWeekly,
				Weekday: time.Sunday,
				Hour:    4,
			},
			Actions: []models.AutomationAction{
				{Kind: models.ActionCleanCaches},
				{Kind: models.ActionCleanTemporaryFiles},
			},
			Enabled: true,
		},
	}
}
