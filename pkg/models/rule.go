package models

import (
	"errors"
	"fmt"
	"time"
)

// TriggerKind enumerates the live-condition predicates that can fire an
// automation rule.
type TriggerKind string

const (
	TriggerMemoryPressure TriggerKind = "memory_pressure"
	TriggerDiskSpaceLow   TriggerKind = "disk_space_low"
	TriggerCPUHigh        TriggerKind = "cpu_high"
	TriggerBatteryLow     TriggerKind = "battery_low"

	// The following kinds are defined but never fire: no event-subscription
	// mechanism is wired for them. This is a documented limitation carried
	// over intentionally; do not implement detection without a real event
	// source.
	TriggerNetworkChange TriggerKind = "network_change"
	TriggerAppLaunch     TriggerKind = "app_launch"
	TriggerAppQuit       TriggerKind = "app_quit"
)

var ErrInvalidTrigger = errors.New("invalid automation trigger")

// Trigger is a boolean predicate over a live system metric.
type Trigger struct {
	Kind TriggerKind `json:"kind" validate:"required"`

	// Threshold is a percentage for memory/disk/cpu triggers and a battery
	// percentage for battery_low.
	Threshold float64 `json:"threshold,omitempty"`

	// Duration applies to cpu_high: the load must stay above Threshold for
	// this long before the trigger fires.
	Duration time.Duration `json:"duration,omitempty"`

	// BundleID applies to app_launch and app_quit.
	BundleID string `json:"bundle_id,omitempty"`
}

// Validate checks the trigger payload for its kind.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerMemoryPressure, TriggerDiskSpaceLow, TriggerCPUHigh:
		if t.Threshold <= 0 || t.Threshold > 100 {
			return fmt.Errorf("%w: %s requires a threshold in (0,100]", ErrInvalidTrigger, t.Kind)
		}

		return nil
	case TriggerBatteryLow:
		if t.Threshold <= 0 || t.Threshold >= 100 {
			return fmt.Errorf("%w: battery_low requires a threshold in (0,100)", ErrInvalidTrigger)
		}

		return nil
	case TriggerNetworkChange:
		return nil
	case TriggerAppLaunch, TriggerAppQuit:
		if t.BundleID == "" {
			return fmt.Errorf("%w: %s requires a bundle id", ErrInvalidTrigger, t.Kind)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTrigger, t.Kind)
	}
}

// AutomationRule couples a trigger with an ordered, best-effort action list.
// A fired rule cannot fire again until the monitor's cooldown elapses.
type AutomationRule struct {
	ID            string             `json:"id"      validate:"required"`
	Name          string             `json:"name"    validate:"required,min=3"`
	Trigger       Trigger            `json:"trigger"`
	Actions       []AutomationAction `json:"actions" validate:"required,min=1"`
	Enabled       bool               `json:"enabled"`
	LastTriggered *time.Time         `json:"last_triggered,omitempty"`
}

// Validate checks the rule, its trigger, and every action.
func (r AutomationRule) Validate() error {
	if r.ID == "" || r.Name == "" {
		return fmt.Errorf("%w: rule id and name are required", ErrInvalidTrigger)
	}

	if err := r.Trigger.Validate(); err != nil {
		return err
	}

	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: rule %s has no actions", ErrInvalidAction, r.ID)
	}

	for _, action := range r.Actions {
		if err := action.Validate(); err != nil {
			return err
		}
	}

	return nil
}
