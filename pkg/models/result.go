package models

import (
	"fmt"
	"time"
)

// WorkflowStepResult records the outcome of a single executed step.
// Critical is true iff the step's capability risk class is destructive; a
// failed critical step aborts the remainder of the run.
type WorkflowStepResult struct {
	Step       WorkflowStep  `json:"step"`
	StepNumber int           `json:"step_number"` // 1-based, matches plan order
	Success    bool          `json:"success"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Critical   bool          `json:"critical"`
}

// WorkflowResult aggregates a full run. Success means no step failed;
// partially failed runs still carry every result that was produced.
type WorkflowResult struct {
	Plan          WorkflowPlan         `json:"plan"`
	Results       []WorkflowStepResult `json:"results"`
	FailedSteps   []WorkflowStepResult `json:"failed_steps"`
	TotalDuration time.Duration        `json:"total_duration"`
	CompletedAt   time.Time            `json:"completed_at"`
	Success       bool                 `json:"success"`
	Aborted       bool                 `json:"aborted"`
}

// SuccessRate is successful steps over attempted steps, 0 for empty runs.
func (r WorkflowResult) SuccessRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}

	successful := 0

	for _, res := range r.Results {
		if res.Success {
			successful++
		}
	}

	return float64(successful) / float64(len(r.Results))
}

// Summary renders a short human-readable outcome line.
func (r WorkflowResult) Summary() string {
	total := len(r.Results)
	successful := total - len(r.FailedSteps)

	switch {
	case r.Success:
		return fmt.Sprintf("All %d steps completed successfully in %s", total, r.TotalDuration.Round(time.Millisecond))
	case r.Aborted:
		return fmt.Sprintf("Workflow aborted after step %d: %d of %d steps succeeded", total, successful, total)
	default:
		return fmt.Sprintf("%d of %d steps succeeded", successful, total)
	}
}
